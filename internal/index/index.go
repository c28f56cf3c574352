// Package index is the durable local cache of last known task state.
//
// The remote tracker cannot list or search tasks, so the index is the only
// source for existing tags and notes, for container ids, and for tasks that
// were completed and can no longer be listed remotely.
package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/metalagman/tickwise/internal/failure"
	"github.com/metalagman/tickwise/internal/model"
)

// Store persists task records in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for synced_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates an index store on an opened database.
func NewStore(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FindOptions scopes a title search.
type FindOptions struct {
	ContainerID      string
	IncludeCompleted bool
}

// Filter selects records for listing.
type Filter struct {
	ContainerID   string
	Tag           string
	TitleContains string
	DueBefore     *time.Time
	Status        model.Status
}

const selectColumns = `id, container_id, title, tags_json, notes, due_at, priority, reminders_json, recurrence, status, synced_at, created_at`

// NormalizeTitle trims, case-folds and collapses whitespace.
func NormalizeTitle(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// Put inserts or updates a record. Empty fields in rec keep their stored
// value unless they are listed in clear.
func (s *Store) Put(ctx context.Context, rec model.TaskRecord, clear ...model.Field) error {
	if strings.TrimSpace(rec.ID) == "" {
		return failure.Validation("index put", "task id is required")
	}
	now := s.now().UTC()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin put task: %w", err)
	}
	existing, err := getTx(ctx, tx, rec.ID)
	found := err == nil
	if err != nil && !errors.Is(err, failure.ErrNotFound) {
		_ = tx.Rollback()
		return err
	}

	merged := rec.Clone()
	if found {
		merged = preserve(existing, rec, clear)
		merged.CreatedAt = existing.CreatedAt
	} else if merged.CreatedAt.IsZero() {
		merged.CreatedAt = now
	}
	if merged.Status == "" {
		merged.Status = model.StatusActive
	}
	merged.SyncedAt = now

	tagsJSON, err := json.Marshal(normalizeSet(merged.Tags))
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("marshal tags: %w", err)
	}
	remindersJSON, err := json.Marshal(normalizeSet(merged.Reminders))
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("marshal reminders: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO tasks(id, container_id, title, title_key, tags_json, notes, due_at, priority, reminders_json, recurrence, status, synced_at, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			container_id=excluded.container_id,
			title=excluded.title,
			title_key=excluded.title_key,
			tags_json=excluded.tags_json,
			notes=excluded.notes,
			due_at=excluded.due_at,
			priority=excluded.priority,
			reminders_json=excluded.reminders_json,
			recurrence=excluded.recurrence,
			status=excluded.status,
			synced_at=excluded.synced_at`,
		merged.ID, merged.ContainerID, merged.Title, NormalizeTitle(merged.Title), string(tagsJSON), merged.Notes,
		nullableTime(merged.Due), int(merged.Priority), string(remindersJSON), merged.Recurrence,
		string(merged.Status), merged.SyncedAt.UnixNano(), merged.CreatedAt.UnixNano()); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("upsert task: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit put task: %w", err)
	}
	return nil
}

func preserve(existing, rec model.TaskRecord, clear []model.Field) model.TaskRecord {
	out := existing.Clone()
	cleared := func(f model.Field) bool { return slices.Contains(clear, f) }

	if rec.ContainerID != "" {
		out.ContainerID = rec.ContainerID
	}
	if rec.Title != "" || cleared(model.FieldTitle) {
		out.Title = rec.Title
	}
	if len(rec.Tags) > 0 || cleared(model.FieldTags) {
		out.Tags = slices.Clone(rec.Tags)
	}
	if rec.Notes != "" || cleared(model.FieldNotes) {
		out.Notes = rec.Notes
	}
	if rec.Due != nil || cleared(model.FieldDue) {
		out.Due = rec.Due
	}
	if rec.Priority != model.PriorityNone || cleared(model.FieldPriority) {
		out.Priority = rec.Priority
	}
	if len(rec.Reminders) > 0 || cleared(model.FieldReminders) {
		out.Reminders = slices.Clone(rec.Reminders)
	}
	if rec.Recurrence != "" || cleared(model.FieldRecurrence) {
		out.Recurrence = rec.Recurrence
	}
	if rec.Status != "" {
		out.Status = rec.Status
	}
	return out
}

// Get returns the record for id.
func (s *Store) Get(ctx context.Context, id string) (model.TaskRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM tasks WHERE id=?`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.TaskRecord{}, failure.NotFound("index get", id)
		}
		return model.TaskRecord{}, fmt.Errorf("read task: %w", err)
	}
	return rec, nil
}

func getTx(ctx context.Context, tx *sql.Tx, id string) (model.TaskRecord, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM tasks WHERE id=?`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.TaskRecord{}, failure.NotFound("index get", id)
		}
		return model.TaskRecord{}, fmt.Errorf("read task: %w", err)
	}
	return rec, nil
}

// FindByTitle returns records whose normalized title contains the
// normalized text, most recently synced first. Ties are broken by id.
func (s *Store) FindByTitle(ctx context.Context, text string, opts FindOptions) ([]model.TaskRecord, error) {
	key := NormalizeTitle(text)
	if key == "" {
		return nil, nil
	}
	query := `SELECT ` + selectColumns + ` FROM tasks WHERE instr(title_key, ?) > 0`
	args := []any{key}
	if !opts.IncludeCompleted {
		query += ` AND status != ?`
		args = append(args, string(model.StatusCompleted))
	}
	if opts.ContainerID != "" {
		query += ` AND container_id = ?`
		args = append(args, opts.ContainerID)
	}
	query += ` ORDER BY synced_at DESC, id ASC`
	return s.query(ctx, query, args...)
}

// List returns records matching the filter, most recently synced first.
func (s *Store) List(ctx context.Context, f Filter) ([]model.TaskRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM tasks WHERE 1=1`
	var args []any
	if f.ContainerID != "" {
		query += ` AND container_id = ?`
		args = append(args, f.ContainerID)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	if key := NormalizeTitle(f.TitleContains); key != "" {
		query += ` AND instr(title_key, ?) > 0`
		args = append(args, key)
	}
	if f.DueBefore != nil {
		query += ` AND due_at IS NOT NULL AND due_at < ?`
		args = append(args, f.DueBefore.UnixNano())
	}
	query += ` ORDER BY synced_at DESC, id ASC`
	recs, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	tag := strings.TrimSpace(f.Tag)
	if tag == "" {
		return recs, nil
	}
	out := recs[:0]
	for _, rec := range recs {
		if slices.Contains(rec.Tags, tag) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Remove deletes the record for id. Missing records are not an error.
func (s *Store) Remove(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// MarkCompleted flags the record as completed without removing it.
func (s *Store) MarkCompleted(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE tasks SET status=?, synced_at=? WHERE id=?`,
		string(model.StatusCompleted), s.now().UTC().UnixNano(), id)
	if err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return failure.NotFound("index complete", id)
	}
	return nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]model.TaskRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()
	var out []model.TaskRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (model.TaskRecord, error) {
	var (
		rec           model.TaskRecord
		tagsJSON      string
		remindersJSON string
		dueAt         sql.NullInt64
		priority      int
		status        string
		syncedAt      int64
		createdAt     int64
	)
	if err := row.Scan(&rec.ID, &rec.ContainerID, &rec.Title, &tagsJSON, &rec.Notes, &dueAt, &priority,
		&remindersJSON, &rec.Recurrence, &status, &syncedAt, &createdAt); err != nil {
		return model.TaskRecord{}, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &rec.Tags); err != nil {
		return model.TaskRecord{}, fmt.Errorf("parse tags: %w", err)
	}
	if err := json.Unmarshal([]byte(remindersJSON), &rec.Reminders); err != nil {
		return model.TaskRecord{}, fmt.Errorf("parse reminders: %w", err)
	}
	if len(rec.Reminders) == 0 {
		rec.Reminders = nil
	}
	if dueAt.Valid {
		due := time.Unix(0, dueAt.Int64).UTC()
		rec.Due = &due
	}
	rec.Priority = model.Priority(priority)
	rec.Status = model.Status(status)
	rec.SyncedAt = time.Unix(0, syncedAt).UTC()
	rec.CreatedAt = time.Unix(0, createdAt).UTC()
	return rec, nil
}

func normalizeSet(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" && !slices.Contains(out, item) {
			out = append(out, item)
		}
	}
	slices.Sort(out)
	return out
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().UnixNano()
}
