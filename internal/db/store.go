package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Store persists the command journal.
type Store struct {
	db *sql.DB
}

// NewStore creates a journal store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CommandRecord is one journaled command.
type CommandRecord struct {
	CorrelationID string    `json:"correlation_id"`
	Action        string    `json:"action"`
	Input         string    `json:"input"`
	Code          string    `json:"code,omitempty"`
	Text          string    `json:"text"`
	StartedAt     time.Time `json:"started_at"`
	EndedAt       time.Time `json:"ended_at"`
}

// ItemRecord is the outcome for one task touched by a command.
type ItemRecord struct {
	TaskID string `json:"task_id"`
	Title  string `json:"title"`
	Code   string `json:"code,omitempty"`
	Text   string `json:"text"`
}

// RecordCommand inserts the command and its items in one transaction.
func (s *Store) RecordCommand(ctx context.Context, cmd CommandRecord, items []ItemRecord) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin record command: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO commands(correlation_id, action, input, code, text, started_at, ended_at)
		VALUES(?, ?, ?, ?, ?, ?, ?)`,
		cmd.CorrelationID, cmd.Action, cmd.Input, nullableString(cmd.Code), cmd.Text,
		formatTime(cmd.StartedAt), formatTime(cmd.EndedAt)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert command: %w", err)
	}
	for _, it := range items {
		if err := s.insertItem(ctx, tx, cmd.CorrelationID, it); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record command: %w", err)
	}
	return nil
}

func (s *Store) insertItem(ctx context.Context, tx *sql.Tx, correlationID string, it ItemRecord) error {
	seq, err := s.nextSeq(ctx, tx, correlationID)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO command_items(correlation_id, seq, task_id, title, code, text) VALUES(?, ?, ?, ?, ?, ?)`,
		correlationID, seq, it.TaskID, it.Title, nullableString(it.Code), it.Text); err != nil {
		return fmt.Errorf("insert command item: %w", err)
	}
	return nil
}

func (s *Store) nextSeq(ctx context.Context, tx *sql.Tx, correlationID string) (int, error) {
	var seq int
	row := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM command_items WHERE correlation_id=?`, correlationID)
	if err := row.Scan(&seq); err != nil {
		return 0, fmt.Errorf("read item seq: %w", err)
	}
	return seq + 1, nil
}

// RecentCommands returns up to limit commands, newest first.
func (s *Store) RecentCommands(ctx context.Context, limit int) ([]CommandRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT correlation_id, action, input, COALESCE(code, ''), text, started_at, ended_at
		FROM commands ORDER BY started_at DESC, correlation_id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query commands: %w", err)
	}
	defer rows.Close()

	var out []CommandRecord
	for rows.Next() {
		var (
			c              CommandRecord
			started, ended string
		)
		if err := rows.Scan(&c.CorrelationID, &c.Action, &c.Input, &c.Code, &c.Text, &started, &ended); err != nil {
			return nil, fmt.Errorf("scan command: %w", err)
		}
		c.StartedAt, _ = time.Parse(timeLayout, started)
		c.EndedAt, _ = time.Parse(timeLayout, ended)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commands: %w", err)
	}
	return out, nil
}

// CommandItems returns the items of a command in the order they ran.
func (s *Store) CommandItems(ctx context.Context, correlationID string) ([]ItemRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT task_id, title, COALESCE(code, ''), text
		FROM command_items WHERE correlation_id=? ORDER BY seq`, correlationID)
	if err != nil {
		return nil, fmt.Errorf("query command items: %w", err)
	}
	defer rows.Close()

	var out []ItemRecord
	for rows.Next() {
		var it ItemRecord
		if err := rows.Scan(&it.TaskID, &it.Title, &it.Code, &it.Text); err != nil {
			return nil, fmt.Errorf("scan command item: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// PruneCommands deletes commands that started before cutoff.
func (s *Store) PruneCommands(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM commands WHERE started_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune commands: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// timeLayout is fixed width so stored values sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
