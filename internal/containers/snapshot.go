package containers

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/metalagman/tickwise/internal/model"
)

// Snapshots stores the last fetched container list in SQLite.
type Snapshots struct {
	db *sql.DB
}

// NewSnapshots creates a snapshot store on an opened database.
func NewSnapshots(db *sql.DB) *Snapshots {
	return &Snapshots{db: db}
}

// Save replaces the stored list.
func (s *Snapshots) Save(ctx context.Context, items []model.Container, fetchedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin save containers: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM containers`); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear containers: %w", err)
	}
	for _, c := range items {
		if _, err := tx.ExecContext(ctx, `INSERT INTO containers(id, name, closed, fetched_at) VALUES(?, ?, ?, ?)`,
			c.ID, c.Name, boolToInt(c.Closed), fetchedAt.UTC().UnixNano()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert container %s: %w", c.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save containers: %w", err)
	}
	return nil
}

// Load returns the stored list and when it was fetched.
func (s *Snapshots) Load(ctx context.Context) ([]model.Container, time.Time, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, closed, fetched_at FROM containers ORDER BY name, id`)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("query containers: %w", err)
	}
	defer rows.Close()

	var (
		out       []model.Container
		fetchedAt int64
	)
	for rows.Next() {
		var (
			c      model.Container
			closed int
		)
		if err := rows.Scan(&c.ID, &c.Name, &closed, &fetchedAt); err != nil {
			return nil, time.Time{}, fmt.Errorf("scan container: %w", err)
		}
		c.Closed = closed != 0
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, fmt.Errorf("iterate containers: %w", err)
	}
	if len(out) == 0 {
		return nil, time.Time{}, nil
	}
	return out, time.Unix(0, fetchedAt).UTC(), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
