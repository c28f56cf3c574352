package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpen_AppliesMigrations(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "tickwise.db")
	conn, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	for _, table := range []string{"tasks", "containers", "commands", "command_items"} {
		var name string
		err := conn.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		require.NoError(t, err, "table %s", table)
	}

	var columns int
	require.NoError(t, conn.QueryRow(`SELECT count(*) FROM pragma_table_info('tasks') WHERE name IN ('reminders_json', 'recurrence')`).Scan(&columns))
	require.Equal(t, 2, columns)
}

func TestOpen_IsIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tickwise.db")
	first, err := Open(path)
	require.NoError(t, err)
	_, err = first.Exec(`INSERT INTO tasks(id, title, synced_at, created_at) VALUES('t1', 'keep me', 1, 1)`)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	var title string
	require.NoError(t, second.QueryRow(`SELECT title FROM tasks WHERE id='t1'`).Scan(&title))
	require.Equal(t, "keep me", title)
}
