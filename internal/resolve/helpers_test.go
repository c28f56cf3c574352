package resolve

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/metalagman/tickwise/internal/db"
	"github.com/metalagman/tickwise/internal/index"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, fixed time.Time) *index.Store {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return index.NewStore(conn, index.WithClock(func() time.Time { return fixed }))
}
