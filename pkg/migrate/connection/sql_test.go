package connection

import (
	"bytes"
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/baderkha/sql2mongo/pkg/migrate/config/sourcecfg"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSqlite(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`create table app_author (id integer primary key, name text)`)
	require.NoError(t, err)
	return path
}

func TestDriverName(t *testing.T) {
	for d, expected := range map[sourcecfg.Driver]string{
		sourcecfg.Postgres: "pgx",
		sourcecfg.MySQL:    "mysql",
		sourcecfg.SQLite:   "sqlite3",
	} {
		name, err := DriverName(d)
		require.NoError(t, err)
		assert.Equal(t, expected, name)
	}
	_, err := DriverName("oracle")
	assert.Error(t, err)
}

func TestDialSource(t *testing.T) {
	cfg := &sourcecfg.SQL{Driver: sourcecfg.SQLite, Path: seedSqlite(t)}

	db, err := DialSource(context.Background(), cfg, 2, zerolog.Nop())
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow(`select count(*) from app_author`).Scan(&n))
	assert.Equal(t, 0, n)
}

func TestDialSourceQueryLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	cfg := &sourcecfg.SQL{Driver: sourcecfg.SQLite, Path: seedSqlite(t), QueryLogging: true}

	db, err := DialSource(context.Background(), cfg, 1, logger)
	require.NoError(t, err)
	defer db.Close()

	rows, err := db.Query(`select id, name from app_author`)
	require.NoError(t, err)
	require.NoError(t, rows.Close())

	assert.Contains(t, buf.String(), "select id, name from app_author")
	assert.Contains(t, buf.String(), `"driver":"sqlite3"`)
}

func TestDialSourceUnreachable(t *testing.T) {
	cfg := &sourcecfg.SQL{Driver: sourcecfg.SQLite, Path: filepath.Join(t.TempDir(), "missing.db")}
	_, err := DialSource(context.Background(), cfg, 1, zerolog.Nop())
	assert.ErrorContains(t, err, "SOURCE")
}
