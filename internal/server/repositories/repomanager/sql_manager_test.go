package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/authgate/internal/dbx"
	"github.com/dmitrijs2005/authgate/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/authgate/internal/server/repositories/users"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func TestNewSQLRepositoryManager_UnknownDialect(t *testing.T) {
	_, err := NewSQLRepositoryManager(dbx.Dialect("oracle"))
	require.Error(t, err)
}

func TestFactories_ReturnConcreteRepos(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	m, err := NewSQLRepositoryManager(dbx.Postgres)
	require.NoError(t, err)

	var _ users.Repository = m.Users(db)
	var _ sessions.Repository = m.Sessions(db)
	assert.NotNil(t, m.Users(db))
	assert.NotNil(t, m.Sessions(db))
}

func TestRunMigrations_UsesDialectDir(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })

	for _, tc := range []struct {
		dialect dbx.Dialect
		dir     string
	}{
		{dbx.Postgres, "postgres"},
		{dbx.SQLite, "sqlite"},
	} {
		var gotDir string
		gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
			gotDir = dir
			return nil
		}

		m, err := NewSQLRepositoryManager(tc.dialect)
		require.NoError(t, err)
		require.NoError(t, m.RunMigrations(context.Background(), db))
		assert.Equal(t, tc.dir, gotDir)
	}
}

func TestRunMigrations_PropagatesError(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })

	boom := errors.New("boom")
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return boom
	}

	m, err := NewSQLRepositoryManager(dbx.SQLite)
	require.NoError(t, err)
	err = m.RunMigrations(context.Background(), db)
	assert.ErrorIs(t, err, boom)
}

func TestRunMigrations_SQLiteEndToEnd(t *testing.T) {
	db, err := dbx.Open(dbx.SQLite, "file:repomanager_e2e?mode=memory&cache=shared")
	require.NoError(t, err)
	defer db.Close()

	m, err := NewSQLRepositoryManager(dbx.SQLite)
	require.NoError(t, err)
	require.NoError(t, m.RunMigrations(context.Background(), db))

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&n))
	assert.Equal(t, 0, n)
}
