package services

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/authgate/internal/dbx"
	"github.com/dmitrijs2005/authgate/internal/server/cache"
	"github.com/dmitrijs2005/authgate/internal/server/password"
	"github.com/dmitrijs2005/authgate/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	db      *sql.DB
	rm      repomanager.RepositoryManager
	clock   *testClock
	store   *CredentialStore
	manager *SessionManager
	cache   *cache.Memory
}

func newTestVerifier(t *testing.T, acceptLegacy bool) *password.Verifier {
	t.Helper()
	a, err := password.NewArgon2(password.Params{Memory: 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	require.NoError(t, err)
	return password.NewVerifier(a, acceptLegacy)
}

func openTestDB(t *testing.T) (*sql.DB, repomanager.RepositoryManager) {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := dbx.Open(dbx.SQLite, "file:"+name+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rm, err := repomanager.NewSQLRepositoryManager(dbx.SQLite)
	require.NoError(t, err)
	require.NoError(t, rm.RunMigrations(context.Background(), db))
	return db, rm
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvLegacy(t, true)
}

func newTestEnvLegacy(t *testing.T, acceptLegacy bool) *testEnv {
	t.Helper()

	db, rm := openTestDB(t)
	clk := &testClock{t: time.UnixMilli(1_700_000_000_000)}
	store := NewCredentialStore(db, rm, newTestVerifier(t, acceptLegacy),
		WithClock(clk.Now), WithStoreTimeout(5*time.Second))
	mem := cache.NewMemory(time.Minute, cache.WithClock(clk.Now))
	mgr := NewSessionManager(store, 24*time.Hour, WithCache(mem))

	return &testEnv{db: db, rm: rm, clock: clk, store: store, manager: mgr, cache: mem}
}

func (e *testEnv) mustUser(t *testing.T, account, pw string, points int64) int64 {
	t.Helper()
	id, err := e.store.CreateUser(context.Background(), account+"-name", account, pw, account+"@example.com", points)
	require.NoError(t, err)
	return id
}
