package services

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/authgate/internal/common"
	"github.com/dmitrijs2005/authgate/internal/server/models"
	"github.com/dmitrijs2005/authgate/internal/server/password"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUser_AndVerify(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id := env.mustUser(t, "alice", "p", 10)
	assert.Positive(t, id)

	u, err := env.store.VerifyCredentials(ctx, "alice", "p")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.Equal(t, int64(10), u.Points)
	assert.True(t, u.LastLogin.Equal(env.clock.Now()))
	assert.True(t, strings.HasPrefix(u.PasswordHash, "$argon2id$"))

	stored, err := env.store.GetUser(ctx, id)
	require.NoError(t, err)
	assert.True(t, stored.LastLogin.Equal(env.clock.Now()))
}

func TestCreateUser_Conflicts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.store.CreateUser(ctx, "Alice", "alice", "p", "", 0)
	require.NoError(t, err)

	_, err = env.store.CreateUser(ctx, "Other", "alice", "p", "", 0)
	assert.ErrorIs(t, err, common.ErrorConflict)

	_, err = env.store.CreateUser(ctx, "Alice", "alice2", "p", "", 0)
	assert.ErrorIs(t, err, common.ErrorConflict)
}

func TestCreateUser_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, tc := range []struct {
		user, account, pw string
		points            int64
	}{
		{"", "a", "p", 0},
		{"u", " ", "p", 0},
		{"u", "a", "", 0},
		{"u", "a", "p", -1},
	} {
		_, err := env.store.CreateUser(ctx, tc.user, tc.account, tc.pw, "", tc.points)
		assert.ErrorIs(t, err, common.ErrorBadRequest)
	}
}

func TestVerifyCredentials_Undifferentiated(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.mustUser(t, "alice", "p", 0)

	_, errWrong := env.store.VerifyCredentials(ctx, "alice", "nope")
	_, errUnknown := env.store.VerifyCredentials(ctx, "bob", "p")

	assert.ErrorIs(t, errWrong, common.ErrorInvalidCredentials)
	assert.ErrorIs(t, errUnknown, common.ErrorInvalidCredentials)
	assert.Equal(t, errWrong.Error(), errUnknown.Error())
}

func insertLegacyUser(t *testing.T, env *testEnv, account, pw string) int64 {
	t.Helper()
	h, _ := password.Legacy{}.Hash(pw)
	u, err := env.rm.Users(env.db).Create(context.Background(), &models.User{
		UserName: account, Account: account, PasswordHash: h, Points: 1, CreatedAt: env.clock.Now(),
	})
	require.NoError(t, err)
	return u.ID
}

func TestVerifyCredentials_UpgradesLegacyHash(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := insertLegacyUser(t, env, "old", "secret")

	_, err := env.store.VerifyCredentials(ctx, "old", "secret")
	require.NoError(t, err)

	u, err := env.store.GetUser(ctx, id)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u.PasswordHash, "$argon2id$"))

	_, err = env.store.VerifyCredentials(ctx, "old", "secret")
	require.NoError(t, err)
}

func TestVerifyCredentials_LegacyRefused(t *testing.T) {
	env := newTestEnvLegacy(t, false)
	insertLegacyUser(t, env, "old", "secret")

	_, err := env.store.VerifyCredentials(context.Background(), "old", "secret")
	assert.ErrorIs(t, err, common.ErrorInvalidCredentials)
}

func TestAdjustPoints(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.mustUser(t, "alice", "p", 3)

	bal, err := env.store.AdjustPoints(ctx, id, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(7), bal)

	bal, err = env.store.AdjustPoints(ctx, id, -7)
	require.NoError(t, err)
	assert.Equal(t, int64(0), bal)
}

func TestAdjustPoints_InsufficientLeavesBalance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.mustUser(t, "alice", "p", 3)

	bal, err := env.store.AdjustPoints(ctx, id, -5)
	require.ErrorIs(t, err, common.ErrorInsufficient)
	var ie *InsufficientError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, int64(3), ie.Balance)
	assert.Equal(t, int64(3), bal)

	u, err := env.store.GetUser(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(3), u.Points)
}

func TestAdjustPoints_NotFound(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.store.AdjustPoints(context.Background(), 999, -1)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestAdjustPoints_ConcurrentDeductionsNeverGoNegative(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const n = 16
	id := env.mustUser(t, "alice", "p", n-1)

	var (
		wg       sync.WaitGroup
		failures atomic.Int32
		start    = make(chan struct{})
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := env.manager.DeductPoints(ctx, id, 1); err != nil {
				assert.ErrorIs(t, err, common.ErrorInsufficient)
				failures.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), failures.Load())
	u, err := env.store.GetUser(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(0), u.Points)
}

func TestSessions_CreateReadDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.mustUser(t, "alice", "p", 5)

	sess, err := env.store.CreateSession(ctx, id, time.Hour)
	require.NoError(t, err)
	assert.Len(t, sess.Token, 2*common.SessionTokenBytes)
	assert.True(t, sess.ExpiresAt.Equal(env.clock.Now().Add(time.Hour)))

	v, err := env.store.ReadSession(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, id, v.UserID)
	assert.Equal(t, "alice", v.Account)
	assert.Equal(t, int64(5), v.Points)

	removed, err := env.store.DeleteSession(ctx, sess.Token)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = env.store.DeleteSession(ctx, sess.Token)
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = env.store.ReadSession(ctx, sess.Token)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestReadSession_ExpiredIsDeleted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.mustUser(t, "alice", "p", 0)

	sess, err := env.store.CreateSession(ctx, id, time.Minute)
	require.NoError(t, err)

	env.clock.Advance(time.Minute)
	_, err = env.store.ReadSession(ctx, sess.Token)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	var n int
	require.NoError(t, env.db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&n))
	assert.Equal(t, 0, n)
}

func TestSweepExpiredSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.mustUser(t, "alice", "p", 0)

	_, err := env.store.CreateSession(ctx, id, time.Minute)
	require.NoError(t, err)
	_, err = env.store.CreateSession(ctx, id, time.Minute)
	require.NoError(t, err)
	live, err := env.store.CreateSession(ctx, id, time.Hour)
	require.NoError(t, err)

	env.clock.Advance(2 * time.Minute)

	n, err := env.store.SweepExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = env.store.SweepExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	_, err = env.store.ReadSession(ctx, live.Token)
	assert.NoError(t, err)
}

func TestListUsers_Ordered(t *testing.T) {
	env := newTestEnv(t)
	first := env.mustUser(t, "alice", "p", 0)
	second := env.mustUser(t, "bob", "p", 0)

	list, err := env.store.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first, list[0].ID)
	assert.Equal(t, second, list[1].ID)
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.mustUser(t, "alice", "p", 0)
	env.mustUser(t, "bob", "p", 0)

	u, err := env.store.UpdateProfile(ctx, id, "Alice A.", "new@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Alice A.", u.UserName)
	assert.Equal(t, "new@example.com", u.Email)

	_, err = env.store.UpdateProfile(ctx, id, "bob-name", "")
	assert.ErrorIs(t, err, common.ErrorConflict)

	_, err = env.store.UpdateProfile(ctx, id, "  ", "")
	assert.ErrorIs(t, err, common.ErrorBadRequest)

	_, err = env.store.UpdateProfile(ctx, 999, "x", "")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestEnsureUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seed := SeedAdmin{Account: "admin", Password: "admin123", UserName: "administrator", Email: "admin@example.com", Points: 1000}

	created, err := env.store.EnsureUser(ctx, seed)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = env.store.EnsureUser(ctx, seed)
	require.NoError(t, err)
	assert.False(t, created)

	u, err := env.store.VerifyCredentials(ctx, "admin", "admin123")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), u.Points)

	created, err = env.store.EnsureUser(ctx, SeedAdmin{Account: "x"})
	require.NoError(t, err)
	assert.False(t, created)
}

func TestStoreUnavailable(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.db.Close())

	_, err := env.store.ReadSession(context.Background(), "deadbeef")
	assert.ErrorIs(t, err, common.ErrorStoreUnavailable)
}
