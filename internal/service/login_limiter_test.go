package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/izumi-lms/izumi-api/internal/dto"
	"github.com/izumi-lms/izumi-api/internal/models"
	"github.com/izumi-lms/izumi-api/internal/repository"
)

type fakeClock struct {
	current time.Time
}

func (c *fakeClock) now() time.Time {
	return c.current
}

func (c *fakeClock) advance(d time.Duration) {
	c.current = c.current.Add(d)
}

func failN(ctx context.Context, limiter *LoginLimiter, n int) {
	for i := 0; i < n; i++ {
		limiter.RecordFailure(ctx, LoginFailure{Email: "Student@Izumi.test", Role: "student", Reason: LoginFailureBadPassword})
	}
}

func TestLoginLimiterBlocksAtThresholdWithRedis(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()

	limiter := NewLoginLimiter(NewRedisAttemptStore(client, ""), nil, LoginLimiterConfig{MaxAttempts: 5, BlockWindow: 5 * time.Minute}, testLogger())

	failN(ctx, limiter, 4)
	blocked, _ := limiter.IsBlocked(ctx, "student", "student@izumi.test")
	require.False(t, blocked)

	failN(ctx, limiter, 1)
	blocked, remaining := limiter.IsBlocked(ctx, "student", " STUDENT@izumi.test ")
	require.True(t, blocked)
	require.InDelta(t, (5 * time.Minute).Seconds(), remaining.Seconds(), 2)

	other, _ := limiter.IsBlocked(ctx, "instructor", "student@izumi.test")
	require.False(t, other)

	ttl := client.TTL(ctx, "izumi:login_attempts:student:student@izumi.test").Val()
	require.Greater(t, ttl, 29*time.Minute)
}

func TestLoginLimiterBlockExpires(t *testing.T) {
	clock := &fakeClock{current: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	limiter := NewLoginLimiter(NewMemoryAttemptStore(), nil, LoginLimiterConfig{MaxAttempts: 3, BlockWindow: time.Minute}, testLogger())
	limiter.now = clock.now
	ctx := context.Background()

	failN(ctx, limiter, 3)
	blocked, _ := limiter.IsBlocked(ctx, "student", "student@izumi.test")
	require.True(t, blocked)

	clock.advance(time.Minute)
	blocked, _ = limiter.IsBlocked(ctx, "student", "student@izumi.test")
	require.False(t, blocked)

	// The streak is still remembered, so the next failure blocks again.
	failN(ctx, limiter, 1)
	blocked, _ = limiter.IsBlocked(ctx, "student", "student@izumi.test")
	require.True(t, blocked)
}

func TestLoginLimiterStreakResetsAfterRetention(t *testing.T) {
	clock := &fakeClock{current: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	limiter := NewLoginLimiter(NewMemoryAttemptStore(), nil, LoginLimiterConfig{MaxAttempts: 3, BlockWindow: time.Minute}, testLogger())
	limiter.now = clock.now
	ctx := context.Background()

	failN(ctx, limiter, 2)
	clock.advance(7 * time.Minute)
	failN(ctx, limiter, 2)

	blocked, _ := limiter.IsBlocked(ctx, "student", "student@izumi.test")
	require.False(t, blocked)
}

func TestLoginLimiterSuccessClearsRecord(t *testing.T) {
	limiter := NewLoginLimiter(NewMemoryAttemptStore(), nil, LoginLimiterConfig{MaxAttempts: 2}, testLogger())
	ctx := context.Background()

	failN(ctx, limiter, 1)
	limiter.RecordSuccess(ctx, "student", "student@izumi.test")
	failN(ctx, limiter, 1)

	blocked, _ := limiter.IsBlocked(ctx, "student", "student@izumi.test")
	require.False(t, blocked)
}

func TestLoginLimiterDegradesOpenWhenStoreFails(t *testing.T) {
	server, client := newTestRedis(t)
	ctx := context.Background()

	limiter := NewLoginLimiter(NewRedisAttemptStore(client, ""), nil, LoginLimiterConfig{MaxAttempts: 1}, testLogger())
	server.Close()

	require.NotPanics(t, func() { failN(ctx, limiter, 3) })
	blocked, _ := limiter.IsBlocked(ctx, "student", "student@izumi.test")
	require.False(t, blocked)
	require.NotPanics(t, func() { limiter.RecordSuccess(ctx, "student", "student@izumi.test") })
}

func TestLoginLimiterDisabledStillAudits(t *testing.T) {
	db := newTestDB(t)
	audits := repository.NewLoginAuditRepository(db)
	ctx := context.Background()

	limiter := NewLoginLimiter(nil, audits, LoginLimiterConfig{MaxAttempts: 1}, testLogger())
	require.False(t, limiter.Enabled())

	failN(ctx, limiter, 3)
	blocked, _ := limiter.IsBlocked(ctx, "student", "student@izumi.test")
	require.False(t, blocked)

	entries, total, err := audits.List(ctx, repository.LoginAuditFilter{Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Equal(t, "student@izumi.test", entries[0].Email)
	require.Equal(t, LoginFailureBadPassword, entries[0].Reason)
}

func TestNilLoginLimiterIsSafe(t *testing.T) {
	var limiter *LoginLimiter
	ctx := context.Background()

	require.False(t, limiter.Enabled())
	blocked, _ := limiter.IsBlocked(ctx, "student", "a@b.c")
	require.False(t, blocked)
	require.NotPanics(t, func() {
		limiter.RecordFailure(ctx, LoginFailure{Email: "a@b.c", Role: "student"})
		limiter.RecordSuccess(ctx, "student", "a@b.c")
	})
}

type failingLoginAuditRepo struct {
	repository.LoginAuditRepository
	calls int
}

func (r *failingLoginAuditRepo) Create(context.Context, *models.LoginAudit) error {
	r.calls++
	return errors.New("audit table unavailable")
}

func TestLoginLimiterKeepsCountingWhenAuditFails(t *testing.T) {
	audits := &failingLoginAuditRepo{}
	limiter := NewLoginLimiter(NewMemoryAttemptStore(), audits, LoginLimiterConfig{MaxAttempts: 3, BlockWindow: time.Minute}, testLogger())
	ctx := context.Background()

	failN(ctx, limiter, 2)
	blocked, _ := limiter.IsBlocked(ctx, "student", "student@izumi.test")
	require.False(t, blocked)

	failN(ctx, limiter, 1)
	blocked, _ = limiter.IsBlocked(ctx, "student", "student@izumi.test")
	require.True(t, blocked)
	require.Equal(t, 3, audits.calls)
}

func TestAuthLoginIgnoresAuditFailure(t *testing.T) {
	audits := &failingLoginAuditRepo{}
	limiter := NewLoginLimiter(NewMemoryAttemptStore(), audits, LoginLimiterConfig{MaxAttempts: 2, BlockWindow: time.Minute}, testLogger())
	svc, _ := newTestAuthService(t, limiter)
	ctx := context.Background()

	_, err := svc.Register(ctx, dto.RegisterRequest{Name: "Mio", Email: "mio@izumi.test", Password: "right-password", Role: models.RoleStudent})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = svc.Login(ctx, dto.LoginRequest{Email: "mio@izumi.test", Password: "wrong", Role: models.RoleStudent}, LoginMeta{})
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}
	require.Equal(t, 2, audits.calls)

	_, err = svc.Login(ctx, dto.LoginRequest{Email: "mio@izumi.test", Password: "right-password", Role: models.RoleStudent}, LoginMeta{})
	require.ErrorIs(t, err, ErrLoginBlocked)
}

func TestMemoryAttemptStoreExpiresRecords(t *testing.T) {
	store := NewMemoryAttemptStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "student:a@izumi.test", LoginAttempt{Count: 2}, 20*time.Millisecond))
	require.NoError(t, store.Set(ctx, "student:b@izumi.test", LoginAttempt{Count: 1}, 0))

	attempt, ok, err := store.Get(ctx, "student:a@izumi.test")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 2, attempt.Count)

	require.Eventually(t, func() bool {
		_, ok, _ := store.Get(ctx, "student:a@izumi.test")
		return !ok
	}, time.Second, 10*time.Millisecond)

	_, ok, err = store.Get(ctx, "student:b@izumi.test")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, store.Delete(ctx, "student:b@izumi.test"))
	_, ok, _ = store.Get(ctx, "student:b@izumi.test")
	require.False(t, ok)
}
