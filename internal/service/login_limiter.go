package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/izumi-lms/izumi-api/internal/models"
	"github.com/izumi-lms/izumi-api/internal/observability"
	"github.com/izumi-lms/izumi-api/internal/repository"
)

// Defaults for the login limiter.
const (
	DefaultLoginMaxAttempts = 5
	DefaultLoginBlockWindow = 5 * time.Minute

	// attemptRetentionFactor bounds how long a failure streak is remembered,
	// as a multiple of the block window.
	attemptRetentionFactor = 6
)

// LoginAttempt is the failure record kept per role and email.
type LoginAttempt struct {
	Count          int       `json:"count"`
	FirstAttemptAt time.Time `json:"first_attempt_at"`
	LastAttemptAt  time.Time `json:"last_attempt_at"`
	BlockedUntil   time.Time `json:"blocked_until"`
}

// AttemptStore keeps login attempt records with a time to live.
type AttemptStore interface {
	Get(ctx context.Context, key string) (LoginAttempt, bool, error)
	Set(ctx context.Context, key string, attempt LoginAttempt, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RedisAttemptStore keeps attempt records as JSON strings in Redis.
type RedisAttemptStore struct {
	client *redis.Client
	prefix string
}

// NewRedisAttemptStore builds a Redis-backed attempt store.
func NewRedisAttemptStore(client *redis.Client, prefix string) *RedisAttemptStore {
	if prefix == "" {
		prefix = "izumi:login_attempts:"
	}
	return &RedisAttemptStore{client: client, prefix: prefix}
}

// Get implements AttemptStore.
func (s *RedisAttemptStore) Get(ctx context.Context, key string) (LoginAttempt, bool, error) {
	raw, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return LoginAttempt{}, false, nil
	}
	if err != nil {
		return LoginAttempt{}, false, err
	}

	var attempt LoginAttempt
	if err := json.Unmarshal(raw, &attempt); err != nil {
		return LoginAttempt{}, false, err
	}
	return attempt, true, nil
}

// Set implements AttemptStore.
func (s *RedisAttemptStore) Set(ctx context.Context, key string, attempt LoginAttempt, ttl time.Duration) error {
	payload, err := json.Marshal(attempt)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.prefix+key, payload, ttl).Err()
}

// Delete implements AttemptStore.
func (s *RedisAttemptStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}

// MemoryAttemptStore keeps attempt records in process memory. Records are
// not shared between instances and are lost on restart.
type MemoryAttemptStore struct {
	cache *ttlcache.Cache[string, LoginAttempt]
}

// NewMemoryAttemptStore builds an in-process attempt store. Reads do not
// extend a record's time to live.
func NewMemoryAttemptStore() *MemoryAttemptStore {
	return &MemoryAttemptStore{
		cache: ttlcache.New[string, LoginAttempt](ttlcache.WithDisableTouchOnHit[string, LoginAttempt]()),
	}
}

// Get implements AttemptStore.
func (s *MemoryAttemptStore) Get(_ context.Context, key string) (LoginAttempt, bool, error) {
	item := s.cache.Get(key)
	if item == nil || item.IsExpired() {
		return LoginAttempt{}, false, nil
	}
	return item.Value(), true, nil
}

// Set implements AttemptStore. A non-positive ttl keeps the record until it
// is deleted.
func (s *MemoryAttemptStore) Set(_ context.Context, key string, attempt LoginAttempt, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = ttlcache.NoTTL
	}
	s.cache.DeleteExpired()
	s.cache.Set(key, attempt, ttl)
	return nil
}

// Delete implements AttemptStore.
func (s *MemoryAttemptStore) Delete(_ context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}

// LoginLimiterConfig tunes the limiter thresholds.
type LoginLimiterConfig struct {
	MaxAttempts int
	BlockWindow time.Duration
}

// LoginFailure describes one failed login for throttling and auditing.
type LoginFailure struct {
	Email     string
	Role      string
	IPAddress string
	UserAgent string
	Reason    string
}

// LoginLimiter throttles repeated failed logins per role and email. Store and
// audit failures are logged and never block a login. A nil store disables
// throttling while failures are still audited.
type LoginLimiter struct {
	store       AttemptStore
	audits      repository.LoginAuditRepository
	maxAttempts int
	blockWindow time.Duration
	logger      zerolog.Logger
	now         func() time.Time
}

// NewLoginLimiter constructs the limiter.
func NewLoginLimiter(store AttemptStore, audits repository.LoginAuditRepository, cfg LoginLimiterConfig, logger zerolog.Logger) *LoginLimiter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultLoginMaxAttempts
	}
	if cfg.BlockWindow <= 0 {
		cfg.BlockWindow = DefaultLoginBlockWindow
	}
	return &LoginLimiter{
		store:       store,
		audits:      audits,
		maxAttempts: cfg.MaxAttempts,
		blockWindow: cfg.BlockWindow,
		logger:      logger.With().Str("component", "login_limiter").Logger(),
		now:         time.Now,
	}
}

// Enabled reports whether attempts are throttled.
func (l *LoginLimiter) Enabled() bool {
	return l != nil && l.store != nil
}

// IsBlocked reports whether the account is blocked and for how long.
func (l *LoginLimiter) IsBlocked(ctx context.Context, role, email string) (bool, time.Duration) {
	if !l.Enabled() {
		return false, 0
	}

	attempt, ok, err := l.store.Get(ctx, attemptKey(role, email))
	if err != nil {
		l.logger.Warn().Err(err).Str("role", role).Msg("failed to read login attempts")
		observability.LoginLimiterOutcomes().WithLabelValues("store_error").Inc()
		return false, 0
	}
	if !ok {
		return false, 0
	}

	now := l.now()
	if now.Before(attempt.BlockedUntil) {
		observability.LoginLimiterOutcomes().WithLabelValues("blocked").Inc()
		return true, attempt.BlockedUntil.Sub(now)
	}
	return false, 0
}

// RecordFailure counts a failed attempt, blocking the account once the
// threshold is reached, and appends it to the audit log.
func (l *LoginLimiter) RecordFailure(ctx context.Context, failure LoginFailure) {
	if l == nil {
		return
	}
	l.audit(ctx, failure)

	if !l.Enabled() {
		return
	}

	key := attemptKey(failure.Role, failure.Email)
	now := l.now()
	retention := attemptRetentionFactor * l.blockWindow

	attempt, ok, err := l.store.Get(ctx, key)
	if err != nil {
		l.logger.Warn().Err(err).Str("role", failure.Role).Msg("failed to read login attempts")
		observability.LoginLimiterOutcomes().WithLabelValues("store_error").Inc()
		return
	}
	if !ok || now.Sub(attempt.FirstAttemptAt) > retention {
		attempt = LoginAttempt{FirstAttemptAt: now}
	}

	attempt.Count++
	attempt.LastAttemptAt = now
	outcome := "failure"
	if attempt.Count >= l.maxAttempts {
		attempt.BlockedUntil = now.Add(l.blockWindow)
		outcome = "block"
	}

	if err := l.store.Set(ctx, key, attempt, retention); err != nil {
		l.logger.Warn().Err(err).Str("role", failure.Role).Msg("failed to store login attempts")
		observability.LoginLimiterOutcomes().WithLabelValues("store_error").Inc()
		return
	}
	observability.LoginLimiterOutcomes().WithLabelValues(outcome).Inc()
}

// RecordSuccess clears the failure record of the account.
func (l *LoginLimiter) RecordSuccess(ctx context.Context, role, email string) {
	if !l.Enabled() {
		return
	}
	if err := l.store.Delete(ctx, attemptKey(role, email)); err != nil {
		l.logger.Warn().Err(err).Str("role", role).Msg("failed to clear login attempts")
		observability.LoginLimiterOutcomes().WithLabelValues("store_error").Inc()
		return
	}
	observability.LoginLimiterOutcomes().WithLabelValues("success").Inc()
}

func (l *LoginLimiter) audit(ctx context.Context, failure LoginFailure) {
	if l.audits == nil {
		return
	}
	entry := models.LoginAudit{
		Email:     normalizeEmail(failure.Email),
		Role:      strings.ToLower(strings.TrimSpace(failure.Role)),
		IPAddress: failure.IPAddress,
		UserAgent: truncate(failure.UserAgent, 512),
		Reason:    failure.Reason,
	}
	if err := l.audits.Create(ctx, &entry); err != nil {
		l.logger.Warn().Err(err).Msg("failed to persist login audit")
	}
}

func attemptKey(role, email string) string {
	return strings.ToLower(strings.TrimSpace(role)) + ":" + normalizeEmail(email)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit]
}
