package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/izumi-lms/izumi-api/internal/dto"
	"github.com/izumi-lms/izumi-api/internal/models"
)

// Progress event kinds, appended to the subject base.
const (
	EventCourseCompleted = "course_completed"
	EventCourseReopened  = "course_reopened"
)

// ProgressEventPublisher fans out completion transitions.
type ProgressEventPublisher interface {
	PublishCompletion(ctx context.Context, event dto.CompletionEvent)
}

type progressEnvelope struct {
	Source string              `json:"source"`
	Kind   string              `json:"kind"`
	Event  dto.CompletionEvent `json:"event"`
	SentAt time.Time           `json:"sent_at"`
}

type progressEventPublisher struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	nodeID       string
}

// NewProgressEventPublisher publishes completion transitions to NATS and
// redis pub/sub. Either transport may be nil; with neither the publisher is
// a no-op.
func NewProgressEventPublisher(natsConn *nats.Conn, redisClient *redis.Client, subjectBase string, logger zerolog.Logger) ProgressEventPublisher {
	subject := ""
	channel := ""
	if subjectBase != "" {
		subject = strings.ReplaceAll(subjectBase, ":", ".") + ".progress"
		channel = strings.ReplaceAll(subjectBase, ".", ":") + ":progress"
	}

	return &progressEventPublisher{
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		logger:       logger.With().Str("component", "progress_events").Logger(),
		nodeID:       uuid.NewString(),
	}
}

// SubjectFor returns the NATS subject of a transition kind.
func SubjectFor(subjectBase, kind string) string {
	return strings.ReplaceAll(subjectBase, ":", ".") + ".progress." + kind
}

func (p *progressEventPublisher) PublishCompletion(ctx context.Context, event dto.CompletionEvent) {
	kind := EventCourseReopened
	if event.Current == string(models.CompletionCompleted) {
		kind = EventCourseCompleted
	}

	payload, err := json.Marshal(progressEnvelope{
		Source: p.nodeID,
		Kind:   kind,
		Event:  event,
		SentAt: time.Now().UTC(),
	})
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to encode progress event")
		return
	}

	if p.nats != nil && p.natsSubject != "" {
		if err := p.nats.Publish(p.natsSubject+"."+kind, payload); err != nil {
			p.logger.Warn().Err(err).Str("kind", kind).Msg("failed to publish progress event to nats")
		}
	}

	if p.redis != nil && p.redisChannel != "" {
		if err := p.redis.Publish(ctx, p.redisChannel, payload).Err(); err != nil {
			p.logger.Warn().Err(err).Str("kind", kind).Msg("failed to publish progress event to redis")
		}
	}
}
