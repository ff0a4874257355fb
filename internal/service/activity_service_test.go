package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/izumi-lms/izumi-api/internal/dto"
	"github.com/izumi-lms/izumi-api/internal/models"
	"github.com/izumi-lms/izumi-api/internal/repository"
)

type failingActivityRepo struct {
	repository.ActivityLogRepository
}

func (failingActivityRepo) Create(ctx context.Context, entry *models.ActivityLog) error {
	return errors.New("disk full")
}

func TestActivityServiceRecordMasksSecrets(t *testing.T) {
	db := newTestDB(t)
	svc := NewActivityService(repository.NewActivityLogRepository(db), repository.NewLoginAuditRepository(db), testLogger())

	entry, err := svc.Record(context.Background(), ActivityEntry{
		ActorID:    1,
		ActorRole:  "Admin",
		Action:     "User.Updated",
		EntityType: "User",
		EntityID:   ptrUint(5),
		Metadata: map[string]interface{}{
			"email":        "student@example.com",
			"reset_token":  "abc",
			"new_password": "hunter2",
			"field":        "status",
		},
	})
	require.NoError(t, err)
	require.Equal(t, "***", entry.Metadata["email"])
	require.Equal(t, "***", entry.Metadata["reset_token"])
	require.Equal(t, "***", entry.Metadata["new_password"])
	require.Equal(t, "status", entry.Metadata["field"])
	require.Equal(t, "admin", entry.ActorRole)
	require.Equal(t, "user.updated", entry.Action)

	_, err = svc.Record(context.Background(), ActivityEntry{EntityType: "user"})
	require.Error(t, err)
	_, err = svc.Record(context.Background(), ActivityEntry{Action: "user.deleted"})
	require.Error(t, err)
}

func TestActivityServiceListFilters(t *testing.T) {
	db := newTestDB(t)
	svc := NewActivityService(repository.NewActivityLogRepository(db), repository.NewLoginAuditRepository(db), testLogger())
	ctx := context.Background()

	for _, entry := range []ActivityEntry{
		{ActorID: 1, ActorRole: models.RoleAdmin, Action: "user.updated", EntityType: "user"},
		{ActorID: 1, ActorRole: models.RoleAdmin, Action: "user.deleted", EntityType: "user"},
		{ActorID: 2, Action: "course.deleted", EntityType: "course"},
	} {
		_, err := svc.Record(ctx, entry)
		require.NoError(t, err)
	}

	all, err := svc.List(ctx, dto.AdminActivityListRequest{})
	require.NoError(t, err)
	require.Equal(t, int64(3), all.Pagination.TotalItems)

	byActor, err := svc.List(ctx, dto.AdminActivityListRequest{ActorID: 1})
	require.NoError(t, err)
	require.Len(t, byActor.Items, 2)

	byEntity, err := svc.List(ctx, dto.AdminActivityListRequest{EntityType: "Course"})
	require.NoError(t, err)
	require.Len(t, byEntity.Items, 1)
	require.Equal(t, "system", byEntity.Items[0].ActorRole)
}

func TestActivityServiceListsLoginAudits(t *testing.T) {
	db := newTestDB(t)
	audits := repository.NewLoginAuditRepository(db)
	svc := NewActivityService(repository.NewActivityLogRepository(db), audits, testLogger())
	ctx := context.Background()

	for _, audit := range []models.LoginAudit{
		{Email: "ana@izumi.test", Role: models.RoleStudent, Reason: "invalid_credentials"},
		{Email: "ana@izumi.test", Role: models.RoleStudent, Reason: "blocked"},
		{Email: "bo@izumi.test", Role: models.RoleInstructor, Reason: "invalid_credentials"},
	} {
		audit := audit
		require.NoError(t, audits.Create(ctx, &audit))
	}

	byEmail, err := svc.ListLoginAudits(ctx, dto.LoginAuditListRequest{Email: " ANA@izumi.test "})
	require.NoError(t, err)
	require.Len(t, byEmail.Items, 2)

	byReason, err := svc.ListLoginAudits(ctx, dto.LoginAuditListRequest{Reason: "blocked", PageSize: 1})
	require.NoError(t, err)
	require.Len(t, byReason.Items, 1)
	require.Equal(t, 1, byReason.Pagination.PageSize)
}

func TestRecordHelperSwallowsFailures(t *testing.T) {
	record(context.Background(), nil, testLogger(), ActivityEntry{Action: "noop", EntityType: "user"})

	svc := NewActivityService(failingActivityRepo{}, nil, testLogger())
	record(context.Background(), svc, testLogger(), ActivityEntry{Action: "user.deleted", EntityType: "user"})
}
