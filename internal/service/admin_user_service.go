package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/izumi-lms/izumi-api/internal/dto"
	"github.com/izumi-lms/izumi-api/internal/repository"
)

// AdminUserService orchestrates account management for administrators.
type AdminUserService interface {
	List(ctx context.Context, req dto.AdminUserListRequest) (dto.AdminUserListResponse, error)
	Update(ctx context.Context, actor Actor, id uint, payload dto.AdminUserUpdateRequest) (dto.AdminUserResponse, error)
	Delete(ctx context.Context, actor Actor, id uint) error
}

type adminUserService struct {
	users     repository.UserRepository
	validator *validator.Validate
	activity  ActivityRecorder
	logger    zerolog.Logger
}

// NewAdminUserService constructs the admin account service.
func NewAdminUserService(users repository.UserRepository, validate *validator.Validate, activity ActivityRecorder, logger zerolog.Logger) AdminUserService {
	return &adminUserService{
		users:     users,
		validator: validate,
		activity:  activity,
		logger:    logger.With().Str("component", "admin_user_service").Logger(),
	}
}

func (s *adminUserService) List(ctx context.Context, req dto.AdminUserListRequest) (dto.AdminUserListResponse, error) {
	page := maxInt(req.Page, 1)
	size := clampPageSize(req.PageSize)

	users, total, err := s.users.List(ctx, repository.UserFilter{
		Search:   strings.TrimSpace(req.Search),
		Role:     strings.ToLower(strings.TrimSpace(req.Role)),
		Active:   req.Active,
		Page:     page,
		PageSize: size,
	})
	if err != nil {
		return dto.AdminUserListResponse{}, err
	}

	responses := make([]dto.AdminUserResponse, 0, len(users))
	for _, user := range users {
		responses = append(responses, dto.NewAdminUserResponse(user))
	}

	return dto.AdminUserListResponse{Items: responses, Pagination: paginationMeta(page, size, total)}, nil
}

// Update applies partial account changes. Admins may not demote or
// deactivate themselves.
func (s *adminUserService) Update(ctx context.Context, actor Actor, id uint, payload dto.AdminUserUpdateRequest) (dto.AdminUserResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AdminUserResponse{}, err
	}

	updates := make(map[string]interface{})
	changedFields := make([]string, 0, 3)

	if payload.Name != nil {
		updates["name"] = strings.TrimSpace(*payload.Name)
		changedFields = append(changedFields, "name")
	}
	if payload.Role != nil {
		if id == actor.ID && *payload.Role != actor.Role {
			return dto.AdminUserResponse{}, ErrForbidden
		}
		updates["role"] = *payload.Role
		changedFields = append(changedFields, "role")
	}
	if payload.Active != nil {
		if id == actor.ID && !*payload.Active {
			return dto.AdminUserResponse{}, ErrForbidden
		}
		updates["active"] = *payload.Active
		changedFields = append(changedFields, "active")
	}

	if len(updates) == 0 {
		user, err := s.users.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.AdminUserResponse{}, ErrUserNotFound
			}
			return dto.AdminUserResponse{}, err
		}
		return dto.NewAdminUserResponse(user), nil
	}

	user, err := s.users.Update(ctx, id, updates)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AdminUserResponse{}, ErrUserNotFound
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.AdminUserResponse{}, ErrEmailTaken
		}
		return dto.AdminUserResponse{}, err
	}

	metadata := map[string]interface{}{"user_id": id, "fields": changedFields}
	if payload.Role != nil {
		metadata["role"] = *payload.Role
	}
	record(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     "user.updated",
		EntityType: "user",
		EntityID:   &id,
		Metadata:   metadata,
	})

	return dto.NewAdminUserResponse(user), nil
}

// Delete removes an account and everything it owns.
func (s *adminUserService) Delete(ctx context.Context, actor Actor, id uint) error {
	if id == actor.ID {
		return ErrForbidden
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	s.logger.Info().Uint("user_id", id).Uint("actor_id", actor.ID).Msg("user deleted")
	record(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     "user.deleted",
		EntityType: "user",
		EntityID:   &id,
		Metadata:   map[string]interface{}{"user_id": id, "role": user.Role},
	})
	return nil
}
