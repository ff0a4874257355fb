package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/izumi-lms/izumi-api/internal/dto"
	"github.com/izumi-lms/izumi-api/internal/models"
	"github.com/izumi-lms/izumi-api/internal/repository"
)

// Login failure reasons written to the audit log.
const (
	LoginFailureUnknownUser = "unknown_user"
	LoginFailureBadPassword = "bad_password"
	LoginFailureInactive    = "inactive"
)

// TokenSigner issues an access token for a user and role.
type TokenSigner func(userID uint, role string) (string, time.Time, error)

// LoginMeta describes the client performing a login.
type LoginMeta struct {
	IPAddress string
	UserAgent string
}

// AuthService exposes registration and login use-cases.
type AuthService interface {
	Register(ctx context.Context, payload dto.RegisterRequest) (dto.UserResponse, error)
	Login(ctx context.Context, payload dto.LoginRequest, meta LoginMeta) (dto.AuthResponse, error)
	Me(ctx context.Context, userID uint) (dto.UserResponse, error)
	EnsureAdmin(ctx context.Context, email, password string) error
}

type authService struct {
	users      repository.UserRepository
	limiter    *LoginLimiter
	signer     TokenSigner
	validator  *validator.Validate
	logger     zerolog.Logger
	bcryptCost int
	now        func() time.Time
}

// NewAuthService constructs the authentication service.
func NewAuthService(users repository.UserRepository, limiter *LoginLimiter, signer TokenSigner, validate *validator.Validate, logger zerolog.Logger) AuthService {
	return &authService{
		users:      users,
		limiter:    limiter,
		signer:     signer,
		validator:  validate,
		logger:     logger.With().Str("component", "auth_service").Logger(),
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
	}
}

func (s *authService) Register(ctx context.Context, payload dto.RegisterRequest) (dto.UserResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.UserResponse{}, err
	}

	email := normalizeEmail(payload.Email)
	if _, err := s.users.GetByEmailRole(ctx, email, payload.Role); err == nil {
		return dto.UserResponse{}, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.UserResponse{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(payload.Password), s.bcryptCost)
	if err != nil {
		return dto.UserResponse{}, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		Name:         strings.TrimSpace(payload.Name),
		Email:        email,
		Role:         payload.Role,
		PasswordHash: string(hash),
		Active:       true,
	}
	if err := s.users.Create(ctx, &user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.UserResponse{}, ErrEmailTaken
		}
		return dto.UserResponse{}, err
	}

	s.logger.Info().Uint("user_id", user.ID).Str("role", user.Role).Msg("user registered")
	return dto.NewUserResponse(user), nil
}

func (s *authService) Login(ctx context.Context, payload dto.LoginRequest, meta LoginMeta) (dto.AuthResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AuthResponse{}, err
	}

	email := normalizeEmail(payload.Email)
	if blocked, remaining := s.limiter.IsBlocked(ctx, payload.Role, email); blocked {
		return dto.AuthResponse{}, fmt.Errorf("%w: retry in %s", ErrLoginBlocked, remaining.Round(time.Second))
	}

	failure := LoginFailure{Email: email, Role: payload.Role, IPAddress: meta.IPAddress, UserAgent: meta.UserAgent}

	user, err := s.users.GetByEmailRole(ctx, email, payload.Role)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			failure.Reason = LoginFailureUnknownUser
			s.limiter.RecordFailure(ctx, failure)
			return dto.AuthResponse{}, ErrInvalidCredentials
		}
		return dto.AuthResponse{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(payload.Password)); err != nil {
		failure.Reason = LoginFailureBadPassword
		s.limiter.RecordFailure(ctx, failure)
		return dto.AuthResponse{}, ErrInvalidCredentials
	}

	if !user.Active {
		failure.Reason = LoginFailureInactive
		s.limiter.RecordFailure(ctx, failure)
		return dto.AuthResponse{}, ErrInvalidCredentials
	}

	s.limiter.RecordSuccess(ctx, payload.Role, email)

	now := s.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn().Err(err).Uint("user_id", user.ID).Msg("failed to record last login")
	} else {
		user.LastLoginAt = &now
	}

	token, expiresAt, err := s.signer(user.ID, user.Role)
	if err != nil {
		return dto.AuthResponse{}, err
	}

	return dto.AuthResponse{Token: token, ExpiresAt: expiresAt, User: dto.NewUserResponse(user)}, nil
}

func (s *authService) Me(ctx context.Context, userID uint) (dto.UserResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UserResponse{}, ErrUserNotFound
		}
		return dto.UserResponse{}, err
	}
	return dto.NewUserResponse(user), nil
}

// EnsureAdmin creates the admin account when missing. Existing accounts are
// left untouched.
func (s *authService) EnsureAdmin(ctx context.Context, email, password string) error {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil
	}

	if _, err := s.users.GetByEmailRole(ctx, email, models.RoleAdmin); err == nil {
		return nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	admin := models.User{
		Name:         "Administrator",
		Email:        email,
		Role:         models.RoleAdmin,
		PasswordHash: string(hash),
		Active:       true,
	}
	if err := s.users.Create(ctx, &admin); err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		return err
	}

	s.logger.Info().Str("email", email).Msg("admin account seeded")
	return nil
}
