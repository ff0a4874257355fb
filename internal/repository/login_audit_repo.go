package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/izumi-lms/izumi-api/internal/models"
)

// LoginAuditFilter narrows failed-login audit queries.
type LoginAuditFilter struct {
	Page     int
	PageSize int
	Email    string
	Reason   string
}

// LoginAuditRepository persists failed login attempts.
type LoginAuditRepository interface {
	Create(ctx context.Context, entry *models.LoginAudit) error
	List(ctx context.Context, filter LoginAuditFilter) ([]models.LoginAudit, int64, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
}

type loginAuditRepository struct {
	db *gorm.DB
}

// NewLoginAuditRepository constructs the login audit repository.
func NewLoginAuditRepository(db *gorm.DB) LoginAuditRepository {
	return &loginAuditRepository{db: db}
}

func (r *loginAuditRepository) Create(ctx context.Context, entry *models.LoginAudit) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *loginAuditRepository) List(ctx context.Context, filter LoginAuditFilter) ([]models.LoginAudit, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.LoginAudit{})
	if filter.Email != "" {
		query = query.Where("email = ?", strings.ToLower(strings.TrimSpace(filter.Email)))
	}
	if filter.Reason != "" {
		query = query.Where("reason = ?", filter.Reason)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []models.LoginAudit
	if err := paginate(query.Order("created_at DESC").Order("id DESC"), filter.Page, filter.PageSize).Find(&entries).Error; err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (r *loginAuditRepository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.LoginAudit{}).Where("created_at >= ?", since).Count(&count).Error
	return count, err
}
