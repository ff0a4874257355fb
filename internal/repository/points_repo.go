package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/izumi-lms/izumi-api/internal/models"
)

// PointsRepository persists the gamification ledger and balances.
type PointsRepository interface {
	Award(ctx context.Context, event *models.PointEvent, badge string) (models.UserPoints, bool, error)
	Get(ctx context.Context, userID uint) (models.UserPoints, error)
	Top(ctx context.Context, limit int) ([]models.UserPoints, error)
}

type pointsRepository struct {
	db *gorm.DB
}

// NewPointsRepository constructs the gamification repository.
func NewPointsRepository(db *gorm.DB) PointsRepository {
	return &pointsRepository{db: db}
}

// Award records event and credits its points. An event already recorded for
// the same user, course, module and reason is ignored and reported as not
// awarded. A non-empty badge is added to the balance when missing.
func (r *pointsRepository) Award(ctx context.Context, event *models.PointEvent, badge string) (models.UserPoints, bool, error) {
	var (
		balance models.UserPoints
		awarded bool
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		insert := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(event)
		if insert.Error != nil {
			return insert.Error
		}

		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where(models.UserPoints{UserID: event.UserID}).
			Attrs(models.UserPoints{Badges: []string{}}).
			FirstOrCreate(&balance).Error; err != nil {
			return err
		}

		if insert.RowsAffected == 0 {
			return nil
		}
		awarded = true

		balance.Points += event.Points
		if badge != "" && !balance.HasBadge(badge) {
			balance.Badges = append(balance.Badges, badge)
		}
		return tx.Save(&balance).Error
	})
	if err != nil {
		return models.UserPoints{}, false, err
	}

	return balance, awarded, nil
}

func (r *pointsRepository) Get(ctx context.Context, userID uint) (models.UserPoints, error) {
	var balance models.UserPoints
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&balance).Error; err != nil {
		return models.UserPoints{}, err
	}
	return balance, nil
}

func (r *pointsRepository) Top(ctx context.Context, limit int) ([]models.UserPoints, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	var balances []models.UserPoints
	if err := r.db.WithContext(ctx).
		Where("points > 0").
		Order("points DESC").
		Order("user_id ASC").
		Limit(limit).
		Find(&balances).Error; err != nil {
		return nil, err
	}
	return balances, nil
}
