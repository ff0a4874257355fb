package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/izumi-lms/izumi-api/internal/models"
)

// QuestionRepository persists course questions and their answers.
type QuestionRepository interface {
	ListByCourse(ctx context.Context, courseID uint, limit, offset int) ([]models.CourseQuestion, int64, error)
	Get(ctx context.Context, id uint) (models.CourseQuestion, error)
	Create(ctx context.Context, question *models.CourseQuestion) error
	Delete(ctx context.Context, id uint) error
	CreateAnswer(ctx context.Context, answer *models.CourseAnswer) error
	GetAnswer(ctx context.Context, id uint) (models.CourseAnswer, error)
	AcceptAnswer(ctx context.Context, questionID, answerID uint) error
}

type questionRepository struct {
	db *gorm.DB
}

// NewQuestionRepository constructs a GORM-backed repository.
func NewQuestionRepository(db *gorm.DB) QuestionRepository {
	return &questionRepository{db: db}
}

func (r *questionRepository) ListByCourse(ctx context.Context, courseID uint, limit, offset int) ([]models.CourseQuestion, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	query := r.db.WithContext(ctx).Model(&models.CourseQuestion{}).Where("course_id = ?", courseID)

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var questions []models.CourseQuestion
	if err := query.
		Preload("Answers", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Order("updated_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&questions).Error; err != nil {
		return nil, 0, err
	}

	return questions, total, nil
}

func (r *questionRepository) Get(ctx context.Context, id uint) (models.CourseQuestion, error) {
	var question models.CourseQuestion
	if err := r.db.WithContext(ctx).Preload("Answers", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at ASC")
	}).First(&question, id).Error; err != nil {
		return models.CourseQuestion{}, err
	}
	return question, nil
}

func (r *questionRepository) Create(ctx context.Context, question *models.CourseQuestion) error {
	return r.db.WithContext(ctx).Omit("Answers").Create(question).Error
}

func (r *questionRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var exists int64
		if err := tx.Model(&models.CourseQuestion{}).Where("id = ?", id).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return gorm.ErrRecordNotFound
		}
		return deleteQuestions(tx, []uint{id})
	})
}

func (r *questionRepository) CreateAnswer(ctx context.Context, answer *models.CourseAnswer) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(answer).Error; err != nil {
			return err
		}

		return tx.Model(&models.CourseQuestion{}).
			Where("id = ?", answer.QuestionID).
			UpdateColumn("updated_at", answer.CreatedAt).
			Error
	})
}

func (r *questionRepository) GetAnswer(ctx context.Context, id uint) (models.CourseAnswer, error) {
	var answer models.CourseAnswer
	if err := r.db.WithContext(ctx).First(&answer, id).Error; err != nil {
		return models.CourseAnswer{}, err
	}
	return answer, nil
}

func (r *questionRepository) AcceptAnswer(ctx context.Context, questionID, answerID uint) error {
	result := r.db.WithContext(ctx).Model(&models.CourseQuestion{}).
		Where("id = ?", questionID).
		Update("accepted_answer_id", answerID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
