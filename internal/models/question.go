package models

import "time"

// CourseQuestion is a student question posted on a course.
type CourseQuestion struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	CourseID         uint           `gorm:"index;not null" json:"course_id"`
	AuthorID         uint           `gorm:"index;not null" json:"author_id"`
	ModuleID         string         `gorm:"size:64" json:"module_id"`
	Title            string         `gorm:"size:255;not null" json:"title"`
	Body             string         `gorm:"type:text" json:"body"`
	AcceptedAnswerID *uint          `json:"accepted_answer_id"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	Answers          []CourseAnswer `gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE" json:"answers"`
}

// CourseAnswer is a reply to a CourseQuestion.
type CourseAnswer struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	QuestionID uint      `gorm:"index;not null" json:"question_id"`
	AuthorID   uint      `gorm:"index;not null" json:"author_id"`
	Body       string    `gorm:"type:text;not null" json:"body"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
