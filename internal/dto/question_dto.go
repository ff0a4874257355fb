package dto

import (
	"time"

	"github.com/izumi-lms/izumi-api/internal/models"
)

// QuestionCreateRequest posts a question on a course.
type QuestionCreateRequest struct {
	Title    string `json:"title" validate:"required,min=3,max=255"`
	Body     string `json:"body" validate:"omitempty,max=10000"`
	ModuleID string `json:"module_id" validate:"omitempty,max=64"`
}

// AnswerCreateRequest replies to a question.
type AnswerCreateRequest struct {
	Body string `json:"body" validate:"required,min=1,max=10000"`
}

// AnswerResponse is the serialized answer.
type AnswerResponse struct {
	ID         uint      `json:"id"`
	QuestionID uint      `json:"question_id"`
	AuthorID   uint      `json:"author_id"`
	Body       string    `json:"body"`
	Accepted   bool      `json:"accepted"`
	CreatedAt  time.Time `json:"created_at"`
}

// QuestionResponse is the serialized question.
type QuestionResponse struct {
	ID               uint             `json:"id"`
	CourseID         uint             `json:"course_id"`
	AuthorID         uint             `json:"author_id"`
	ModuleID         string           `json:"module_id,omitempty"`
	Title            string           `json:"title"`
	Body             string           `json:"body"`
	AcceptedAnswerID *uint            `json:"accepted_answer_id"`
	AnswerCount      int              `json:"answer_count"`
	Answers          []AnswerResponse `json:"answers,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// NewAnswerResponse converts an answer model into a DTO.
func NewAnswerResponse(answer models.CourseAnswer, acceptedID *uint) AnswerResponse {
	return AnswerResponse{
		ID:         answer.ID,
		QuestionID: answer.QuestionID,
		AuthorID:   answer.AuthorID,
		Body:       answer.Body,
		Accepted:   acceptedID != nil && *acceptedID == answer.ID,
		CreatedAt:  answer.CreatedAt,
	}
}

// NewQuestionResponse converts a question and any preloaded answers into a DTO.
func NewQuestionResponse(question models.CourseQuestion) QuestionResponse {
	answers := make([]AnswerResponse, 0, len(question.Answers))
	for _, answer := range question.Answers {
		answers = append(answers, NewAnswerResponse(answer, question.AcceptedAnswerID))
	}

	return QuestionResponse{
		ID:               question.ID,
		CourseID:         question.CourseID,
		AuthorID:         question.AuthorID,
		ModuleID:         question.ModuleID,
		Title:            question.Title,
		Body:             question.Body,
		AcceptedAnswerID: question.AcceptedAnswerID,
		AnswerCount:      len(question.Answers),
		Answers:          answers,
		CreatedAt:        question.CreatedAt,
		UpdatedAt:        question.UpdatedAt,
	}
}

// NewQuestionResponseSlice converts questions into DTOs.
func NewQuestionResponseSlice(questions []models.CourseQuestion) []QuestionResponse {
	out := make([]QuestionResponse, 0, len(questions))
	for _, question := range questions {
		out = append(out, NewQuestionResponse(question))
	}
	return out
}

// QuestionListRequest pages through a course's questions.
type QuestionListRequest struct {
	Page     int
	PageSize int
}

// QuestionListResponse wraps a page of questions.
type QuestionListResponse struct {
	Items      []QuestionResponse `json:"items"`
	Pagination PaginationMeta     `json:"pagination"`
}
