package dto

import (
	"time"

	"github.com/izumi-lms/izumi-api/internal/models"
)

// EnrollRequest enrolls the authenticated student into a course.
type EnrollRequest struct {
	CourseID uint `json:"course_id" validate:"required,gt=0"`
}

// ModuleProgressRequest upserts one module's progress. Absent fields are left unchanged.
type ModuleProgressRequest struct {
	TimeSpent *float64 `json:"time_spent" validate:"omitempty,gte=0"`
	Completed *bool    `json:"completed"`
	QuizScore *float64 `json:"quiz_score" validate:"omitempty,gte=0,lte=100"`
}

// QuizSubmitRequest carries the option index chosen for each question.
type QuizSubmitRequest struct {
	Answers   []int    `json:"answers" validate:"required,min=1,dive,gte=0"`
	TimeSpent *float64 `json:"time_spent" validate:"omitempty,gte=0"`
}

// ModuleStatusResponse is one entry of modules_status.
type ModuleStatusResponse struct {
	ModuleID  string    `json:"module_id"`
	Completed bool      `json:"completed"`
	TimeSpent float64   `json:"time_spent"`
	QuizScore *float64  `json:"quiz_score"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EnrollmentResponse is a student's progress record in one course.
type EnrollmentResponse struct {
	ID                      uint                   `json:"id"`
	StudentID               uint                   `json:"student_id"`
	CourseID                uint                   `json:"course_id"`
	Course                  *CourseSummary         `json:"course,omitempty"`
	CompletionStatus        string                 `json:"completion_status"`
	CompletionPercentage    float64                `json:"completion_percentage"`
	ModulesStatus           []ModuleStatusResponse `json:"modules_status"`
	TotalContentModules     int                    `json:"total_content_modules"`
	CompletedContentModules int                    `json:"completed_content_modules"`
	CompletedAt             *time.Time             `json:"completed_at,omitempty"`
	EnrolledAt              time.Time              `json:"enrolled_at"`
	UpdatedAt               time.Time              `json:"updated_at"`
}

// QuizResultResponse reports a graded quiz attempt with the updated record.
type QuizResultResponse struct {
	Score        float64            `json:"score"`
	Correct      int                `json:"correct"`
	Total        int                `json:"total"`
	PassingScore float64            `json:"passing_score"`
	Passed       bool               `json:"passed"`
	Enrollment   EnrollmentResponse `json:"enrollment"`
}

// CompletionEvent is published when an enrollment changes completion state.
type CompletionEvent struct {
	EnrollmentID uint      `json:"enrollment_id"`
	StudentID    uint      `json:"student_id"`
	CourseID     uint      `json:"course_id"`
	Previous     string    `json:"previous"`
	Current      string    `json:"current"`
	Percentage   float64   `json:"percentage"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// NewEnrollmentResponse converts an enrollment into a DTO. completed is the
// number of content modules the student has completed.
func NewEnrollmentResponse(enrollment models.Enrollment, completed int) EnrollmentResponse {
	statuses := make([]ModuleStatusResponse, 0, len(enrollment.ModulesStatus))
	for _, status := range enrollment.ModulesStatus {
		statuses = append(statuses, ModuleStatusResponse{
			ModuleID:  status.ModuleID,
			Completed: status.Completed,
			TimeSpent: status.TimeSpent,
			QuizScore: status.QuizScore,
			UpdatedAt: status.UpdatedAt,
		})
	}

	response := EnrollmentResponse{
		ID:                      enrollment.ID,
		StudentID:               enrollment.StudentID,
		CourseID:                enrollment.CourseID,
		CompletionStatus:        string(enrollment.CompletionStatus),
		CompletionPercentage:    enrollment.CompletionPercentage,
		ModulesStatus:           statuses,
		TotalContentModules:     enrollment.ModuleSnapshotCount,
		CompletedContentModules: completed,
		CompletedAt:             enrollment.CompletedAt,
		EnrolledAt:              enrollment.CreatedAt,
		UpdatedAt:               enrollment.UpdatedAt,
	}

	if enrollment.Course.ID != 0 {
		summary := NewCourseSummary(enrollment.Course)
		response.Course = &summary
	}

	return response
}

// CourseProgressRow is one student's progress in an instructor's course.
type CourseProgressRow struct {
	EnrollmentID         uint      `json:"enrollment_id"`
	StudentID            uint      `json:"student_id"`
	StudentName          string    `json:"student_name"`
	StudentEmail         string    `json:"student_email"`
	CompletionStatus     string    `json:"completion_status"`
	CompletionPercentage float64   `json:"completion_percentage"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// CourseProgressResponse reports progress of every enrolled student.
type CourseProgressResponse struct {
	CourseID       uint                `json:"course_id"`
	Enrolled       int                 `json:"enrolled"`
	Completed      int                 `json:"completed"`
	AveragePercent float64             `json:"average_percentage"`
	Students       []CourseProgressRow `json:"students"`
}
