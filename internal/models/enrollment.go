package models

import (
	"time"

	"gorm.io/datatypes"
)

// CompletionStatus is the derived state of a progress record.
type CompletionStatus string

// Completion states.
const (
	CompletionInProgress CompletionStatus = "in-progress"
	CompletionCompleted  CompletionStatus = "completed"
)

// ModuleStatus is one student's progress on a single module.
type ModuleStatus struct {
	ModuleID  string    `json:"module_id"`
	Completed bool      `json:"completed"`
	TimeSpent float64   `json:"time_spent"`
	QuizScore *float64  `json:"quiz_score"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Enrollment is the progress record of one student in one course.
type Enrollment struct {
	ID                   uint                              `gorm:"primaryKey" json:"id"`
	StudentID            uint                              `gorm:"not null;uniqueIndex:idx_enrollments_student_course" json:"student_id"`
	CourseID             uint                              `gorm:"not null;uniqueIndex:idx_enrollments_student_course;index" json:"course_id"`
	ModulesStatus        datatypes.JSONSlice[ModuleStatus] `json:"modules_status"`
	CompletionStatus     CompletionStatus                  `gorm:"size:32;not null;default:'in-progress'" json:"completion_status"`
	CompletionPercentage float64                           `gorm:"not null;default:0" json:"completion_percentage"`
	ModuleSnapshotCount  int                               `gorm:"not null;default:0" json:"module_snapshot_count"`
	CompletedAt          *time.Time                        `json:"completed_at"`
	Version              int                               `gorm:"not null;default:1" json:"version"`
	CreatedAt            time.Time                         `json:"created_at"`
	UpdatedAt            time.Time                         `json:"updated_at"`
	Course               Course                            `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// StatusFor returns the progress entry for moduleID, if any.
func (e Enrollment) StatusFor(moduleID string) (ModuleStatus, bool) {
	for _, status := range e.ModulesStatus {
		if status.ModuleID == moduleID {
			return status, true
		}
	}
	return ModuleStatus{}, false
}

// IsCompleted reports whether the course is currently completed.
func (e Enrollment) IsCompleted() bool {
	return e.CompletionStatus == CompletionCompleted
}
