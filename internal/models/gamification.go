package models

import (
	"time"

	"gorm.io/datatypes"
)

// Badge identifiers.
const (
	BadgeFirstSteps = "first-steps"
	BadgeQuizAce    = "quiz-ace"
	BadgeGraduate   = "graduate"
)

// Point event reasons.
const (
	PointReasonModuleCompleted = "module_completed"
	PointReasonQuizExcellence  = "quiz_excellence"
	PointReasonCourseCompleted = "course_completed"
)

// UserPoints is the running gamification balance of a user.
type UserPoints struct {
	UserID    uint                        `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	Points    int                         `gorm:"not null;default:0;index" json:"points"`
	Badges    datatypes.JSONSlice[string] `json:"badges"`
	UpdatedAt time.Time                   `json:"updated_at"`
}

// HasBadge reports whether the badge was already awarded.
func (p UserPoints) HasBadge(badge string) bool {
	for _, existing := range p.Badges {
		if existing == badge {
			return true
		}
	}
	return false
}

// PointEvent is one ledger entry behind a UserPoints balance. Each award is
// recorded at most once per user, course, module and reason.
type PointEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_point_events_award" json:"user_id"`
	CourseID  uint      `gorm:"not null;uniqueIndex:idx_point_events_award" json:"course_id"`
	ModuleID  string    `gorm:"size:64;not null;default:'';uniqueIndex:idx_point_events_award" json:"module_id"`
	Reason    string    `gorm:"size:64;not null;uniqueIndex:idx_point_events_award" json:"reason"`
	Points    int       `gorm:"not null" json:"points"`
	CreatedAt time.Time `json:"created_at"`
}
