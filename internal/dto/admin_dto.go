package dto

import (
	"time"

	"gorm.io/datatypes"

	"github.com/izumi-lms/izumi-api/internal/models"
)

// AdminUserListRequest defines filters for listing accounts.
type AdminUserListRequest struct {
	Page     int
	PageSize int
	Search   string
	Role     string
	Active   *bool
}

// AdminUserResponse serializes account data for admin endpoints.
type AdminUserResponse struct {
	ID          uint       `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Role        string     `json:"role"`
	Active      bool       `json:"active"`
	LastLoginAt *time.Time `json:"last_login_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// AdminUserListResponse wraps a paginated account listing.
type AdminUserListResponse struct {
	Items      []AdminUserResponse `json:"items"`
	Pagination PaginationMeta      `json:"pagination"`
}

// AdminUserUpdateRequest captures partial account updates.
type AdminUserUpdateRequest struct {
	Name   *string `json:"name" validate:"omitempty,min=1,max=255"`
	Role   *string `json:"role" validate:"omitempty,oneof=student instructor admin"`
	Active *bool   `json:"active"`
}

// NewAdminUserResponse converts a user model into a DTO.
func NewAdminUserResponse(user models.User) AdminUserResponse {
	return AdminUserResponse{
		ID:          user.ID,
		Name:        user.Name,
		Email:       user.Email,
		Role:        user.Role,
		Active:      user.Active,
		LastLoginAt: user.LastLoginAt,
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
	}
}

// CourseStat summarises enrollments for a single course.
type CourseStat struct {
	CourseID    uint    `json:"course_id"`
	Title       string  `json:"title"`
	Enrollments int64   `json:"enrollments"`
	Completed   int64   `json:"completed"`
	AvgProgress float64 `json:"average_progress"`
}

// AdminAnalyticsResponse aggregates platform metrics for administrators.
type AdminAnalyticsResponse struct {
	UsersByRole          map[string]int64 `json:"users_by_role"`
	CoursesByStatus      map[string]int64 `json:"courses_by_status"`
	Enrollments          int64            `json:"enrollments"`
	CompletedEnrollments int64            `json:"completed_enrollments"`
	CompletionRate       float64          `json:"completion_rate"`
	AverageProgress      float64          `json:"average_progress"`
	FailedLogins24h      int64            `json:"failed_logins_24h"`
	TopCourses           []CourseStat     `json:"top_courses"`
	GeneratedAt          time.Time        `json:"generated_at"`
	CacheHit             bool             `json:"cache_hit"`
}

// AdminActivityListRequest defines filters for retrieving activity logs.
type AdminActivityListRequest struct {
	Page       int
	PageSize   int
	ActorID    uint
	Action     string
	EntityType string
}

// AdminActivityResponse serializes activity log entries.
type AdminActivityResponse struct {
	ID         uint                   `json:"id"`
	ActorID    uint                   `json:"actor_id"`
	ActorRole  string                 `json:"actor_role"`
	Action     string                 `json:"action"`
	EntityType string                 `json:"entity_type"`
	EntityID   *uint                  `json:"entity_id"`
	Metadata   map[string]interface{} `json:"metadata"`
	CreatedAt  time.Time              `json:"created_at"`
}

// AdminActivityListResponse wraps paginated activity logs.
type AdminActivityListResponse struct {
	Items      []AdminActivityResponse `json:"items"`
	Pagination PaginationMeta          `json:"pagination"`
}

// LoginAuditListRequest defines filters for failed-login audits.
type LoginAuditListRequest struct {
	Page     int
	PageSize int
	Email    string
	Reason   string
}

// LoginAuditResponse serializes a failed login attempt.
type LoginAuditResponse struct {
	ID        uint      `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// LoginAuditListResponse wraps paginated login audits.
type LoginAuditListResponse struct {
	Items      []LoginAuditResponse `json:"items"`
	Pagination PaginationMeta       `json:"pagination"`
}

// NewLoginAuditResponse converts an audit model into a DTO.
func NewLoginAuditResponse(entry models.LoginAudit) LoginAuditResponse {
	return LoginAuditResponse{
		ID:        entry.ID,
		Email:     entry.Email,
		Role:      entry.Role,
		IPAddress: entry.IPAddress,
		UserAgent: entry.UserAgent,
		Reason:    entry.Reason,
		CreatedAt: entry.CreatedAt,
	}
}

func metadataFromJSON(data datatypes.JSONMap) map[string]interface{} {
	if data == nil {
		return map[string]interface{}{}
	}
	return map[string]interface{}(data)
}

// NewAdminActivityResponse converts a model into an activity DTO.
func NewAdminActivityResponse(entry models.ActivityLog) AdminActivityResponse {
	return AdminActivityResponse{
		ID:         entry.ID,
		ActorID:    entry.ActorID,
		ActorRole:  entry.ActorRole,
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Metadata:   metadataFromJSON(entry.Metadata),
		CreatedAt:  entry.CreatedAt,
	}
}
