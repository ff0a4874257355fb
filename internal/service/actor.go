package service

import "github.com/izumi-lms/izumi-api/internal/models"

// Actor is the authenticated caller of a use-case.
type Actor struct {
	ID   uint
	Role string
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// IsInstructor reports whether the actor holds the instructor role.
func (a Actor) IsInstructor() bool {
	return a.Role == models.RoleInstructor
}

// CanManage reports whether the actor owns the course or is an admin.
func (a Actor) CanManage(course models.Course) bool {
	return a.IsAdmin() || (a.IsInstructor() && course.InstructorID == a.ID)
}
