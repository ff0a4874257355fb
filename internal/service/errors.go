package service

import "errors"

var (
	// ErrCourseNotFound is returned when a course does not exist or is hidden from the caller.
	ErrCourseNotFound = errors.New("course not found")
	// ErrModuleNotFound is returned when a module id is not part of the course.
	ErrModuleNotFound = errors.New("module not found")
	// ErrEnrollmentNotFound is returned when the student is not enrolled in the course.
	ErrEnrollmentNotFound = errors.New("enrollment not found")
	// ErrAlreadyEnrolled is returned on a second enrollment into the same course.
	ErrAlreadyEnrolled = errors.New("already enrolled in course")
	// ErrCourseNotPublished is returned when enrolling into a draft or archived course.
	ErrCourseNotPublished = errors.New("course is not published")
	// ErrForbidden is returned when the actor may not perform the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidCredentials is returned on a failed login.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrLoginBlocked is returned while the login limiter blocks an account.
	ErrLoginBlocked = errors.New("too many failed login attempts")
	// ErrEmailTaken is returned when registering an email already used for the role.
	ErrEmailTaken = errors.New("email already registered")
	// ErrUserNotFound is returned when an account does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrQuestionNotFound is returned when a question or answer does not exist.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrProgressConflict is returned when concurrent progress writes kept colliding.
	ErrProgressConflict = errors.New("progress was updated concurrently, retry")
	// ErrInvalidModuleContent is returned when module content fails schema validation.
	ErrInvalidModuleContent = errors.New("invalid module content")
)
