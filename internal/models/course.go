package models

import (
	"time"

	"gorm.io/datatypes"
)

// ModuleType classifies a node of a course's module tree.
type ModuleType string

// Module types. ModuleTypeRoot is reserved for the synthetic entry point.
const (
	ModuleTypeRoot   ModuleType = "root"
	ModuleTypeLesson ModuleType = "lesson"
	ModuleTypeQuiz   ModuleType = "quiz"
)

// Course statuses.
const (
	CourseStatusDraft     = "draft"
	CourseStatusPublished = "published"
	CourseStatusArchived  = "archived"
)

// Module is one node of a course tree. Children holds the ids of nested
// modules, which live in the owning course's ModuleSet.
type Module struct {
	ID       string         `json:"id"`
	Type     ModuleType     `json:"type"`
	Title    string         `json:"title"`
	Children []string       `json:"children,omitempty"`
	Content  datatypes.JSON `json:"content,omitempty"`
}

// IsQuiz reports whether the module is a quiz.
func (m Module) IsQuiz() bool {
	return m.Type == ModuleTypeQuiz
}

// Course is an authored course with its module tree.
type Course struct {
	ID           uint                       `gorm:"primaryKey" json:"id"`
	Title        string                     `gorm:"size:255;not null" json:"title"`
	Description  string                     `gorm:"type:text" json:"description"`
	Category     string                     `gorm:"size:64;index" json:"category"`
	InstructorID uint                       `gorm:"index;not null" json:"instructor_id"`
	Status       string                     `gorm:"size:32;not null;default:'draft'" json:"status"`
	RootModule   datatypes.JSONType[Module] `json:"root_module"`
	Modules      ModuleSet                  `json:"modules"`
	PublishedAt  *time.Time                 `json:"published_at"`
	CreatedAt    time.Time                  `json:"created_at"`
	UpdatedAt    time.Time                  `json:"updated_at"`
}

// Root returns the synthetic root module.
func (c Course) Root() Module {
	return c.RootModule.Data()
}

// IsPublished reports whether students may enroll.
func (c Course) IsPublished() bool {
	return c.Status == CourseStatusPublished
}
