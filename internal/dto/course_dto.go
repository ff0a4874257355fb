package dto

import (
	"encoding/json"
	"time"

	"github.com/izumi-lms/izumi-api/internal/completion"
	"github.com/izumi-lms/izumi-api/internal/models"
)

// CourseListRequest defines filters for course listings.
type CourseListRequest struct {
	Search   string
	Category string
	Status   string
	Page     int
	PageSize int
}

// CourseCreateRequest is the payload to author a new course.
type CourseCreateRequest struct {
	Title       string `json:"title" validate:"required,min=3,max=255"`
	Description string `json:"description" validate:"omitempty,max=10000"`
	Category    string `json:"category" validate:"omitempty,max=64"`
}

// CourseUpdateRequest captures partial course updates.
type CourseUpdateRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=3,max=255"`
	Description *string `json:"description" validate:"omitempty,max=10000"`
	Category    *string `json:"category" validate:"omitempty,max=64"`
	Status      *string `json:"status" validate:"omitempty,oneof=draft published archived"`
}

// ModuleCreateRequest adds a module under ParentID, or under the root when empty.
type ModuleCreateRequest struct {
	ID       string          `json:"id" validate:"omitempty,max=64,excludesall=/?#"`
	ParentID string          `json:"parent_id" validate:"omitempty,max=64"`
	Type     string          `json:"type" validate:"required,oneof=lesson quiz"`
	Title    string          `json:"title" validate:"required,min=1,max=255"`
	Content  json.RawMessage `json:"content"`
}

// ModuleUpdateRequest captures partial module updates. A non-nil ParentID
// moves the module; an empty value moves it under the root.
type ModuleUpdateRequest struct {
	Title    *string         `json:"title" validate:"omitempty,min=1,max=255"`
	Type     *string         `json:"type" validate:"omitempty,oneof=lesson quiz"`
	ParentID *string         `json:"parent_id" validate:"omitempty,max=64"`
	Content  json.RawMessage `json:"content"`
}

// ModuleNode is one module with its nested children.
type ModuleNode struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Title    string          `json:"title"`
	Content  json.RawMessage `json:"content,omitempty"`
	Children []ModuleNode    `json:"children,omitempty"`
}

// CourseSummary is the listing representation of a course.
type CourseSummary struct {
	ID                  uint       `json:"id"`
	Title               string     `json:"title"`
	Description         string     `json:"description"`
	Category            string     `json:"category"`
	InstructorID        uint       `json:"instructor_id"`
	Status              string     `json:"status"`
	TotalContentModules int        `json:"total_content_modules"`
	QuizModules         int        `json:"quiz_modules"`
	PublishedAt         *time.Time `json:"published_at,omitempty"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// CourseResponse is the detailed representation of a course with its tree.
type CourseResponse struct {
	CourseSummary
	RootModuleID string       `json:"root_module_id"`
	Modules      []ModuleNode `json:"modules"`
	CreatedAt    time.Time    `json:"created_at"`
}

// CourseListResponse wraps a paginated course listing.
type CourseListResponse struct {
	Items      []CourseSummary `json:"items"`
	Pagination PaginationMeta  `json:"pagination"`
}

// NewCourseSummary converts a course into its listing DTO.
func NewCourseSummary(course models.Course) CourseSummary {
	content := completion.ContentModules(course)
	quizzes := 0
	for _, module := range content {
		if module.IsQuiz() {
			quizzes++
		}
	}

	return CourseSummary{
		ID:                  course.ID,
		Title:               course.Title,
		Description:         course.Description,
		Category:            course.Category,
		InstructorID:        course.InstructorID,
		Status:              course.Status,
		TotalContentModules: len(content),
		QuizModules:         quizzes,
		PublishedAt:         course.PublishedAt,
		UpdatedAt:           course.UpdatedAt,
	}
}

// NewCourseSummarySlice converts courses into listing DTOs.
func NewCourseSummarySlice(courses []models.Course) []CourseSummary {
	out := make([]CourseSummary, 0, len(courses))
	for _, course := range courses {
		out = append(out, NewCourseSummary(course))
	}
	return out
}

// NewCourseResponse converts a course into its detailed DTO. Quiz answers are
// only included for authors.
func NewCourseResponse(course models.Course, includeAnswers bool) CourseResponse {
	root := course.Root()
	builder := treeBuilder{
		modules:        course.Modules,
		rootID:         root.ID,
		includeAnswers: includeAnswers,
		visited:        make(map[string]struct{}, course.Modules.Len()),
	}

	nodes := make([]ModuleNode, 0, len(root.Children))
	for _, child := range root.Children {
		if node, ok := builder.build(child); ok {
			nodes = append(nodes, node)
		}
	}
	for _, key := range course.Modules.Keys() {
		if node, ok := builder.build(key); ok {
			nodes = append(nodes, node)
		}
	}

	return CourseResponse{
		CourseSummary: NewCourseSummary(course),
		RootModuleID:  root.ID,
		Modules:       nodes,
		CreatedAt:     course.CreatedAt,
	}
}

type treeBuilder struct {
	modules        models.ModuleSet
	rootID         string
	includeAnswers bool
	visited        map[string]struct{}
}

func (b *treeBuilder) build(key string) (ModuleNode, bool) {
	if _, done := b.visited[key]; done {
		return ModuleNode{}, false
	}
	b.visited[key] = struct{}{}

	module, ok := b.modules.Get(key)
	if !ok || module.ID == "" || module.ID == b.rootID {
		return ModuleNode{}, false
	}

	node := ModuleNode{
		ID:      module.ID,
		Type:    string(module.Type),
		Title:   module.Title,
		Content: b.content(module),
	}
	for _, child := range module.Children {
		if childNode, ok := b.build(child); ok {
			node.Children = append(node.Children, childNode)
		}
	}
	return node, true
}

func (b *treeBuilder) content(module models.Module) json.RawMessage {
	if len(module.Content) == 0 {
		return nil
	}
	if !module.IsQuiz() || b.includeAnswers {
		return json.RawMessage(module.Content)
	}

	quiz, err := models.ParseQuizContent(module.Content)
	if err != nil {
		return nil
	}
	encoded, err := json.Marshal(quiz.WithoutAnswers())
	if err != nil {
		return nil
	}
	return encoded
}
