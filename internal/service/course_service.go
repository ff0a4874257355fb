package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/izumi-lms/izumi-api/internal/dto"
	"github.com/izumi-lms/izumi-api/internal/models"
	"github.com/izumi-lms/izumi-api/internal/observability"
	"github.com/izumi-lms/izumi-api/internal/repository"
)

// RootModuleID is the id given to the synthetic root of new courses.
const RootModuleID = "root"

const catalogVersionKey = "izumi:catalog:version"

// CourseService exposes the public catalog and course authoring use-cases.
type CourseService interface {
	ListPublished(ctx context.Context, req dto.CourseListRequest) (dto.CourseListResponse, error)
	Get(ctx context.Context, actor *Actor, id uint) (dto.CourseResponse, error)
	ListOwned(ctx context.Context, actor Actor, req dto.CourseListRequest) (dto.CourseListResponse, error)
	Create(ctx context.Context, actor Actor, payload dto.CourseCreateRequest) (dto.CourseResponse, error)
	Update(ctx context.Context, actor Actor, id uint, payload dto.CourseUpdateRequest) (dto.CourseResponse, error)
	Publish(ctx context.Context, actor Actor, id uint) (dto.CourseResponse, error)
	Delete(ctx context.Context, actor Actor, id uint) error
	AddModule(ctx context.Context, actor Actor, courseID uint, payload dto.ModuleCreateRequest) (dto.CourseResponse, error)
	UpdateModule(ctx context.Context, actor Actor, courseID uint, moduleID string, payload dto.ModuleUpdateRequest) (dto.CourseResponse, error)
	DeleteModule(ctx context.Context, actor Actor, courseID uint, moduleID string) (dto.CourseResponse, error)
}

type courseService struct {
	repo      repository.CourseRepository
	content   *ModuleContentValidator
	cache     *redis.Client
	cacheTTL  time.Duration
	validator *validator.Validate
	activity  ActivityRecorder
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
	newID     func() string
}

// NewCourseService constructs the course service. cache and activity may be nil.
func NewCourseService(repo repository.CourseRepository, content *ModuleContentValidator, cache *redis.Client, cacheTTL time.Duration, validate *validator.Validate, activity ActivityRecorder, logger zerolog.Logger) CourseService {
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &courseService{
		repo:      repo,
		content:   content,
		cache:     cache,
		cacheTTL:  cacheTTL,
		validator: validate,
		activity:  activity,
		sanitizer: bluemonday.UGCPolicy(),
		logger:    logger.With().Str("component", "course_service").Logger(),
		tracer:    otel.Tracer("github.com/izumi-lms/izumi-api/internal/service/course"),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

func (s *courseService) ListPublished(ctx context.Context, req dto.CourseListRequest) (dto.CourseListResponse, error) {
	page := maxInt(req.Page, 1)
	pageSize := clampPageSize(req.PageSize)
	filter := repository.CourseFilter{
		Search:   strings.TrimSpace(req.Search),
		Category: strings.TrimSpace(req.Category),
		Status:   models.CourseStatusPublished,
		Page:     page,
		PageSize: pageSize,
	}

	cacheKey := s.catalogKey(ctx, filter)
	if cacheKey != "" {
		cached, err := s.cache.Get(ctx, cacheKey).Result()
		switch {
		case err == nil:
			var response dto.CourseListResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				observability.CacheLookups().WithLabelValues("catalog", "hit").Inc()
				return response, nil
			}
		case !errors.Is(err, redis.Nil):
			s.logger.Warn().Err(err).Msg("failed to read catalog cache")
		}
		observability.CacheLookups().WithLabelValues("catalog", "miss").Inc()
	}

	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.CourseListResponse{}, err
	}

	response := dto.CourseListResponse{
		Items:      dto.NewCourseSummarySlice(courses),
		Pagination: paginationMeta(page, pageSize, total),
	}

	if cacheKey != "" {
		if payload, err := json.Marshal(response); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to write catalog cache")
			}
		}
	}

	return response, nil
}

// Get returns a course. Unpublished courses are only visible to their owner
// and admins, who also see quiz answers.
func (s *courseService) Get(ctx context.Context, actor *Actor, id uint) (dto.CourseResponse, error) {
	course, err := s.load(ctx, id)
	if err != nil {
		return dto.CourseResponse{}, err
	}

	manager := actor != nil && actor.CanManage(course)
	if !course.IsPublished() && !manager {
		return dto.CourseResponse{}, ErrCourseNotFound
	}
	return dto.NewCourseResponse(course, manager), nil
}

func (s *courseService) ListOwned(ctx context.Context, actor Actor, req dto.CourseListRequest) (dto.CourseListResponse, error) {
	page := maxInt(req.Page, 1)
	pageSize := clampPageSize(req.PageSize)
	filter := repository.CourseFilter{
		Search:   strings.TrimSpace(req.Search),
		Category: strings.TrimSpace(req.Category),
		Status:   strings.TrimSpace(req.Status),
		Page:     page,
		PageSize: pageSize,
	}
	if !actor.IsAdmin() {
		filter.InstructorID = &actor.ID
	}

	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.CourseListResponse{}, err
	}

	return dto.CourseListResponse{
		Items:      dto.NewCourseSummarySlice(courses),
		Pagination: paginationMeta(page, pageSize, total),
	}, nil
}

func (s *courseService) Create(ctx context.Context, actor Actor, payload dto.CourseCreateRequest) (dto.CourseResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.CourseResponse{}, err
	}
	if !actor.IsInstructor() && !actor.IsAdmin() {
		return dto.CourseResponse{}, ErrForbidden
	}

	course := models.Course{
		Title:        strings.TrimSpace(payload.Title),
		Description:  s.sanitizer.Sanitize(payload.Description),
		Category:     strings.ToLower(strings.TrimSpace(payload.Category)),
		InstructorID: actor.ID,
		Status:       models.CourseStatusDraft,
		RootModule:   datatypes.NewJSONType(models.Module{ID: RootModuleID, Type: models.ModuleTypeRoot, Title: strings.TrimSpace(payload.Title)}),
		Modules:      models.NewModuleSet(),
	}

	if err := s.repo.Create(ctx, &course); err != nil {
		return dto.CourseResponse{}, err
	}

	s.logger.Info().Uint("course_id", course.ID).Uint("instructor_id", actor.ID).Msg("course created")
	return dto.NewCourseResponse(course, true), nil
}

func (s *courseService) Update(ctx context.Context, actor Actor, id uint, payload dto.CourseUpdateRequest) (dto.CourseResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.CourseResponse{}, err
	}

	course, err := s.loadManaged(ctx, actor, id)
	if err != nil {
		return dto.CourseResponse{}, err
	}

	if payload.Title != nil {
		course.Title = strings.TrimSpace(*payload.Title)
	}
	if payload.Description != nil {
		course.Description = s.sanitizer.Sanitize(*payload.Description)
	}
	if payload.Category != nil {
		course.Category = strings.ToLower(strings.TrimSpace(*payload.Category))
	}
	if payload.Status != nil {
		s.applyStatus(&course, *payload.Status)
	}

	return s.save(ctx, &course)
}

func (s *courseService) Publish(ctx context.Context, actor Actor, id uint) (dto.CourseResponse, error) {
	course, err := s.loadManaged(ctx, actor, id)
	if err != nil {
		return dto.CourseResponse{}, err
	}
	s.applyStatus(&course, models.CourseStatusPublished)
	return s.save(ctx, &course)
}

func (s *courseService) Delete(ctx context.Context, actor Actor, id uint) error {
	course, err := s.loadManaged(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCourseNotFound
		}
		return err
	}
	s.invalidateCatalog(ctx)
	s.logger.Info().Uint("course_id", id).Uint("actor_id", actor.ID).Msg("course deleted")

	if actor.IsAdmin() && course.InstructorID != actor.ID {
		record(ctx, s.activity, s.logger, ActivityEntry{
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Action:     "course.deleted",
			EntityType: "course",
			EntityID:   &id,
			Metadata:   map[string]interface{}{"title": course.Title, "instructor_id": course.InstructorID},
		})
	}
	return nil
}

func (s *courseService) AddModule(ctx context.Context, actor Actor, courseID uint, payload dto.ModuleCreateRequest) (dto.CourseResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.CourseResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "course.module.add", trace.WithAttributes(attribute.Int64("course.id", int64(courseID))))
	defer span.End()

	course, err := s.loadManaged(ctx, actor, courseID)
	if err != nil {
		return dto.CourseResponse{}, err
	}

	moduleType := models.ModuleType(payload.Type)
	content, err := s.content.Normalize(moduleType, payload.Content)
	if err != nil {
		return dto.CourseResponse{}, err
	}

	id := strings.TrimSpace(payload.ID)
	if id == "" {
		id = s.newID()
	}
	if err := s.checkModuleID(course, id); err != nil {
		return dto.CourseResponse{}, err
	}

	module := models.Module{
		ID:      id,
		Type:    moduleType,
		Title:   strings.TrimSpace(payload.Title),
		Content: content,
	}

	root := course.Root()
	parentID := strings.TrimSpace(payload.ParentID)
	if parentID == "" || parentID == root.ID {
		root.Children = append(root.Children, id)
		course.RootModule = datatypes.NewJSONType(root)
	} else {
		parent, ok := course.Modules.Get(parentID)
		if !ok || parent.ID == "" {
			return dto.CourseResponse{}, ErrModuleNotFound
		}
		parent.Children = append(parent.Children, id)
		course.Modules.Put(parent)
	}
	course.Modules.Put(module)

	span.SetAttributes(attribute.String("module.id", id), attribute.String("module.type", payload.Type))
	return s.save(ctx, &course)
}

func (s *courseService) UpdateModule(ctx context.Context, actor Actor, courseID uint, moduleID string, payload dto.ModuleUpdateRequest) (dto.CourseResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.CourseResponse{}, err
	}

	course, err := s.loadManaged(ctx, actor, courseID)
	if err != nil {
		return dto.CourseResponse{}, err
	}

	module, ok := course.Modules.Get(moduleID)
	if !ok || module.ID == "" {
		return dto.CourseResponse{}, ErrModuleNotFound
	}

	if payload.Title != nil {
		module.Title = strings.TrimSpace(*payload.Title)
	}
	typeChanged := payload.Type != nil && models.ModuleType(*payload.Type) != module.Type
	if payload.Type != nil {
		module.Type = models.ModuleType(*payload.Type)
	}
	if len(payload.Content) > 0 || typeChanged {
		raw := payload.Content
		if len(raw) == 0 {
			raw = json.RawMessage(module.Content)
		}
		content, err := s.content.Normalize(module.Type, raw)
		if err != nil {
			return dto.CourseResponse{}, err
		}
		module.Content = content
	}
	course.Modules.Put(module)

	if payload.ParentID != nil {
		if err := moveModule(&course, moduleID, strings.TrimSpace(*payload.ParentID)); err != nil {
			return dto.CourseResponse{}, err
		}
	}

	return s.save(ctx, &course)
}

// DeleteModule removes a module and every module nested under it.
func (s *courseService) DeleteModule(ctx context.Context, actor Actor, courseID uint, moduleID string) (dto.CourseResponse, error) {
	course, err := s.loadManaged(ctx, actor, courseID)
	if err != nil {
		return dto.CourseResponse{}, err
	}

	if _, ok := course.Modules.Get(moduleID); !ok {
		return dto.CourseResponse{}, ErrModuleNotFound
	}

	removed := subtree(course.Modules, moduleID)
	for id := range removed {
		course.Modules.Delete(id)
	}
	detachChildren(&course, removed)

	s.logger.Info().Uint("course_id", courseID).Str("module_id", moduleID).Int("removed", len(removed)).Msg("module deleted")
	return s.save(ctx, &course)
}

func (s *courseService) checkModuleID(course models.Course, id string) error {
	if id == course.Root().ID || id == strconv.FormatUint(uint64(course.ID), 10) {
		return fmt.Errorf("%w: module id %q is reserved", ErrInvalidModuleContent, id)
	}
	if _, exists := course.Modules.Get(id); exists {
		return fmt.Errorf("%w: module id %q already exists", ErrInvalidModuleContent, id)
	}
	return nil
}

func (s *courseService) applyStatus(course *models.Course, status string) {
	if status == models.CourseStatusPublished && course.PublishedAt == nil {
		now := s.now().UTC()
		course.PublishedAt = &now
	}
	course.Status = status
}

func (s *courseService) load(ctx context.Context, id uint) (models.Course, error) {
	course, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Course{}, ErrCourseNotFound
		}
		return models.Course{}, err
	}
	return course, nil
}

func (s *courseService) loadManaged(ctx context.Context, actor Actor, id uint) (models.Course, error) {
	course, err := s.load(ctx, id)
	if err != nil {
		return models.Course{}, err
	}
	if !actor.CanManage(course) {
		return models.Course{}, ErrForbidden
	}
	return course, nil
}

func (s *courseService) save(ctx context.Context, course *models.Course) (dto.CourseResponse, error) {
	if err := s.repo.Save(ctx, course); err != nil {
		return dto.CourseResponse{}, err
	}
	s.invalidateCatalog(ctx)
	return dto.NewCourseResponse(*course, true), nil
}

func (s *courseService) catalogKey(ctx context.Context, filter repository.CourseFilter) string {
	if s.cache == nil {
		return ""
	}
	version, err := s.cache.Get(ctx, catalogVersionKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		s.logger.Warn().Err(err).Msg("failed to read catalog version")
		return ""
	}
	return fmt.Sprintf("izumi:catalog:v%d:%s|%s:%d:%d", version, strings.ToLower(filter.Search), filter.Category, filter.Page, filter.PageSize)
}

func (s *courseService) invalidateCatalog(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Incr(ctx, catalogVersionKey).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate catalog cache")
	}
}

// subtree returns moduleID and every module reachable through its children.
func subtree(modules models.ModuleSet, moduleID string) map[string]struct{} {
	removed := map[string]struct{}{}
	stack := []string{moduleID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := removed[id]; seen {
			continue
		}
		module, ok := modules.Get(id)
		if !ok {
			continue
		}
		removed[id] = struct{}{}
		stack = append(stack, module.Children...)
	}
	return removed
}

// detachChildren drops ids from the root's and every module's children.
func detachChildren(course *models.Course, ids map[string]struct{}) {
	root := course.Root()
	root.Children = withoutIDs(root.Children, ids)
	course.RootModule = datatypes.NewJSONType(root)

	for _, module := range course.Modules.Values() {
		filtered := withoutIDs(module.Children, ids)
		if len(filtered) != len(module.Children) {
			module.Children = filtered
			course.Modules.Put(module)
		}
	}
}

func withoutIDs(children []string, ids map[string]struct{}) []string {
	if len(children) == 0 {
		return children
	}
	out := make([]string, 0, len(children))
	for _, child := range children {
		if _, drop := ids[child]; !drop {
			out = append(out, child)
		}
	}
	return out
}

// moveModule places moduleID under parentID, or under the root when empty.
// Moving a module below itself is rejected.
func moveModule(course *models.Course, moduleID, parentID string) error {
	root := course.Root()
	if parentID == root.ID {
		parentID = ""
	}
	if parentID != "" {
		if _, ok := course.Modules.Get(parentID); !ok {
			return ErrModuleNotFound
		}
		if _, inside := subtree(course.Modules, moduleID)[parentID]; inside {
			return fmt.Errorf("%w: module cannot be nested under itself", ErrInvalidModuleContent)
		}
	}

	detachChildren(course, map[string]struct{}{moduleID: {}})

	if parentID == "" {
		root = course.Root()
		root.Children = append(root.Children, moduleID)
		course.RootModule = datatypes.NewJSONType(root)
		return nil
	}

	parent, _ := course.Modules.Get(parentID)
	parent.Children = append(parent.Children, moduleID)
	course.Modules.Put(parent)
	return nil
}
