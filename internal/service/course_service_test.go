package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/izumi-lms/izumi-api/internal/dto"
	"github.com/izumi-lms/izumi-api/internal/models"
)

func nodeIDs(nodes []dto.ModuleNode) []string {
	out := make([]string, 0, len(nodes))
	for _, node := range nodes {
		out = append(out, node.ID)
	}
	return out
}

func TestCourseServiceAuthorsModuleTree(t *testing.T) {
	db := newTestDB(t)
	svc := newTestCourseService(t, db, nil)
	instructor := createUser(t, db, "Hana", models.RoleInstructor)
	actor := Actor{ID: instructor.ID, Role: instructor.Role}
	ctx := context.Background()

	course, err := svc.Create(ctx, actor, dto.CourseCreateRequest{Title: "Go Concurrency", Description: "<script>x</script>Channels"})
	require.NoError(t, err)
	require.Equal(t, RootModuleID, course.RootModuleID)
	require.Equal(t, models.CourseStatusDraft, course.Status)
	require.NotContains(t, course.Description, "script")

	_, err = svc.AddModule(ctx, actor, course.ID, dto.ModuleCreateRequest{ID: "chapter", Type: "lesson", Title: "Chapter"})
	require.NoError(t, err)
	_, err = svc.AddModule(ctx, actor, course.ID, dto.ModuleCreateRequest{ID: "part", ParentID: "chapter", Type: "lesson", Title: "Part", Content: lessonContent("<b>hi</b><script>alert(1)</script>")})
	require.NoError(t, err)
	updated, err := svc.AddModule(ctx, actor, course.ID, dto.ModuleCreateRequest{ID: "check", Type: "quiz", Title: "Check", Content: quizContent(1)})
	require.NoError(t, err)

	require.Equal(t, []string{"chapter", "check"}, nodeIDs(updated.Modules))
	require.Equal(t, []string{"part"}, nodeIDs(updated.Modules[0].Children))
	require.Equal(t, 3, updated.TotalContentModules)
	require.Equal(t, 1, updated.QuizModules)
	require.NotContains(t, string(updated.Modules[0].Children[0].Content), "script")

	moved, err := svc.UpdateModule(ctx, actor, course.ID, "part", dto.ModuleUpdateRequest{ParentID: new(string)})
	require.NoError(t, err)
	require.Equal(t, []string{"chapter", "check", "part"}, nodeIDs(moved.Modules))

	parent := "part"
	_, err = svc.UpdateModule(ctx, actor, course.ID, "chapter", dto.ModuleUpdateRequest{ParentID: &parent})
	require.NoError(t, err)
	self := "chapter"
	_, err = svc.UpdateModule(ctx, actor, course.ID, "part", dto.ModuleUpdateRequest{ParentID: &self})
	require.ErrorIs(t, err, ErrInvalidModuleContent)

	trimmed, err := svc.DeleteModule(ctx, actor, course.ID, "part")
	require.NoError(t, err)
	require.Equal(t, []string{"check"}, nodeIDs(trimmed.Modules))
	require.Equal(t, 1, trimmed.TotalContentModules)

	_, err = svc.DeleteModule(ctx, actor, course.ID, "part")
	require.ErrorIs(t, err, ErrModuleNotFound)
}

func TestCourseServiceValidatesModuleContent(t *testing.T) {
	db := newTestDB(t)
	svc := newTestCourseService(t, db, nil)
	instructor := createUser(t, db, "Kenji", models.RoleInstructor)
	actor := Actor{ID: instructor.ID, Role: instructor.Role}
	ctx := context.Background()

	course, err := svc.Create(ctx, actor, dto.CourseCreateRequest{Title: "Databases"})
	require.NoError(t, err)

	cases := map[string]dto.ModuleCreateRequest{
		"quiz without questions": {Type: "quiz", Title: "Empty", Content: json.RawMessage(`{"questions":[]}`)},
		"quiz without content":   {Type: "quiz", Title: "Missing"},
		"answer out of range":    {Type: "quiz", Title: "Range", Content: quizContent(7)},
		"lesson bad video url":   {Type: "lesson", Title: "Video", Content: json.RawMessage(`{"video_url":"not a url"}`)},
		"reserved root id":       {ID: RootModuleID, Type: "lesson", Title: "Root"},
	}
	for name, payload := range cases {
		_, err := svc.AddModule(ctx, actor, course.ID, payload)
		require.ErrorIs(t, err, ErrInvalidModuleContent, name)
	}

	_, err = svc.AddModule(ctx, actor, course.ID, dto.ModuleCreateRequest{ID: "intro", Type: "lesson", Title: "Intro"})
	require.NoError(t, err)
	_, err = svc.AddModule(ctx, actor, course.ID, dto.ModuleCreateRequest{ID: "intro", Type: "lesson", Title: "Again"})
	require.ErrorIs(t, err, ErrInvalidModuleContent)

	_, err = svc.AddModule(ctx, actor, course.ID, dto.ModuleCreateRequest{Type: "lesson", Title: "Orphan", ParentID: "missing"})
	require.ErrorIs(t, err, ErrModuleNotFound)
}

func TestCourseServiceVisibilityAndOwnership(t *testing.T) {
	db := newTestDB(t)
	svc := newTestCourseService(t, db, nil)
	owner := createUser(t, db, "Owner", models.RoleInstructor)
	other := createUser(t, db, "Other", models.RoleInstructor)
	student := createUser(t, db, "Student", models.RoleStudent)
	admin := createUser(t, db, "Admin", models.RoleAdmin)
	ctx := context.Background()

	ownerActor := Actor{ID: owner.ID, Role: owner.Role}
	course, err := svc.Create(ctx, ownerActor, dto.CourseCreateRequest{Title: "Compilers"})
	require.NoError(t, err)
	_, err = svc.AddModule(ctx, ownerActor, course.ID, dto.ModuleCreateRequest{ID: "quiz", Type: "quiz", Title: "Quiz", Content: quizContent(2)})
	require.NoError(t, err)

	_, err = svc.Get(ctx, nil, course.ID)
	require.ErrorIs(t, err, ErrCourseNotFound)
	_, err = svc.Get(ctx, &Actor{ID: student.ID, Role: student.Role}, course.ID)
	require.ErrorIs(t, err, ErrCourseNotFound)

	_, err = svc.Update(ctx, Actor{ID: other.ID, Role: other.Role}, course.ID, dto.CourseUpdateRequest{})
	require.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Create(ctx, Actor{ID: student.ID, Role: student.Role}, dto.CourseCreateRequest{Title: "Nope"})
	require.ErrorIs(t, err, ErrForbidden)

	published, err := svc.Publish(ctx, ownerActor, course.ID)
	require.NoError(t, err)
	require.NotNil(t, published.PublishedAt)

	public, err := svc.Get(ctx, nil, course.ID)
	require.NoError(t, err)
	require.NotContains(t, string(public.Modules[0].Content), "answer")

	authored, err := svc.Get(ctx, &ownerActor, course.ID)
	require.NoError(t, err)
	require.Contains(t, string(authored.Modules[0].Content), "answer")

	owned, err := svc.ListOwned(ctx, Actor{ID: other.ID, Role: other.Role}, dto.CourseListRequest{})
	require.NoError(t, err)
	require.Empty(t, owned.Items)
	all, err := svc.ListOwned(ctx, Actor{ID: admin.ID, Role: admin.Role}, dto.CourseListRequest{})
	require.NoError(t, err)
	require.Len(t, all.Items, 1)

	require.NoError(t, svc.Delete(ctx, Actor{ID: admin.ID, Role: admin.Role}, course.ID))
	_, err = svc.Get(ctx, &ownerActor, course.ID)
	require.ErrorIs(t, err, ErrCourseNotFound)
}

func TestCourseServiceCatalogCacheInvalidatesOnWrite(t *testing.T) {
	db := newTestDB(t)
	_, client := newTestRedis(t)
	svc := newTestCourseService(t, db, client)
	instructor := createUser(t, db, "Yui", models.RoleInstructor)
	actor := Actor{ID: instructor.ID, Role: instructor.Role}
	ctx := context.Background()

	first := publishedCourse(t, svc, instructor, 1, 0)

	listing, err := svc.ListPublished(ctx, dto.CourseListRequest{})
	require.NoError(t, err)
	require.Len(t, listing.Items, 1)
	require.Equal(t, first.ID, listing.Items[0].ID)

	keys := client.Keys(ctx, "izumi:catalog:v*|*").Val()
	require.Len(t, keys, 1)

	second, err := svc.Create(ctx, actor, dto.CourseCreateRequest{Title: "Second course"})
	require.NoError(t, err)
	_, err = svc.Publish(ctx, actor, second.ID)
	require.NoError(t, err)

	listing, err = svc.ListPublished(ctx, dto.CourseListRequest{})
	require.NoError(t, err)
	require.Len(t, listing.Items, 2)
	require.Equal(t, int64(2), listing.Pagination.TotalItems)
}
