// Package completion decides whether a student has completed a course from
// the course's module tree and the student's per-module progress.
package completion

import (
	"strconv"

	"github.com/izumi-lms/izumi-api/internal/models"
)

// ContentModules flattens a course into its content modules.
func ContentModules(course models.Course) []models.Module {
	return FlattenModules(strconv.FormatUint(uint64(course.ID), 10), course.Root(), course.Modules)
}

// FlattenModules returns the deduplicated content modules of a tree. Modules
// reachable from root come first in depth-first order, followed by any other
// entries of the set in insertion order. The root itself, any record whose id
// equals courseID, and records without an id are left out; none of these is
// reported as an error.
func FlattenModules(courseID string, root models.Module, modules models.ModuleSet) []models.Module {
	if modules.Len() == 0 {
		return []models.Module{}
	}

	f := flattener{
		courseID: courseID,
		rootID:   root.ID,
		modules:  modules,
		visited:  make(map[string]struct{}, modules.Len()),
		seen:     make(map[string]struct{}, modules.Len()),
		out:      make([]models.Module, 0, modules.Len()),
	}

	for _, child := range root.Children {
		f.walk(child)
	}
	for _, key := range modules.Keys() {
		f.walk(key)
	}

	return f.out
}

type flattener struct {
	courseID string
	rootID   string
	modules  models.ModuleSet
	visited  map[string]struct{}
	seen     map[string]struct{}
	out      []models.Module
}

func (f *flattener) walk(key string) {
	if _, done := f.visited[key]; done {
		return
	}
	f.visited[key] = struct{}{}

	module, ok := f.modules.Get(key)
	if !ok {
		return
	}

	f.collect(module)

	for _, child := range module.Children {
		f.walk(child)
	}
}

func (f *flattener) collect(module models.Module) {
	if module.ID == "" || module.ID == f.courseID {
		return
	}
	if f.rootID != "" && module.ID == f.rootID {
		return
	}
	if _, dup := f.seen[module.ID]; dup {
		return
	}
	f.seen[module.ID] = struct{}{}
	f.out = append(f.out, module)
}
