package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ModuleSet is the keyed collection of a course's modules. It keeps insertion
// order and is the single representation used outside the storage layer:
// both the object form {"<id>": {...}} and the array form [{...}] decode into
// it, and it always encodes back to the object form.
type ModuleSet struct {
	entries *orderedmap.OrderedMap[string, Module]
}

// NewModuleSet builds a set keyed by each module's id. Modules without an id
// cannot be addressed and are skipped.
func NewModuleSet(modules ...Module) ModuleSet {
	set := ModuleSet{entries: orderedmap.New[string, Module]()}
	for _, module := range modules {
		if module.ID == "" {
			continue
		}
		set.Put(module)
	}
	return set
}

// Len returns the number of entries, including corrupt ones.
func (s ModuleSet) Len() int {
	if s.entries == nil {
		return 0
	}
	return s.entries.Len()
}

// Keys returns the entry keys in insertion order.
func (s ModuleSet) Keys() []string {
	out := make([]string, 0, s.Len())
	if s.entries == nil {
		return out
	}
	for pair := s.entries.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

// Get returns the module stored under key.
func (s ModuleSet) Get(key string) (Module, bool) {
	if s.entries == nil {
		return Module{}, false
	}
	return s.entries.Get(key)
}

// Values returns the modules in insertion order.
func (s ModuleSet) Values() []Module {
	out := make([]Module, 0, s.Len())
	if s.entries == nil {
		return out
	}
	for pair := s.entries.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Put stores module under its id, keeping the original position when the id
// is already present.
func (s *ModuleSet) Put(module Module) {
	if s.entries == nil {
		s.entries = orderedmap.New[string, Module]()
	}
	s.entries.Set(module.ID, module)
}

// Delete removes the entry stored under key.
func (s *ModuleSet) Delete(key string) bool {
	if s.entries == nil {
		return false
	}
	_, present := s.entries.Delete(key)
	return present
}

// MarshalJSON encodes the set as an object, preserving order.
func (s ModuleSet) MarshalJSON() ([]byte, error) {
	if s.entries == nil {
		return []byte("{}"), nil
	}
	return s.entries.MarshalJSON()
}

// UnmarshalJSON accepts the object form, the array form, or null. Object
// entries are kept even when their record is corrupt.
func (s *ModuleSet) UnmarshalJSON(data []byte) error {
	*s = ModuleSet{entries: orderedmap.New[string, Module]()}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	switch trimmed[0] {
	case '[':
		var modules []Module
		if err := json.Unmarshal(trimmed, &modules); err != nil {
			return fmt.Errorf("decode module list: %w", err)
		}
		*s = NewModuleSet(modules...)
		return nil
	case '{':
		if err := s.entries.UnmarshalJSON(trimmed); err != nil {
			return fmt.Errorf("decode module set: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("decode module set: unexpected json %q", string(trimmed[:1]))
	}
}

// Value implements driver.Valuer.
func (s ModuleSet) Value() (driver.Value, error) {
	payload, err := s.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(payload), nil
}

// Scan implements sql.Scanner.
func (s *ModuleSet) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*s = ModuleSet{}
		return nil
	case []byte:
		return s.UnmarshalJSON(v)
	case string:
		return s.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("unsupported module set value %T", value)
	}
}

// GormDataType stores the set in a JSON column.
func (ModuleSet) GormDataType() string {
	return "json"
}
