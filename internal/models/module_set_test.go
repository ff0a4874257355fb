package models

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestModuleSetDecodesObjectFormInOrder(t *testing.T) {
	var set ModuleSet
	payload := `{"m3":{"id":"m3","type":"lesson","title":"Three"},"m1":{"id":"m1","type":"quiz","title":"One"},"m2":{"id":"m2","type":"lesson","title":"Two"}}`

	require.NoError(t, json.Unmarshal([]byte(payload), &set))
	require.Equal(t, []string{"m3", "m1", "m2"}, set.Keys())

	module, ok := set.Get("m1")
	require.True(t, ok)
	require.True(t, module.IsQuiz())
}

func TestModuleSetDecodesArrayForm(t *testing.T) {
	var set ModuleSet
	payload := `[{"id":"a","type":"lesson"},{"id":"","type":"lesson"},{"id":"b","type":"quiz"}]`

	require.NoError(t, json.Unmarshal([]byte(payload), &set))
	require.Equal(t, []string{"a", "b"}, set.Keys())
}

func TestModuleSetKeepsCorruptObjectEntries(t *testing.T) {
	var set ModuleSet
	payload := `{"a":{"id":"a","type":"lesson"},"broken":{"id":null,"type":"lesson"},"gone":null}`

	require.NoError(t, json.Unmarshal([]byte(payload), &set))
	require.Equal(t, 3, set.Len())

	broken, ok := set.Get("broken")
	require.True(t, ok)
	require.Empty(t, broken.ID)
}

func TestModuleSetRoundTripsThroughScanner(t *testing.T) {
	set := NewModuleSet(
		Module{ID: "intro", Type: ModuleTypeLesson, Title: "Intro"},
		Module{ID: "check", Type: ModuleTypeQuiz, Title: "Check", Children: []string{"intro"}},
	)

	value, err := set.Value()
	require.NoError(t, err)

	var restored ModuleSet
	require.NoError(t, restored.Scan([]byte(value.(string))))
	require.Equal(t, set.Keys(), restored.Keys())
	require.Equal(t, set.Values(), restored.Values())
}

func TestModuleSetPutAndDelete(t *testing.T) {
	set := NewModuleSet(Module{ID: "a"}, Module{ID: "b"}, Module{ID: "c"})

	set.Put(Module{ID: "b", Title: "renamed"})
	require.Equal(t, []string{"a", "b", "c"}, set.Keys())

	renamed, _ := set.Get("b")
	require.Equal(t, "renamed", renamed.Title)

	require.True(t, set.Delete("a"))
	require.False(t, set.Delete("a"))
	require.Equal(t, []string{"b", "c"}, set.Keys())
}

func TestModuleSetNullAndEmpty(t *testing.T) {
	var set ModuleSet
	require.NoError(t, set.Scan(nil))
	require.Zero(t, set.Len())

	require.NoError(t, json.Unmarshal([]byte(`null`), &set))
	require.Zero(t, set.Len())

	encoded, err := json.Marshal(set)
	require.NoError(t, err)
	require.JSONEq(t, `{}`, string(encoded))
}

func TestModuleSetZeroValueKeepsInsertionOrder(t *testing.T) {
	var set ModuleSet
	require.False(t, set.Delete("missing"))
	require.Empty(t, set.Keys())

	set.Put(Module{ID: "b"})
	set.Put(Module{ID: "a"})
	require.Equal(t, []string{"b", "a"}, set.Keys())

	encoded, err := json.Marshal(set)
	require.NoError(t, err)
	require.Less(t, bytes.Index(encoded, []byte(`"b"`)), bytes.Index(encoded, []byte(`"a"`)))

	var decoded ModuleSet
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	require.Equal(t, []string{"b", "a"}, decoded.Keys())
}
