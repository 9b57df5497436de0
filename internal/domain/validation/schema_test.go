package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchema_ValidateCreate(t *testing.T) {
	s := Schema{
		"name": Str(1, 50, true, nil),
		"age":  PositiveInt(false),
	}

	assert.NoError(t, s.ValidateCreate(map[string]any{"name": "alice"}))
	assert.Error(t, s.ValidateCreate(map[string]any{}), "required field missing")
	assert.Error(t, s.ValidateCreate(map[string]any{"name": "alice", "age": -1}))
}

func TestSchema_ValidateUpdate_RejectsImmutable(t *testing.T) {
	s := Schema{"name": Str(0, 0, false, nil)}

	err := s.ValidateUpdate(map[string]any{"id": 5, "name": "bob"}, "id", "created_at")
	assert.Error(t, err)
}

func TestSchema_ValidateUpdate_RequiresAtLeastOneField(t *testing.T) {
	s := Schema{"name": Str(0, 0, false, nil)}

	err := s.ValidateUpdate(map[string]any{"unrelated": true}, "id")
	assert.Error(t, err)
}

func TestSchema_ValidateUpdate_Success(t *testing.T) {
	s := Schema{"name": Str(1, 0, false, nil)}

	err := s.ValidateUpdate(map[string]any{"name": "carol"}, "id", "created_at")
	assert.NoError(t, err)
}

func TestTaskPatchSchema_RejectsImmutableFields(t *testing.T) {
	for _, field := range TaskImmutableFields {
		patch := map[string]any{field: "x", "max_retries": 2}
		err := TaskPatchSchema.ValidateUpdate(patch, TaskImmutableFields...)
		assert.Error(t, err, "field %q should be immutable", field)
	}
}

func TestTaskPatchSchema_AcceptsRecognizedFields(t *testing.T) {
	patch := map[string]any{"scrape_mode": "links_only"}
	assert.NoError(t, TaskPatchSchema.ValidateUpdate(patch, TaskImmutableFields...))
}
