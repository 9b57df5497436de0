package validation

import "crawlorch/internal/domain/entity"

// Schema is a named set of field validators, composing the original
// crawler's per-endpoint CreateSchema/UpdateSchema pair on top of the
// FieldValidator primitives in validators.go.
type Schema map[string]FieldValidator

// ValidateCreate runs every field's validator against data. A required
// field absent from data fails via the field's own FieldValidator; an
// optional field simply passes when absent. This is the
// "all field validators + required-fields-non-null assertion" shape the
// original crawler's CreateSchema enforces.
func (s Schema) ValidateCreate(data map[string]any) error {
	for name, fv := range s {
		value, present := data[name]
		if err := fv(name, value, present); err != nil {
			return &entity.ValidationError{Field: name, Message: err.Error()}
		}
	}
	return nil
}

// ValidateUpdate validates a partial patch against the schema: any
// immutable field name present in patch is rejected outright (before any
// other check runs), every schema field actually present in patch is
// validated, and the patch is rejected if it touches none of the
// schema's declared fields — matching the original crawler's UpdateSchema
// contract ("reject immutable fields first, require >=1 updatable field").
func (s Schema) ValidateUpdate(patch map[string]any, immutable ...string) error {
	for _, field := range immutable {
		if _, present := patch[field]; present {
			return &entity.ValidationError{Field: field, Message: "field is immutable and cannot be updated"}
		}
	}

	touched := 0
	for name, fv := range s {
		value, present := patch[name]
		if !present {
			continue
		}
		touched++
		if err := fv(name, value, true); err != nil {
			return &entity.ValidationError{Field: name, Message: err.Error()}
		}
	}
	if touched == 0 {
		return &entity.ValidationError{Field: "", Message: "patch must set at least one recognized field"}
	}
	return nil
}

// TaskImmutableFields names the Task fields that can never appear in an
// update_task patch.
var TaskImmutableFields = []string{"id", "created_at", "crawler_id"}

// TaskPatchSchema declares the fields update_task may change.
var TaskPatchSchema = Schema{
	"scrape_mode": Enum(false, string(entity.ScrapeModeFullScrape), string(entity.ScrapeModeLinksOnly), string(entity.ScrapeModeContentOnly)),
	"task_args":   TaskArgsField(false),
	"max_retries": NonNegativeInt(false),
}
