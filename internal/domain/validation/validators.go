package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"crawlorch/internal/pkg/config"
)

// FieldValidator validates a single named field's value. present is false
// when the key was entirely absent from the input map, distinguishing
// "omitted" from "present but null" so required-field checks are exact.
type FieldValidator func(name string, value any, present bool) error

func required(name string, present, isRequired bool) error {
	if isRequired && !present {
		return fmt.Errorf("%s is required", name)
	}
	return nil
}

// Str validates a string field against optional length bounds and an
// optional regex. minLen/maxLen of 0 means unbounded on that side.
func Str(minLen, maxLen int, isRequired bool, pattern *regexp.Regexp) FieldValidator {
	return func(name string, value any, present bool) error {
		if err := required(name, present, isRequired); err != nil {
			return err
		}
		if !present || value == nil {
			return nil
		}
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%s must be a string", name)
		}
		if minLen > 0 && len(s) < minLen {
			return fmt.Errorf("%s must be at least %d characters", name, minLen)
		}
		if maxLen > 0 && len(s) > maxLen {
			return fmt.Errorf("%s must be at most %d characters", name, maxLen)
		}
		if pattern != nil && !pattern.MatchString(s) {
			return fmt.Errorf("%s does not match the required pattern", name)
		}
		return nil
	}
}

// Int validates an integer field (JSON-decoded numbers included).
func Int(isRequired bool) FieldValidator {
	return func(name string, value any, present bool) error {
		if err := required(name, present, isRequired); err != nil {
			return err
		}
		if !present || value == nil {
			return nil
		}
		if _, ok := toInt(value); !ok {
			return fmt.Errorf("%s must be an integer", name)
		}
		return nil
	}
}

// PositiveInt validates a strictly-positive integer field.
func PositiveInt(isRequired bool) FieldValidator {
	return func(name string, value any, present bool) error {
		if err := required(name, present, isRequired); err != nil {
			return err
		}
		if !present || value == nil {
			return nil
		}
		n, ok := toInt(value)
		if !ok {
			return fmt.Errorf("%s must be an integer", name)
		}
		if n <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
		return nil
	}
}

// NonNegativeInt validates an integer field that may be zero but not
// negative, e.g. a retry counter.
func NonNegativeInt(isRequired bool) FieldValidator {
	return func(name string, value any, present bool) error {
		if err := required(name, present, isRequired); err != nil {
			return err
		}
		if !present || value == nil {
			return nil
		}
		n, ok := toInt(value)
		if !ok {
			return fmt.Errorf("%s must be an integer", name)
		}
		if n < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
		return nil
	}
}

// PositiveFloat validates a strictly-positive numeric field.
func PositiveFloat(isRequired bool) FieldValidator {
	return func(name string, value any, present bool) error {
		if err := required(name, present, isRequired); err != nil {
			return err
		}
		if !present || value == nil {
			return nil
		}
		f, ok := toFloat(value)
		if !ok {
			return fmt.Errorf("%s must be a number", name)
		}
		if f <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
		return nil
	}
}

// Bool validates a boolean field.
func Bool(isRequired bool) FieldValidator {
	return func(name string, value any, present bool) error {
		if err := required(name, present, isRequired); err != nil {
			return err
		}
		if !present || value == nil {
			return nil
		}
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("%s must be a boolean", name)
		}
		return nil
	}
}

// DateTime validates an ISO-8601 timestamp string that must carry an
// explicit UTC offset — a naive timestamp (no offset at all) fails to
// parse against time.RFC3339, and a non-UTC offset (e.g. "+09:00") is
// rejected explicitly, mirroring the original crawler's tz-aware-only
// datetime fields.
func DateTime(isRequired bool) FieldValidator {
	return func(name string, value any, present bool) error {
		if err := required(name, present, isRequired); err != nil {
			return err
		}
		if !present || value == nil {
			return nil
		}
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%s must be an ISO-8601 timestamp string", name)
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("%s must be an ISO-8601 timestamp with a UTC offset: %w", name, err)
		}
		if _, offset := t.Zone(); offset != 0 {
			return fmt.Errorf("%s must be UTC, not offset %s", name, t.Format("Z07:00"))
		}
		return nil
	}
}

// URL validates an absolute http(s) URL field, reusing entity's scheme
// rules by way of a length bound and an optional regex on top of net/url
// parsing.
func URL(maxLen int, isRequired bool, pattern *regexp.Regexp) FieldValidator {
	return func(name string, value any, present bool) error {
		if err := required(name, present, isRequired); err != nil {
			return err
		}
		if !present || value == nil {
			return nil
		}
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%s must be a string", name)
		}
		if maxLen > 0 && len(s) > maxLen {
			return fmt.Errorf("%s must be at most %d characters", name, maxLen)
		}
		u, err := url.Parse(s)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL", name)
		}
		if pattern != nil && !pattern.MatchString(s) {
			return fmt.Errorf("%s does not match the required pattern", name)
		}
		return nil
	}
}

// List validates a list field, optionally checking a minimum length and
// running elem against every element (elem may be nil to skip per-element
// checks).
func List(elem FieldValidator, minLen int, isRequired bool) FieldValidator {
	return func(name string, value any, present bool) error {
		if err := required(name, present, isRequired); err != nil {
			return err
		}
		if !present || value == nil {
			return nil
		}
		items, ok := value.([]any)
		if !ok {
			return fmt.Errorf("%s must be a list", name)
		}
		if minLen > 0 && len(items) < minLen {
			return fmt.Errorf("%s must contain at least %d elements", name, minLen)
		}
		if elem != nil {
			for i, item := range items {
				if err := elem(fmt.Sprintf("%s[%d]", name, i), item, true); err != nil {
					return err
				}
			}
		}
		return nil
	}
}

// Dict validates an object-shaped field without constraining its keys.
func Dict(isRequired bool) FieldValidator {
	return func(name string, value any, present bool) error {
		if err := required(name, present, isRequired); err != nil {
			return err
		}
		if !present || value == nil {
			return nil
		}
		if _, ok := value.(map[string]any); !ok {
			return fmt.Errorf("%s must be an object", name)
		}
		return nil
	}
}

// CronExpression validates a 5-field cron string via
// internal/pkg/config.ValidateCronSchedule, which in turn uses
// github.com/robfig/cron/v3's parser rather than a hand-rolled grammar.
func CronExpression(isRequired bool) FieldValidator {
	return func(name string, value any, present bool) error {
		if err := required(name, present, isRequired); err != nil {
			return err
		}
		if !present || value == nil {
			return nil
		}
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%s must be a string", name)
		}
		if err := config.ValidateCronSchedule(s); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	}
}

// Enum validates that a string field matches one of allowed, accepted
// case-insensitively; on failure the message reports the permitted set.
func Enum(isRequired bool, allowed ...string) FieldValidator {
	return func(name string, value any, present bool) error {
		if err := required(name, present, isRequired); err != nil {
			return err
		}
		if !present || value == nil {
			return nil
		}
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%s must be a string", name)
		}
		for _, a := range allowed {
			if strings.EqualFold(s, a) {
				return nil
			}
		}
		return fmt.Errorf("%s must be one of: %s", name, strings.Join(allowed, ", "))
	}
}

// TaskArgsField validates an object field as a full task_args map via
// ValidateTaskArgs, letting it compose into a larger Schema (e.g. a Task
// patch schema where task_args is one field among several).
func TaskArgsField(isRequired bool) FieldValidator {
	return func(name string, value any, present bool) error {
		if err := required(name, present, isRequired); err != nil {
			return err
		}
		if !present || value == nil {
			return nil
		}
		m, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("%s must be an object", name)
		}
		return ValidateTaskArgs(m)
	}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), n == float64(int(n))
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case time.Duration:
		return n.Seconds(), true
	}
	return 0, false
}
