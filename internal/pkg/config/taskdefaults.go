package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TaskArgDefaults is the on-disk shape of an operator-supplied override
// file for the built-in task_args defaults (entity.DefaultTaskArgs).
// Only the keys present in the file are overridden; everything else
// keeps the compiled-in value.
type TaskArgDefaults struct {
	MaxRetries int     `yaml:"max_retries"`
	RetryDelay float64 `yaml:"retry_delay"`
	Timeout    int     `yaml:"timeout"`
}

// LoadTaskArgDefaults reads a YAML file of task_args default overrides.
// A missing file is not an error: the caller keeps its compiled-in
// defaults. This mirrors the teacher's LoadSecurityConfig, swapping the
// security-policy shape for the crawl domain's retry/timeout defaults.
func LoadTaskArgDefaults(path string) (*TaskArgDefaults, error) {
	// #nosec G304 -- path is operator-supplied via CLI/env, not user input
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read task arg defaults: %w", err)
	}

	var defaults TaskArgDefaults
	if err := yaml.Unmarshal(data, &defaults); err != nil {
		return nil, fmt.Errorf("parse task arg defaults: %w", err)
	}
	return &defaults, nil
}

// Apply merges non-zero fields from d into the given task_args default
// map, mutating it in place.
func (d *TaskArgDefaults) Apply(args map[string]any) {
	if d == nil {
		return
	}
	if d.MaxRetries != 0 {
		args["max_retries"] = d.MaxRetries
	}
	if d.RetryDelay != 0 {
		args["retry_delay"] = d.RetryDelay
	}
	if d.Timeout != 0 {
		args["timeout"] = d.Timeout
	}
}
