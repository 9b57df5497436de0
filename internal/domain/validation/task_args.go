// Package validation is the composable validation layer for task_args
// maps, Crawler fields, and Task patches: a small library of
// FieldValidator primitives (validators.go) composed into named Schemas
// (schema.go) and concrete field tables (this file), mirroring the
// original crawler's str/int/datetime/url/list/dict/enum validator
// toolkit plus its CreateSchema/UpdateSchema pattern.
package validation

import (
	"crawlorch/internal/domain/entity"
	"crawlorch/internal/pkg/config"
)

// taskArgsSchema lists every task_args key the runner understands, built
// from the FieldValidator primitives in validators.go. A key outside this
// set is rejected by ValidateTaskArgs so typos fail fast instead of
// silently being ignored.
var taskArgsSchema = Schema{
	"scrape_mode":                    Enum(false, string(entity.ScrapeModeFullScrape), string(entity.ScrapeModeLinksOnly), string(entity.ScrapeModeContentOnly)),
	"max_pages":                      PositiveInt(false),
	"num_articles":                   PositiveInt(false),
	"min_keywords":                   NonNegativeInt(false),
	"ai_only":                        Bool(false),
	"max_retries":                    NonNegativeInt(false),
	"retry_delay":                    PositiveFloat(false),
	"timeout":                        PositiveInt(false),
	"is_test":                        Bool(false),
	"save_to_csv":                    Bool(false),
	"csv_file_prefix":                Str(0, 0, false, nil),
	"save_to_database":               Bool(false),
	"get_links_by_task_id":           PositiveInt(false),
	"article_links":                  List(URL(0, false, nil), 0, false),
	"save_partial_results_on_cancel": Bool(false),
	"save_partial_to_database":       Bool(false),
	"max_cancel_wait":                PositiveFloat(false),
	"cancel_interrupt_interval":      PositiveFloat(false),
	"cancel_timeout":                 PositiveFloat(false),
	"is_limit_num_articles":          Bool(false),
}

// ValidateTaskArgs checks every key in args against taskArgsSchema and
// rejects any key the runner does not understand. It also enforces the
// cross-field rule that max_retries is bounded to a sane operational
// ceiling beyond the per-field non-negative check.
func ValidateTaskArgs(args map[string]any) error {
	for key := range args {
		if _, ok := taskArgsSchema[key]; !ok {
			return &entity.ValidationError{Field: key, Message: "unrecognized task_args key"}
		}
	}
	if err := taskArgsSchema.ValidateCreate(args); err != nil {
		return err
	}

	if mr, ok := args["max_retries"]; ok {
		if v, _ := toInt(mr); v > 20 {
			return &entity.ValidationError{Field: "max_retries", Message: "must not exceed 20"}
		}
	}

	return nil
}

// ValidateCrawler checks a Crawler's schedule, URL and scraper type.
func ValidateCrawler(c *entity.Crawler) error {
	if err := entity.ValidateURL(c.BaseURL); err != nil {
		return err
	}
	if c.CronExpression != "" {
		if err := CronExpression(false)("cron_expression", c.CronExpression, true); err != nil {
			return &entity.ValidationError{Field: "cron_expression", Message: err.Error()}
		}
	}
	if c.Timezone != "" {
		if err := config.ValidateTimezone(c.Timezone); err != nil {
			return &entity.ValidationError{Field: "timezone", Message: err.Error()}
		}
	}
	return c.Validate()
}
