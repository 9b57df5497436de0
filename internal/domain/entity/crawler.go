package entity

import (
	"errors"
	"fmt"
	"time"
)

// Crawler represents a configured news site crawler: its base URL, the
// cron schedule that drives scheduled runs, and the scraper configuration
// used by the external Site Fetcher collaborator.
type Crawler struct {
	ID               int64
	Name             string
	BaseURL          string
	ListURLTemplate  string
	Active           bool
	CronExpression   string
	Timezone         string
	LastRunAt        *time.Time
	ScraperType      string         `json:"scraper_type"` // RSS, Webflow, NextJS, Remix
	ScraperConfig    *ScraperConfig `json:"scraper_config"`
	TaskArgsDefaults map[string]any `json:"task_args_defaults"`
}

// ScraperConfig holds configuration for web scraping sources.
// Different fields are used depending on the scraper type:
// - Webflow: ItemSelector, TitleSelector, DateSelector, URLSelector, DateFormat
// - NextJS: DataKey, URLPrefix
// - Remix: ContextKey, URLPrefix
type ScraperConfig struct {
	// Webflow HTML selectors
	ItemSelector  string `json:"item_selector,omitempty"`
	TitleSelector string `json:"title_selector,omitempty"`
	DateSelector  string `json:"date_selector,omitempty"`
	URLSelector   string `json:"url_selector,omitempty"`
	DateFormat    string `json:"date_format,omitempty"`

	// Next.js JSON extraction
	DataKey string `json:"data_key,omitempty"`

	// Remix JSON extraction
	ContextKey string `json:"context_key,omitempty"`

	// Common
	URLPrefix string `json:"url_prefix,omitempty"` // Prepend to relative URLs
}

// Validate validates the Crawler entity's scraper configuration fields.
func (c *Crawler) Validate() error {
	if c.ScraperType == "" {
		c.ScraperType = "RSS"
	}

	validTypes := map[string]bool{
		"RSS":     true,
		"Webflow": true,
		"NextJS":  true,
		"Remix":   true,
	}
	if !validTypes[c.ScraperType] {
		return fmt.Errorf("invalid scraper_type: %s (must be RSS, Webflow, NextJS, or Remix)", c.ScraperType)
	}

	if c.ScraperType != "RSS" && c.ScraperConfig == nil {
		return errors.New("scraper_config is required for non-RSS scraper types")
	}

	return nil
}
