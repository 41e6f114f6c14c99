// Package config reads runtime settings from the environment. Every value
// has a default, so an empty environment reproduces the landing page check.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"dev/bravebird/page-capture/pkg/browser"
	"dev/bravebird/page-capture/pkg/capture"
	"dev/bravebird/page-capture/pkg/models"
)

const TaskQueue = "page-capture"

// Config holds settings shared by the capture CLI, the worker and the API
type Config struct {
	Capture capture.Options
	Browser browser.Config

	// StrictExit makes the CLI exit with Outcome.ExitCode instead of 0
	StrictExit bool

	ScreenshotDir string
	MySQLDSN      string
	TemporalHost  string
	Port          string
}

// Load reads the process environment
func Load() (Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom reads settings through getenv
func LoadFrom(getenv func(string) string) (Config, error) {
	env := func(key, defaultVal string) string {
		if val := getenv(key); val != "" {
			return val
		}
		return defaultVal
	}

	cfg := Config{
		Capture:       capture.DefaultOptions(),
		Browser:       browser.DefaultConfig(),
		ScreenshotDir: env("SCREENSHOT_DIR", "/tmp/screenshots"),
		MySQLDSN:      env("MYSQL_DSN", "automator:automator@tcp(localhost:3306)/automator?parseTime=true"),
		TemporalHost:  env("TEMPORAL_HOST", "localhost:7233"),
		Port:          env("PORT", "8080"),
	}

	cfg.Capture.TargetURL = env("CAPTURE_TARGET_URL", cfg.Capture.TargetURL)
	cfg.Capture.OutputPath = env("CAPTURE_OUTPUT_PATH", cfg.Capture.OutputPath)

	var err error
	if cfg.Capture.Viewport.Width, err = envInt(getenv, "CAPTURE_VIEWPORT_WIDTH", cfg.Capture.Viewport.Width); err != nil {
		return cfg, err
	}
	if cfg.Capture.Viewport.Height, err = envInt(getenv, "CAPTURE_VIEWPORT_HEIGHT", cfg.Capture.Viewport.Height); err != nil {
		return cfg, err
	}
	if cfg.Capture.NavigationTimeout, err = envDuration(getenv, "CAPTURE_NAV_TIMEOUT", cfg.Capture.NavigationTimeout); err != nil {
		return cfg, err
	}
	if cfg.Capture.WaitTimeout, err = envDuration(getenv, "CAPTURE_WAIT_TIMEOUT", cfg.Capture.WaitTimeout); err != nil {
		return cfg, err
	}

	// Either list replaces the matching default criteria
	selectors, err := envList(getenv, "CAPTURE_WAIT_SELECTORS")
	if err != nil {
		return cfg, err
	}
	texts, err := envList(getenv, "CAPTURE_WAIT_TEXTS")
	if err != nil {
		return cfg, err
	}
	if selectors != nil || texts != nil {
		cfg.Capture.Criteria = mergeCriteria(cfg.Capture.Criteria, selectors, texts)
	}

	cfg.Browser.Bin = getenv("CHROME_BIN")
	cfg.Browser.RemoteURL = getenv("CHROME_REMOTE_URL")
	if cfg.Browser.Headless, err = envBool(getenv, "CAPTURE_HEADLESS", cfg.Browser.Headless); err != nil {
		return cfg, err
	}
	if cfg.Browser.Stealth, err = envBool(getenv, "CAPTURE_STEALTH", false); err != nil {
		return cfg, err
	}
	if cfg.StrictExit, err = envBool(getenv, "CAPTURE_STRICT_EXIT", false); err != nil {
		return cfg, err
	}

	if err := cfg.Capture.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid capture settings: %w", err)
	}
	return cfg, nil
}

func envInt(getenv func(string) string, key string, defaultVal int) (int, error) {
	val := getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envDuration(getenv func(string) string, key string, defaultVal time.Duration) (time.Duration, error) {
	val := getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be positive, got %s", key, val)
	}
	return d, nil
}

func envBool(getenv func(string) string, key string, defaultVal bool) (bool, error) {
	val := getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

// envList returns nil for an unset variable and rejects one that is set but
// names nothing
func envList(getenv func(string) string, key string) ([]string, error) {
	val := getenv(key)
	if val == "" {
		return nil, nil
	}
	list := splitList(val)
	if list == nil {
		return nil, fmt.Errorf("%s: no entries in %q", key, val)
	}
	return list, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func mergeCriteria(defaults []models.ReadinessCriterion, selectors, texts []string) []models.ReadinessCriterion {
	var out []models.ReadinessCriterion

	if selectors == nil {
		out = append(out, filterKind(defaults, models.CriterionSelector)...)
	}
	for _, s := range selectors {
		out = append(out, models.ReadinessCriterion{Kind: models.CriterionSelector, Value: s})
	}

	if texts == nil {
		out = append(out, filterKind(defaults, models.CriterionText)...)
	}
	for _, s := range texts {
		out = append(out, models.ReadinessCriterion{Kind: models.CriterionText, Value: s})
	}
	return out
}

func filterKind(criteria []models.ReadinessCriterion, kind models.CriterionKind) []models.ReadinessCriterion {
	var out []models.ReadinessCriterion
	for _, c := range criteria {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}
