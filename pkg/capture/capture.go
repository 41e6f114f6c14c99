// Package capture runs a single page-readiness verification: open a browser,
// load the target page, wait for every readiness criterion and write a
// full-page screenshot. The browser is released on every exit path.
package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"dev/bravebird/page-capture/pkg/models"
)

const (
	DefaultTargetURL  = "http://localhost:3000"
	DefaultOutputPath = "/home/jules/verification/landing_page_final.png"
	DefaultTimeout    = 30 * time.Second
)

// Options configures a capture run
type Options struct {
	TargetURL         string
	OutputPath        string
	Viewport          models.Viewport
	Criteria          []models.ReadinessCriterion
	NavigationTimeout time.Duration
	WaitTimeout       time.Duration
}

// DefaultOptions returns the landing page verification settings
func DefaultOptions() Options {
	return Options{
		TargetURL:  DefaultTargetURL,
		OutputPath: DefaultOutputPath,
		// Tall viewport so the whole landing page renders without scrolling
		Viewport: models.Viewport{Width: 1280, Height: 2400},
		Criteria: []models.ReadinessCriterion{
			{Kind: models.CriterionSelector, Value: "h1"},
			{Kind: models.CriterionText, Value: "Digital Dukan"},
		},
		NavigationTimeout: DefaultTimeout,
		WaitTimeout:       DefaultTimeout,
	}
}

// Validate checks that the options describe a runnable capture
func (o Options) Validate() error {
	if o.TargetURL == "" {
		return fmt.Errorf("target URL is required")
	}
	if o.OutputPath == "" {
		return fmt.Errorf("output path is required")
	}
	if o.Viewport.Width <= 0 || o.Viewport.Height <= 0 {
		return fmt.Errorf("invalid viewport %dx%d", o.Viewport.Width, o.Viewport.Height)
	}
	for _, c := range o.Criteria {
		if c.Value == "" {
			return fmt.Errorf("empty %s readiness criterion", c.Kind)
		}
		if c.Kind != models.CriterionSelector && c.Kind != models.CriterionText {
			return fmt.Errorf("unknown readiness criterion kind %q", c.Kind)
		}
	}
	return nil
}

// Outcome is the result of one run. Err is nil only on success.
type Outcome struct {
	Kind         models.OutcomeKind
	ArtifactPath string
	Err          error
	Duration     time.Duration

	// ReleaseErr is set when closing the browser failed; it never changes Kind
	ReleaseErr error
}

// OK reports whether the artifact was written
func (o Outcome) OK() bool {
	return o.Kind == models.KindSuccess
}

// Message is the single status line printed for the run
func (o Outcome) Message() string {
	if o.OK() {
		return "Screenshot taken: " + o.ArtifactPath
	}
	return fmt.Sprintf("Error: %v", o.Err)
}

// ExitCode maps the outcome to a distinct process exit status
func (o Outcome) ExitCode() int {
	switch o.Kind {
	case models.KindSuccess:
		return 0
	case models.KindNavigationError:
		return 2
	case models.KindElementTimeout:
		return 3
	case models.KindCaptureError:
		return 4
	default:
		return 1
	}
}

// PageCapture performs capture runs with a fixed set of options
type PageCapture struct {
	launcher Launcher
	opts     Options
}

// New creates a PageCapture. Zero timeouts fall back to DefaultTimeout.
func New(launcher Launcher, opts Options) *PageCapture {
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = DefaultTimeout
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = DefaultTimeout
	}
	return &PageCapture{
		launcher: launcher,
		opts:     opts,
	}
}

// Options returns the effective options
func (c *PageCapture) Options() Options {
	return c.opts
}

// Run executes one capture. It never returns early without releasing the
// session it acquired.
func (c *PageCapture) Run(ctx context.Context) (out Outcome) {
	start := time.Now()
	defer func() {
		out.Duration = time.Since(start)
		out.Kind = KindOf(out.Err)
	}()

	if err := c.opts.Validate(); err != nil {
		out.Err = &LaunchError{Err: err}
		return out
	}

	session, err := c.launcher.Launch(ctx)
	if err != nil {
		out.Err = &LaunchError{Err: err}
		return out
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			out.ReleaseErr = session.Close()
		})
	}
	defer release()

	if err := c.capture(ctx, session); err != nil {
		out.Err = err
		return out
	}

	out.ArtifactPath = c.opts.OutputPath
	return out
}

func (c *PageCapture) capture(ctx context.Context, session Session) error {
	page, err := session.NewPage(ctx, c.opts.Viewport)
	if err != nil {
		return &LaunchError{Err: fmt.Errorf("failed to create page: %w", err)}
	}

	navCtx, cancel := context.WithTimeout(ctx, c.opts.NavigationTimeout)
	err = page.Navigate(navCtx, c.opts.TargetURL)
	cancel()
	if err != nil {
		return &NavigationError{URL: c.opts.TargetURL, Err: err}
	}

	// Criteria are checked in order; all must hold before the screenshot
	for _, criterion := range c.opts.Criteria {
		if err := c.wait(ctx, page, criterion); err != nil {
			return &ElementTimeoutError{Criterion: criterion, Timeout: c.opts.WaitTimeout, Err: err}
		}
	}

	data, err := page.FullScreenshot(ctx)
	if err != nil {
		return &CaptureError{Path: c.opts.OutputPath, Err: fmt.Errorf("failed to take screenshot: %w", err)}
	}
	if len(data) == 0 {
		return &CaptureError{Path: c.opts.OutputPath, Err: fmt.Errorf("renderer returned an empty image")}
	}

	if err := writeArtifact(c.opts.OutputPath, data); err != nil {
		return &CaptureError{Path: c.opts.OutputPath, Err: err}
	}
	return nil
}

func (c *PageCapture) wait(ctx context.Context, page Page, criterion models.ReadinessCriterion) error {
	waitCtx, cancel := context.WithTimeout(ctx, c.opts.WaitTimeout)
	defer cancel()

	switch criterion.Kind {
	case models.CriterionSelector:
		return page.WaitSelector(waitCtx, criterion.Value)
	case models.CriterionText:
		return page.WaitText(waitCtx, criterion.Value)
	default:
		return fmt.Errorf("unknown readiness criterion kind %q", criterion.Kind)
	}
}

// writeArtifact replaces path atomically so a failed write leaves any
// previous artifact intact
func writeArtifact(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create screenshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".capture-*.png")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to save screenshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to save screenshot: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to save screenshot: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to save screenshot: %w", err)
	}
	return nil
}
