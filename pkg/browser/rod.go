// Package browser implements capture sessions on top of Go Rod.
package browser

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"dev/bravebird/page-capture/pkg/capture"
	"dev/bravebird/page-capture/pkg/models"
)

// Config holds browser launch settings
type Config struct {
	// Bin is the Chrome binary. Empty lets the launcher find or download one.
	Bin string

	// RemoteURL is the DevTools WebSocket URL of an already running browser.
	// Empty launches a local process.
	RemoteURL string

	Headless bool

	// Stealth opens pages with anti-automation-detection patches applied
	Stealth bool
}

// DefaultConfig returns a headless local launch
func DefaultConfig() Config {
	return Config{Headless: true}
}

// Launcher starts Rod-controlled browser sessions
type Launcher struct {
	cfg Config
}

// NewLauncher creates a Launcher
func NewLauncher(cfg Config) *Launcher {
	return &Launcher{cfg: cfg}
}

// Available reports whether a local browser binary can be found without
// downloading one
func Available() bool {
	_, ok := launcher.LookPath()
	return ok
}

// Launch starts (or connects to) a browser
func (l *Launcher) Launch(ctx context.Context) (capture.Session, error) {
	var (
		controlURL string
		lnch       *launcher.Launcher
	)

	if l.cfg.RemoteURL != "" {
		controlURL = l.cfg.RemoteURL
	} else {
		lnch = launcher.New().Context(ctx)

		if l.cfg.Bin != "" {
			lnch = lnch.Bin(l.cfg.Bin)
		}
		lnch = lnch.Headless(l.cfg.Headless)

		// Flags for container compatibility
		lnch = lnch.Set("no-sandbox")
		lnch = lnch.Set("disable-gpu")
		lnch = lnch.Set("disable-dev-shm-usage")

		u, err := lnch.Launch()
		if err != nil {
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
		controlURL = u
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		if lnch != nil {
			lnch.Kill()
			lnch.Cleanup()
		}
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	return &session{
		browser: b,
		lnch:    lnch,
		stealth: l.cfg.Stealth,
	}, nil
}

type session struct {
	browser *rod.Browser
	lnch    *launcher.Launcher
	stealth bool

	closeOnce sync.Once
	closeErr  error
}

func (s *session) NewPage(ctx context.Context, viewport models.Viewport) (capture.Page, error) {
	var (
		p   *rod.Page
		err error
	)
	if s.stealth {
		p, err = stealth.Page(s.browser)
	} else {
		p, err = s.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	err = p.Context(ctx).SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             viewport.Width,
		Height:            viewport.Height,
		DeviceScaleFactor: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set viewport: %w", err)
	}

	return &page{page: p}, nil
}

// Close shuts the browser down. A local process is killed and its profile
// directory removed even when the DevTools close call fails.
func (s *session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.browser.Close()
		if s.lnch != nil {
			s.lnch.Kill()
			s.lnch.Cleanup()
		}
	})
	return s.closeErr
}

type page struct {
	page *rod.Page
}

func (p *page) Navigate(ctx context.Context, url string) error {
	pg := p.page.Context(ctx)
	if err := pg.Navigate(url); err != nil {
		return err
	}
	return pg.WaitLoad()
}

func (p *page) WaitSelector(ctx context.Context, selector string) error {
	_, err := p.page.Context(ctx).Element(selector)
	return err
}

func (p *page) WaitText(ctx context.Context, text string) error {
	_, err := p.page.Context(ctx).ElementR("*", textPattern(text))
	return err
}

func (p *page) FullScreenshot(ctx context.Context) ([]byte, error) {
	return p.page.Context(ctx).Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

// textPattern builds a case-insensitive JS regex literal matching text verbatim
func textPattern(text string) string {
	quoted := regexp.QuoteMeta(text)
	quoted = strings.ReplaceAll(quoted, "/", `\/`)
	return "/" + quoted + "/i"
}
