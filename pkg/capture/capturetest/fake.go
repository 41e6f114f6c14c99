// Package capturetest provides an in-memory browser for exercising
// capture runs without Chrome.
package capturetest

import (
	"context"
	"sync"

	"dev/bravebird/page-capture/pkg/capture"
	"dev/bravebird/page-capture/pkg/models"
)

// PNG is the image returned by FullScreenshot when Screenshot is nil
var PNG = []byte("\x89PNG\r\n\x1a\nfake")

// Browser implements capture.Launcher, capture.Session and capture.Page.
// Configure the error fields before a run; read the counters after.
type Browser struct {
	mu sync.Mutex

	LaunchErr     error
	PageErr       error
	NavigateErr   error
	Missing       map[string]bool // Selectors or texts that never appear
	Screenshot    []byte
	ScreenshotErr error
	CloseErr      error

	launches int
	closes   int
	calls    []string
	viewport models.Viewport
}

var (
	_ capture.Launcher = (*Browser)(nil)
	_ capture.Session  = (*Browser)(nil)
	_ capture.Page     = (*Browser)(nil)
)

func (b *Browser) record(call string) {
	b.mu.Lock()
	b.calls = append(b.calls, call)
	b.mu.Unlock()
}

// Calls returns every call made so far, in order
func (b *Browser) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

// Launches returns the number of sessions started
func (b *Browser) Launches() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.launches
}

// Closes returns the number of sessions closed
func (b *Browser) Closes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closes
}

// Viewport returns the viewport of the last page opened
func (b *Browser) Viewport() models.Viewport {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.viewport
}

// SetScreenshot changes the image returned by later runs
func (b *Browser) SetScreenshot(data []byte) {
	b.mu.Lock()
	b.Screenshot = data
	b.mu.Unlock()
}

func (b *Browser) Launch(ctx context.Context) (capture.Session, error) {
	b.record("launch")
	if b.LaunchErr != nil {
		return nil, b.LaunchErr
	}
	b.mu.Lock()
	b.launches++
	b.mu.Unlock()
	return b, nil
}

func (b *Browser) NewPage(ctx context.Context, viewport models.Viewport) (capture.Page, error) {
	b.record("page")
	b.mu.Lock()
	b.viewport = viewport
	b.mu.Unlock()
	if b.PageErr != nil {
		return nil, b.PageErr
	}
	return b, nil
}

func (b *Browser) Close() error {
	b.record("close")
	b.mu.Lock()
	b.closes++
	b.mu.Unlock()
	return b.CloseErr
}

func (b *Browser) Navigate(ctx context.Context, url string) error {
	b.record("navigate " + url)
	return b.NavigateErr
}

func (b *Browser) WaitSelector(ctx context.Context, selector string) error {
	b.record("selector " + selector)
	return b.wait(ctx, selector)
}

func (b *Browser) WaitText(ctx context.Context, text string) error {
	b.record("text " + text)
	return b.wait(ctx, text)
}

func (b *Browser) wait(ctx context.Context, key string) error {
	if b.Missing[key] {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (b *Browser) FullScreenshot(ctx context.Context) ([]byte, error) {
	b.record("screenshot")
	if b.ScreenshotErr != nil {
		return nil, b.ScreenshotErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Screenshot != nil {
		return b.Screenshot, nil
	}
	return PNG, nil
}
