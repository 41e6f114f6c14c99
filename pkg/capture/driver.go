package capture

import (
	"context"

	"dev/bravebird/page-capture/pkg/models"
)

// Launcher starts browser sessions
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

// Session is a running browser process owned by one run
type Session interface {
	// NewPage opens a blank page sized to the viewport
	NewPage(ctx context.Context, viewport models.Viewport) (Page, error)

	// Close terminates the browser process
	Close() error
}

// Page is a single browser tab. Every blocking call returns once ctx is done.
type Page interface {
	// Navigate loads url and waits for the load event
	Navigate(ctx context.Context, url string) error

	// WaitSelector blocks until an element matches the CSS selector
	WaitSelector(ctx context.Context, selector string) error

	// WaitText blocks until an element's text contains text (case-insensitive)
	WaitText(ctx context.Context, text string) error

	// FullScreenshot renders the whole page, not only the viewport, as PNG
	FullScreenshot(ctx context.Context) ([]byte, error)
}
