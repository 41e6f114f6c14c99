// Command capture loads the local landing page in a headless browser, waits
// for it to render and saves a full-page screenshot.
//
// The process exits 0 whether or not the check passed; the printed line
// carries the result. Set CAPTURE_STRICT_EXIT=true to exit with a distinct
// code per failure kind instead.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"dev/bravebird/page-capture/pkg/browser"
	"dev/bravebird/page-capture/pkg/capture"
	"dev/bravebird/page-capture/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("Invalid configuration: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, cfg, browser.NewLauncher(cfg.Browser), os.Stdout)
	stop()
	os.Exit(code)
}

// run performs one capture, prints its status line and returns the exit code
func run(ctx context.Context, cfg config.Config, launcher capture.Launcher, stdout io.Writer) int {
	out := capture.New(launcher, cfg.Capture).Run(ctx)
	if out.ReleaseErr != nil {
		log.Printf("Warning: Failed to close browser: %v", out.ReleaseErr)
	}

	fmt.Fprintln(stdout, out.Message())

	if !cfg.StrictExit {
		return 0
	}
	return out.ExitCode()
}
