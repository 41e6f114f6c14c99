package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dev/bravebird/page-capture/pkg/capture/capturetest"
	"dev/bravebird/page-capture/pkg/config"
)

func testConfig(t *testing.T, strict bool) config.Config {
	cfg, err := config.LoadFrom(func(string) string { return "" })
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	cfg.Capture.OutputPath = filepath.Join(t.TempDir(), "landing_page_final.png")
	cfg.Capture.NavigationTimeout = 50 * time.Millisecond
	cfg.Capture.WaitTimeout = 50 * time.Millisecond
	cfg.StrictExit = strict
	return cfg
}

func TestRunExitCodes(t *testing.T) {
	tests := []struct {
		name       string
		browser    func() *capturetest.Browser
		wantLine   string
		wantStrict int
	}{
		{
			name:       "Success",
			browser:    func() *capturetest.Browser { return &capturetest.Browser{} },
			wantLine:   "Screenshot taken: ",
			wantStrict: 0,
		},
		{
			name:       "Browser fails to start",
			browser:    func() *capturetest.Browser { return &capturetest.Browser{LaunchErr: errors.New("no chrome")} },
			wantLine:   "Error: ",
			wantStrict: 1,
		},
		{
			name: "Server down",
			browser: func() *capturetest.Browser {
				return &capturetest.Browser{NavigateErr: errors.New("net::ERR_CONNECTION_REFUSED")}
			},
			wantLine:   "Error: ",
			wantStrict: 2,
		},
		{
			name: "Text never appears",
			browser: func() *capturetest.Browser {
				return &capturetest.Browser{Missing: map[string]bool{"Digital Dukan": true}}
			},
			wantLine:   "Error: ",
			wantStrict: 3,
		},
		{
			name: "Screenshot fails",
			browser: func() *capturetest.Browser {
				return &capturetest.Browser{ScreenshotErr: errors.New("renderer crashed")}
			},
			wantLine:   "Error: ",
			wantStrict: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, strict := range []bool{false, true} {
				var stdout bytes.Buffer
				got := run(context.Background(), testConfig(t, strict), tt.browser(), &stdout)

				want := 0
				if strict {
					want = tt.wantStrict
				}
				if got != want {
					t.Errorf("run() strict=%v = %d, want %d", strict, got, want)
				}

				line := stdout.String()
				if !strings.HasPrefix(line, tt.wantLine) || strings.Count(line, "\n") != 1 {
					t.Errorf("run() strict=%v printed %q, want one line starting %q", strict, line, tt.wantLine)
				}
			}
		})
	}
}

func TestRunReleasesBrowserInEveryMode(t *testing.T) {
	for _, strict := range []bool{false, true} {
		b := &capturetest.Browser{NavigateErr: errors.New("net::ERR_CONNECTION_REFUSED")}
		run(context.Background(), testConfig(t, strict), b, &bytes.Buffer{})
		if b.Closes() != 1 {
			t.Errorf("strict=%v: Closes() = %d, want 1", strict, b.Closes())
		}
	}
}
