// Package browser drives a real browser through Playwright. One Launcher
// owns the Playwright process and a launched browser; every session is a
// new browser context with a single page.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/devicelab-dev/scenario-runner/pkg/core"
	"github.com/devicelab-dev/scenario-runner/pkg/logger"
)

// Supported browser engines.
var Browsers = []string{"chromium", "firefox", "webkit"}

// Config configures the launched browser.
type Config struct {
	Browser    string        // chromium (default), firefox, webkit
	Headless   bool          // Run without a visible window
	SlowMo     time.Duration // Delay between Playwright operations
	DriverDir  string        // Where the Playwright driver is installed
	NavTimeout time.Duration // Page load timeout, default 30s
	Viewport   playwright.Size
}

// Launcher starts Playwright once per run and hands out isolated sessions.
type Launcher struct {
	cfg     Config
	pw      *playwright.Playwright
	browser playwright.Browser

	mu     sync.Mutex
	closed bool
}

// ValidateBrowser checks that name is a supported engine.
func ValidateBrowser(name string) error {
	for _, b := range Browsers {
		if b == name {
			return nil
		}
	}
	return fmt.Errorf("unsupported browser %q (want chromium, firefox or webkit)", name)
}

func (c Config) withDefaults() Config {
	if c.Browser == "" {
		c.Browser = "chromium"
	}
	if c.NavTimeout <= 0 {
		c.NavTimeout = 30 * time.Second
	}
	if c.Viewport.Width == 0 || c.Viewport.Height == 0 {
		c.Viewport = playwright.Size{Width: 1280, Height: 720}
	}
	return c
}

func (c Config) runOptions() *playwright.RunOptions {
	return &playwright.RunOptions{
		DriverDirectory: c.DriverDir,
		Browsers:        []string{c.Browser},
		Stdout:          logger.GetWriter(),
		Stderr:          logger.GetWriter(),
	}
}

// Install downloads the Playwright driver and the given browsers.
func Install(driverDir string, browsers []string) error {
	for _, b := range browsers {
		if err := ValidateBrowser(b); err != nil {
			return err
		}
	}
	err := playwright.Install(&playwright.RunOptions{
		DriverDirectory: driverDir,
		Browsers:        browsers,
		Stdout:          logger.GetWriter(),
		Stderr:          logger.GetWriter(),
	})
	if err != nil {
		return fmt.Errorf("could not install playwright: %w", err)
	}
	return nil
}

// Launch starts Playwright and the configured browser.
func Launch(cfg Config) (*Launcher, error) {
	cfg = cfg.withDefaults()
	if err := ValidateBrowser(cfg.Browser); err != nil {
		return nil, err
	}

	pw, err := playwright.Run(cfg.runOptions())
	if err != nil {
		return nil, fmt.Errorf("could not start playwright (run `scenario-runner install`): %w", err)
	}

	var bt playwright.BrowserType
	switch cfg.Browser {
	case "firefox":
		bt = pw.Firefox
	case "webkit":
		bt = pw.WebKit
	default:
		bt = pw.Chromium
	}

	browser, err := bt.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
		SlowMo:   playwright.Float(float64(cfg.SlowMo.Milliseconds())),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("could not launch %s: %w", cfg.Browser, err)
	}

	logger.Info("Launched %s %s (headless=%v)", cfg.Browser, browser.Version(), cfg.Headless)
	return &Launcher{cfg: cfg, pw: pw, browser: browser}, nil
}

// NewSession creates a fresh browser context and page.
func (l *Launcher) NewSession(ctx context.Context) (core.Driver, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, fmt.Errorf("browser launcher is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bctx, err := l.browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &l.cfg.Viewport,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create browser context: %w", err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("could not create page: %w", err)
	}

	return &Session{
		cfg:     l.cfg,
		context: bctx,
		page:    page,
		version: l.browser.Version(),
	}, nil
}

// Close stops the browser and the Playwright process.
func (l *Launcher) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	var firstErr error
	if err := l.browser.Close(); err != nil {
		firstErr = fmt.Errorf("close browser: %w", err)
	}
	if err := l.pw.Stop(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("stop playwright: %w", err)
	}
	return firstErr
}
