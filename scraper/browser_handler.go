package scraper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
	"hk_bids/config"
	"hk_bids/httputil"
)

const navigationTimeoutMS = 60000

// BrowserFetcher renders listing pages in headless Chromium. The driver and
// browser are started on first use and shared; every Fetch gets its own
// browser context that is closed before Fetch returns.
type BrowserFetcher struct {
	cfg      config.EnrichConfig
	proxyURL string

	mu          sync.Mutex
	pw          *playwright.Playwright
	browser     playwright.Browser
	initialized bool
}

func NewBrowserFetcher(cfg config.EnrichConfig, proxyURL string) *BrowserFetcher {
	return &BrowserFetcher{cfg: cfg, proxyURL: proxyURL}
}

func (f *BrowserFetcher) ID() string {
	return "browser"
}

func (f *BrowserFetcher) ensureBrowser() (playwright.Browser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.initialized {
		return f.browser, nil
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	opts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(f.cfg.Headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	}
	if f.proxyURL != "" {
		opts.Proxy = &playwright.Proxy{Server: f.proxyURL}
	}

	browser, err := pw.Chromium.Launch(opts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	f.pw = pw
	f.browser = browser
	f.initialized = true
	return browser, nil
}

// Fetch loads url, waits the settle delay and returns the page HTML.
func (f *BrowserFetcher) Fetch(ctx context.Context, url string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	browser, err := f.ensureBrowser()
	if err != nil {
		return "", err
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String(httputil.UserAgent),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create browser context: %w", err)
	}
	defer bctx.Close()

	page, err := bctx.NewPage()
	if err != nil {
		return "", fmt.Errorf("failed to create page: %w", err)
	}
	defer page.Close()

	zap.S().Debugf("Browser: navigating to %s", url)
	resp, err := page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(navigationTimeoutMS),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return "", fmt.Errorf("navigate %s: %w", url, err)
	}
	if resp != nil && resp.Status() >= 400 {
		return "", fmt.Errorf("navigate %s: status %d", url, resp.Status())
	}

	if err := settle(ctx, f.cfg.SettleDelay); err != nil {
		return "", err
	}

	content, err := page.Content()
	if err != nil {
		return "", fmt.Errorf("read content %s: %w", url, err)
	}
	return content, nil
}

// Close stops the browser and driver. The fetcher can be reused afterwards;
// the next Fetch starts a fresh browser.
func (f *BrowserFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var firstErr error
	if f.browser != nil {
		if err := f.browser.Close(); err != nil {
			firstErr = err
		}
		f.browser = nil
	}
	if f.pw != nil {
		if err := f.pw.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
		f.pw = nil
	}
	f.initialized = false
	return firstErr
}

func settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
