package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"

	"galleria/config"
)

// Browser drives a single shared headless browser process. The process is
// started lazily on the first fetch and reused for the remainder of the run
// to amortize startup cost. One fetch holds the browser exclusively from
// navigation through the last scroll cycle; each fetch runs in its own tab,
// torn down when the fetch ends.
type Browser struct {
	headless   bool
	userAgent  string
	settle     time.Duration
	maxScrolls int
	timeout    time.Duration
	cookies    map[string]string
	log        *logrus.Entry

	mu            sync.Mutex
	started       bool
	cancelAlloc   context.CancelFunc
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
}

// BrowserOptions configures the shared browser.
type BrowserOptions struct {
	Headless    bool
	UserAgent   string
	SettleDelay time.Duration
	MaxScrolls  int
	PageTimeout time.Duration
	Headers     *config.HeaderSet
}

// NewBrowser prepares a browser handle. No process is started until the
// first Fetch.
func NewBrowser(opts BrowserOptions, log *logrus.Logger) *Browser {
	cookies := map[string]string{}
	if opts.Headers != nil {
		cookies = opts.Headers.Cookies
	}
	return &Browser{
		headless:   opts.Headless,
		userAgent:  opts.UserAgent,
		settle:     opts.SettleDelay,
		maxScrolls: opts.MaxScrolls,
		timeout:    opts.PageTimeout,
		cookies:    cookies,
		log:        log.WithField("component", "fetcher.browser"),
	}
}

// Fetch navigates to the URL, waits for the page to settle, scrolls to the
// bottom in bounded cycles to trigger lazy loading, and returns the hydrated
// DOM serialization. An unresponsive browser is recycled once and the fetch
// retried once against the fresh process.
func (b *Browser) Fetch(ctx context.Context, targetURL string) (Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ensureStarted(); err != nil {
		return Result{URL: targetURL, FinalURL: targetURL, Status: StatusError, Strategy: StrategyBrowser}, err
	}

	result, err := b.fetchTab(ctx, targetURL)
	if err == nil || !errors.Is(err, context.DeadlineExceeded) {
		// Non-timeout failures are already encoded in the Status.
		return result, nil
	}

	// Browser layer timed out: assume the process is wedged, restart it and
	// retry the fetch once.
	b.log.Warn("Browser unresponsive, recycling process")
	b.shutdownLocked()
	if startErr := b.ensureStarted(); startErr != nil {
		return Result{URL: targetURL, FinalURL: targetURL, Status: StatusError, Strategy: StrategyBrowser}, startErr
	}
	result, _ = b.fetchTab(ctx, targetURL)
	return result, nil
}

// Close tears the browser process down. Safe to call when it never started.
func (b *Browser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.shutdownLocked()
}

func (b *Browser) ensureStarted() error {
	if b.started {
		return nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(b.userAgent),
		chromedp.Flag("headless", b.headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// Run with no actions forces the process to launch now, so a broken
	// environment fails here instead of mid-crawl.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return fmt.Errorf("%w: %v", ErrBrowserUnavailable, err)
	}

	b.cancelAlloc = cancelAlloc
	b.browserCtx = browserCtx
	b.cancelBrowser = cancelBrowser
	b.started = true
	b.log.Info("Headless browser started")
	return nil
}

func (b *Browser) shutdownLocked() {
	if !b.started {
		return
	}
	b.cancelBrowser()
	b.cancelAlloc()
	b.started = false
	b.log.Info("Headless browser stopped")
}

// fetchTab performs one navigation in a fresh tab of the shared process.
func (b *Browser) fetchTab(ctx context.Context, targetURL string) (Result, error) {
	result := Result{URL: targetURL, FinalURL: targetURL, Strategy: StrategyBrowser}

	tabCtx, cancelTab := chromedp.NewContext(b.browserCtx)
	defer cancelTab()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, b.timeout)
	defer cancelTimeout()

	// Propagate caller cancellation (user interrupt) into the tab so the
	// browser lock is released instead of riding out the page timeout.
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	tasks := []chromedp.Action{}
	if len(b.cookies) > 0 {
		tasks = append(tasks, b.setCookies(targetURL))
	}
	tasks = append(tasks,
		chromedp.Navigate(targetURL),
		chromedp.WaitReady("body"),
		chromedp.Sleep(b.settle),
	)

	if err := chromedp.Run(tabCtx, tasks...); err != nil {
		result.Status = classifyBrowserError(ctx, err)
		return result, err
	}

	if err := b.scrollToBottom(tabCtx); err != nil {
		result.Status = classifyBrowserError(ctx, err)
		return result, err
	}

	var html, finalURL string
	if err := chromedp.Run(tabCtx,
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html),
	); err != nil {
		result.Status = classifyBrowserError(ctx, err)
		return result, err
	}

	if finalURL != "" {
		result.FinalURL = finalURL
	}
	if looksBlocked(200, html) {
		b.log.WithField("url", targetURL).Warn("Block/challenge page detected in browser")
		result.Status = StatusBlocked
		return result, nil
	}

	result.Status = StatusOK
	result.HTML = html
	return result, nil
}

// scrollToBottom performs incremental scroll cycles until the document height
// stops growing for two consecutive cycles or the bound is hit.
func (b *Browser) scrollToBottom(tabCtx context.Context) error {
	prevHeight := -1
	stableCycles := 0

	for i := 0; i < b.maxScrolls; i++ {
		var height int
		err := chromedp.Run(tabCtx,
			chromedp.Evaluate("document.body.scrollHeight", &height),
			chromedp.Evaluate("window.scrollTo(0, document.body.scrollHeight)", nil),
			chromedp.Sleep(1500*time.Millisecond),
		)
		if err != nil {
			return err
		}

		if height == prevHeight {
			stableCycles++
			if stableCycles >= 2 {
				break
			}
		} else {
			stableCycles = 0
		}
		prevHeight = height
	}
	return nil
}

// setCookies injects the configured static cookies for the target host
// before navigation.
func (b *Browser) setCookies(targetURL string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		parsed, err := url.Parse(targetURL)
		if err != nil {
			return err
		}
		var params []*network.CookieParam
		for name, value := range b.cookies {
			params = append(params, &network.CookieParam{
				Name:   name,
				Value:  value,
				Domain: parsed.Hostname(),
				Path:   "/",
			})
		}
		return network.SetCookies(params).Do(ctx)
	})
}

func classifyBrowserError(callerCtx context.Context, err error) Status {
	if callerCtx.Err() != nil {
		return StatusError
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return StatusTimeout
	}
	return StatusError
}
