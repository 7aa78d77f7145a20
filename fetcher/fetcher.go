package fetcher

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"galleria/config"
)

// Fetcher dispatches page fetches to the static or browser strategy. It
// owns the shared browser lifecycle; callers must Close it at the end of the
// run.
type Fetcher struct {
	static  *StaticClient
	browser *Browser
	robots  *RobotsGate
	log     *logrus.Entry
}

// New wires a Fetcher from the run configuration.
func New(cfg *config.Config, headers *config.HeaderSet, log *logrus.Logger) *Fetcher {
	static := NewStaticClient(cfg.PageTimeout, cfg.UserAgent, headers, log)
	browser := NewBrowser(BrowserOptions{
		Headless:    cfg.Headless,
		UserAgent:   cfg.UserAgent,
		SettleDelay: cfg.SettleDelay,
		MaxScrolls:  cfg.MaxScrolls,
		PageTimeout: cfg.PageTimeout,
		Headers:     headers,
	}, log)

	return &Fetcher{
		static:  static,
		browser: browser,
		robots:  NewRobotsGate(cfg.RespectRobots, static, cfg.UserAgent, log),
		log:     log.WithField("component", "fetcher"),
	}
}

// Fetch retrieves one page with the given strategy. Failures are encoded in
// the Result's Status; the error return is non-nil only for conditions fatal
// to the run (a browser process that cannot start).
func (f *Fetcher) Fetch(ctx context.Context, targetURL string, strategy Strategy) (Result, error) {
	if !f.robots.Allowed(ctx, targetURL) {
		f.log.WithField("url", targetURL).Warn("Disallowed by robots.txt")
		return Result{URL: targetURL, FinalURL: targetURL, Status: StatusBlocked, Strategy: strategy}, nil
	}

	switch strategy {
	case StrategyStatic:
		return f.static.Fetch(ctx, targetURL), nil
	case StrategyBrowser:
		return f.browser.Fetch(ctx, targetURL)
	default:
		return Result{}, fmt.Errorf("unknown fetch strategy %q", strategy)
	}
}

// Close tears down the shared browser if it was started.
func (f *Fetcher) Close() {
	f.browser.Close()
}
