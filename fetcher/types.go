package fetcher

import "errors"

// Status classifies the effective outcome of a page fetch. Network errors,
// timeouts and non-2xx responses all map to a Status instead of escaping this
// boundary.
type Status string

const (
	StatusOK       Status = "ok"
	StatusNotFound Status = "not_found"
	StatusBlocked  Status = "blocked"
	StatusTimeout  Status = "timeout"
	StatusError    Status = "error"
)

// Strategy selects how a page is fetched.
type Strategy string

const (
	// StrategyStatic issues a single HTTP GET, no JavaScript execution.
	StrategyStatic Strategy = "static"
	// StrategyBrowser renders the page in a headless browser.
	StrategyBrowser Strategy = "browser"
	// StrategyAuto is a caller-level policy: static first, browser when the
	// detector's yield falls below the configured threshold. The Fetcher
	// itself never sees it.
	StrategyAuto Strategy = "auto"
)

// Result is an immutable record of one page fetch.
type Result struct {
	URL      string
	FinalURL string
	HTML     string
	Status   Status
	Strategy Strategy
}

// OK reports whether the fetch produced usable HTML.
func (r Result) OK() bool { return r.Status == StatusOK }

// ErrBrowserUnavailable is returned when a fresh browser process cannot be
// started. It is the only fetch condition fatal to a run.
var ErrBrowserUnavailable = errors.New("browser unavailable")
