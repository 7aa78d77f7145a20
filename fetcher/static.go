package fetcher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"galleria/config"
)

// StaticClient fetches pages with a single HTTP GET and no JavaScript
// execution. It fails fast: retry policy belongs to the caller, because "a
// few cheap retries for a gallery page" and "backoff for an image stream"
// are different policies.
type StaticClient struct {
	httpClient *http.Client
	headers    *config.HeaderSet
	userAgent  string
	log        *logrus.Entry
}

// NewStaticClient creates a static fetcher with the given timeout and static
// header/cookie set.
func NewStaticClient(timeout time.Duration, userAgent string, headers *config.HeaderSet, log *logrus.Logger) *StaticClient {
	if headers == nil {
		headers = &config.HeaderSet{}
	}
	return &StaticClient{
		httpClient: &http.Client{Timeout: timeout},
		headers:    headers,
		userAgent:  userAgent,
		log:        log.WithField("component", "fetcher.static"),
	}
}

// Fetch performs one GET. All failures are encoded in the Result's Status;
// the error return is reserved for conditions the caller cannot interpret
// from a Status alone (currently none, kept for interface symmetry).
func (c *StaticClient) Fetch(ctx context.Context, targetURL string) Result {
	result := Result{URL: targetURL, FinalURL: targetURL, Strategy: StrategyStatic}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		c.log.WithField("url", targetURL).Warnf("Bad request: %v", err)
		result.Status = StatusError
		return result
	}
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		result.Status = classifyNetworkError(err)
		c.log.WithField("url", targetURL).Warnf("Static fetch failed (%s): %v", result.Status, err)
		return result
	}
	defer resp.Body.Close()

	result.FinalURL = resp.Request.URL.String()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		result.Status = classifyNetworkError(err)
		return result
	}

	decompressed, wasCompressed, err := DecompressBody(bodyBytes, resp.Header.Get("Content-Encoding"))
	if err != nil {
		c.log.WithField("url", targetURL).Warnf("Decompression failed: %v", err)
		result.Status = StatusError
		return result
	}
	if wasCompressed {
		c.log.Debugf("Decompressed response: %d -> %d bytes", len(bodyBytes), len(decompressed))
		bodyBytes = decompressed
	}

	body := string(bodyBytes)

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		result.Status = StatusNotFound
	case looksBlocked(resp.StatusCode, body):
		c.log.WithField("url", targetURL).Warn("Block/challenge page detected")
		result.Status = StatusBlocked
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		result.Status = StatusError
	default:
		result.Status = StatusOK
		result.HTML = body
	}
	return result
}

// Do exposes the underlying HTTP client for auxiliary requests that share the
// run's timeout (robots.txt).
func (c *StaticClient) Do(req *http.Request) (*http.Response, error) {
	c.applyHeaders(req)
	return c.httpClient.Do(req)
}

func (c *StaticClient) applyHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	for name, value := range c.headers.Headers {
		req.Header.Set(name, value)
	}
	for name, value := range c.headers.Cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
}

func classifyNetworkError(err error) Status {
	if errors.Is(err, context.DeadlineExceeded) {
		return StatusTimeout
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return StatusTimeout
	}
	return StatusError
}
