package crawl

import (
	"context"
	"net/http"

	"github.com/gocolly/colly"
	"github.com/sirupsen/logrus"

	"galleria/config"
	"galleria/detect"
	"galleria/fetcher"
)

// Category walks a listing/category page chain and collects the gallery URLs
// it links to. Listing pages are fetched with colly; a listing that yields
// suspiciously few links is re-fetched with the browser strategy, mirroring
// the auto-escalation used for gallery pages.
type Category struct {
	cfg      *config.Config
	headers  *config.HeaderSet
	fetch    PageFetcher
	detector *detect.Detector
	log      *logrus.Entry
}

// NewCategory builds a category crawler. fetch is only used for browser
// escalation; static listing fetches go through a dedicated colly collector.
func NewCategory(cfg *config.Config, headers *config.HeaderSet, fetch PageFetcher, detector *detect.Detector, log *logrus.Logger) *Category {
	if headers == nil {
		headers = &config.HeaderSet{}
	}
	return &Category{
		cfg:      cfg,
		headers:  headers,
		fetch:    fetch,
		detector: detector,
		log:      log.WithField("component", "crawl.category"),
	}
}

// newCollector builds a fresh collector per Discover call so handler state
// never leaks between runs.
func (c *Category) newCollector() *colly.Collector {
	opts := []func(*colly.Collector){
		colly.UserAgent(c.cfg.UserAgent),
		colly.AllowURLRevisit(),
	}
	if !c.cfg.RespectRobots {
		opts = append(opts, colly.IgnoreRobotsTxt())
	}
	collector := colly.NewCollector(opts...)
	collector.SetRequestTimeout(c.cfg.PageTimeout)

	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
		r.Headers.Set("Accept-Encoding", "gzip, deflate, br")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
		for name, value := range c.headers.Headers {
			r.Headers.Set(name, value)
		}
		if cookie := c.headers.CookieHeader(); cookie != "" {
			r.Headers.Set("Cookie", cookie)
		}
	})

	return collector
}

// fetchListing retrieves one listing page via colly and maps the outcome to
// the shared Result shape so the detector and escalation logic stay
// strategy-agnostic.
func (c *Category) fetchListing(collector *colly.Collector, pageURL string) fetcher.Result {
	result := fetcher.Result{URL: pageURL, FinalURL: pageURL, Strategy: fetcher.StrategyStatic, Status: fetcher.StatusError}

	collector.OnResponse(func(r *colly.Response) {
		result.FinalURL = r.Request.URL.String()

		body, wasCompressed, err := fetcher.DecompressBody(r.Body, r.Headers.Get("Content-Encoding"))
		if err != nil {
			c.log.WithField("url", pageURL).Warnf("Decompression failed: %v", err)
			return
		}
		if wasCompressed {
			c.log.Debugf("Decompressed listing: %d -> %d bytes", len(r.Body), len(body))
		}
		result.HTML = string(body)
		result.Status = fetcher.StatusOK
	})

	collector.OnError(func(r *colly.Response, err error) {
		switch r.StatusCode {
		case http.StatusNotFound, http.StatusGone:
			result.Status = fetcher.StatusNotFound
		case http.StatusForbidden, http.StatusTooManyRequests, http.StatusServiceUnavailable:
			result.Status = fetcher.StatusBlocked
		default:
			result.Status = fetcher.StatusError
		}
		c.log.WithFields(logrus.Fields{"url": pageURL, "code": r.StatusCode}).Warnf("Listing fetch failed: %v", err)
	})

	if err := collector.Visit(pageURL); err != nil {
		c.log.WithField("url", pageURL).Warnf("Listing visit failed: %v", err)
		return result
	}
	collector.Wait()
	return result
}

// Discover walks a category's pagination chain and returns the gallery URLs
// found, deduplicated across pages in first-seen order. Per-page fetch
// failures stop the walk with what was collected so far; the error return is
// reserved for run-fatal conditions.
func (c *Category) Discover(ctx context.Context, categoryURL string, strategy fetcher.Strategy) ([]string, error) {
	var galleries []string
	seen := map[string]struct{}{}
	visited := map[string]struct{}{}
	current := categoryURL
	pages := 0

	for pages < c.cfg.MaxPages {
		if err := ctx.Err(); err != nil {
			return galleries, err
		}
		if _, looped := visited[current]; looped {
			break
		}
		visited[current] = struct{}{}
		pages++

		res, err := c.fetchPage(ctx, current, strategy)
		if err != nil {
			return galleries, err
		}
		if !res.OK() {
			c.log.WithFields(logrus.Fields{"url": current, "status": res.Status}).Warn("Listing page failed, stopping category walk")
			break
		}

		links, next := c.detector.DetectLinks(res)

		// A listing that resolves to almost nothing usually means the grid is
		// rendered client-side. Retry once with the browser and keep the
		// richer result.
		if strategy == fetcher.StrategyAuto && res.Strategy == fetcher.StrategyStatic && len(links) < c.cfg.MinImagesThreshold {
			c.log.WithFields(logrus.Fields{"url": current, "links": len(links)}).Info("Sparse listing, escalating to browser")
			browserRes, err := c.fetch.Fetch(ctx, current, fetcher.StrategyBrowser)
			if err != nil {
				return galleries, err
			}
			if browserRes.OK() {
				if bLinks, bNext := c.detector.DetectLinks(browserRes); len(bLinks) > len(links) {
					links, next = bLinks, bNext
				}
			}
		}

		added := 0
		for _, link := range links {
			if _, dup := seen[link]; dup {
				continue
			}
			seen[link] = struct{}{}
			galleries = append(galleries, link)
			added++
		}
		c.log.WithFields(logrus.Fields{"url": current, "page": pages, "new_galleries": added}).Info("Listing processed")

		if next == "" {
			break
		}
		if _, looped := visited[next]; looped {
			break
		}
		current = next
	}

	return galleries, nil
}

func (c *Category) fetchPage(ctx context.Context, pageURL string, strategy fetcher.Strategy) (fetcher.Result, error) {
	if strategy == fetcher.StrategyBrowser {
		return c.fetch.Fetch(ctx, pageURL, fetcher.StrategyBrowser)
	}
	return c.fetchListing(c.newCollector(), pageURL), nil
}
