// Package crawl expands one seed URL into many: the paginator walks a
// gallery's "next" chain merging candidates, and the category crawler
// enumerates gallery URLs across catalog pages.
package crawl

import (
	"context"

	"github.com/sirupsen/logrus"

	"galleria/config"
	"galleria/detect"
	"galleria/fetcher"
)

// PageFetcher is the fetch dependency of the walkers. *fetcher.Fetcher
// satisfies it.
type PageFetcher interface {
	Fetch(ctx context.Context, targetURL string, strategy fetcher.Strategy) (fetcher.Result, error)
}

// Target accumulates the state of one gallery across pagination. Candidates
// only ever grows; PagesVisited records the walk order for resume/logging.
type Target struct {
	SeedURL      string
	OutputPath   string
	PagesVisited []string
	Candidates   []detect.Candidate

	// FirstPage is the fetch result of the seed page, kept for metadata
	// extraction and seed-status reporting.
	FirstPage fetcher.Result
}

// Walker follows "next page" links from a seed URL, merging each page's
// candidates into a deduplicated set.
type Walker struct {
	fetch    PageFetcher
	detector *detect.Detector
	maxPages int
	limiter  *RateLimiter
	log      *logrus.Entry
}

// NewWalker builds a Walker bounded by the configured page ceiling. When
// cfg.PageDelay is set, consecutive page fetches are paced by it.
func NewWalker(fetch PageFetcher, detector *detect.Detector, cfg *config.Config, log *logrus.Logger) *Walker {
	w := &Walker{
		fetch:    fetch,
		detector: detector,
		maxPages: cfg.MaxPages,
		log:      log.WithField("component", "crawl"),
	}
	if cfg.PageDelay > 0 {
		w.limiter = NewRateLimiter(cfg.PageDelay)
	}
	return w
}

// Stop releases the walker's pacing resources.
func (w *Walker) Stop() {
	if w.limiter != nil {
		w.limiter.Stop()
	}
}

// WalkGallery fetches and detects page by page until there is no next link,
// the next link was already visited (cycle guard), or the page ceiling is
// reached. A failed page stops the walk but keeps everything collected so
// far; the error return is reserved for run-fatal conditions.
func (w *Walker) WalkGallery(ctx context.Context, seedURL string, strategy fetcher.Strategy) (*Target, error) {
	target := &Target{SeedURL: seedURL}
	visited := map[string]struct{}{}
	seen := map[string]struct{}{}
	current := seedURL

	for len(target.PagesVisited) < w.maxPages {
		if err := ctx.Err(); err != nil {
			return target, err
		}
		if _, looped := visited[current]; looped {
			break
		}
		if w.limiter != nil && len(target.PagesVisited) > 0 {
			w.limiter.Wait()
		}

		visited[current] = struct{}{}
		target.PagesVisited = append(target.PagesVisited, current)

		res, err := w.fetch.Fetch(ctx, current, strategy)
		if err != nil {
			return target, err
		}
		if len(target.PagesVisited) == 1 {
			target.FirstPage = res
		}
		if !res.OK() {
			w.log.WithFields(logrus.Fields{"url": current, "status": res.Status}).Warn("Page fetch failed, stopping pagination")
			break
		}

		candidates, next := w.detector.Detect(res)
		added := 0
		for _, c := range candidates {
			if _, dup := seen[c.SourceURL]; dup {
				continue
			}
			seen[c.SourceURL] = struct{}{}
			target.Candidates = append(target.Candidates, c)
			added++
		}
		w.log.WithFields(logrus.Fields{
			"url": current, "page": len(target.PagesVisited), "new_candidates": added,
		}).Info("Page processed")

		if next == "" {
			break
		}
		if _, looped := visited[next]; looped {
			w.log.WithField("url", next).Debug("Pagination cycle detected, stopping")
			break
		}
		current = next
	}

	return target, nil
}
