// Package scraper is the orchestrator: it wires fetcher, detector, crawler,
// downloader and metadata extractor into the gallery pipeline and runs
// single, batch and category jobs.
package scraper

import (
	"context"
	"crypto/md5"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"galleria/config"
	"galleria/crawl"
	"galleria/detect"
	"galleria/downloader"
	"galleria/fetcher"
	"galleria/metadata"
)

// GalleryReport is the result of one gallery job.
type GalleryReport struct {
	URL          string
	Title        string
	OutputDir    string
	StrategyUsed fetcher.Strategy
	SeedStatus   fetcher.Status
	PagesVisited int
	Candidates   int
	Outcomes     []downloader.Outcome
	Summary      downloader.Summary
}

// galleryWalker is the pagination dependency, split out so job-level logic
// can be tested without a network.
type galleryWalker interface {
	WalkGallery(ctx context.Context, seedURL string, strategy fetcher.Strategy) (*crawl.Target, error)
	Stop()
}

// Scraper owns the run-wide components. One Scraper serves the whole run;
// Close tears down the shared browser.
type Scraper struct {
	cfg      *config.Config
	fetch    *fetcher.Fetcher
	detector *detect.Detector
	walker   galleryWalker
	manager  *downloader.Manager
	meta     *metadata.Extractor
	category *crawl.Category
	log      *logrus.Entry
}

// New wires a Scraper from validated configuration.
func New(cfg *config.Config, log *logrus.Logger) (*Scraper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	headers, err := config.LoadHeaders(cfg.HeaderFile)
	if err != nil {
		return nil, err
	}
	detector, err := detect.New(cfg, log)
	if err != nil {
		return nil, err
	}

	fetch := fetcher.New(cfg, headers, log)
	return &Scraper{
		cfg:      cfg,
		fetch:    fetch,
		detector: detector,
		walker:   crawl.NewWalker(fetch, detector, cfg, log),
		manager:  downloader.NewManager(cfg, headers, log),
		meta:     metadata.NewExtractor(log),
		category: crawl.NewCategory(cfg, headers, fetch, detector, log),
		log:      log.WithField("component", "scraper"),
	}, nil
}

// Close releases run-wide resources: the shared browser and the pagination
// rate limiter.
func (s *Scraper) Close() {
	s.walker.Stop()
	s.fetch.Close()
}

// folderName derives a stable per-gallery directory name from the URL:
// domain, flattened path, and a short URL hash for uniqueness.
func folderName(galleryURL string) string {
	sum := md5.Sum([]byte(galleryURL))
	hash := fmt.Sprintf("%x", sum)[:8]

	u, err := url.Parse(galleryURL)
	if err != nil {
		return hash
	}
	domain := strings.TrimPrefix(u.Hostname(), "www.")
	path := strings.ReplaceAll(strings.Trim(u.Path, "/"), "/", "_")
	if len(path) > 50 {
		path = path[:50]
	}
	if path == "" {
		return fmt.Sprintf("%s_%s", domain, hash)
	}
	return fmt.Sprintf("%s_%s_%s", domain, path, hash)
}

// collect walks the gallery with auto-escalation: in auto mode the static
// walk runs first, and if it yields fewer candidates than the configured
// threshold the whole walk is redone with the browser, keeping whichever
// result found more.
func (s *Scraper) collect(ctx context.Context, galleryURL string, strategy fetcher.Strategy) (*crawl.Target, fetcher.Strategy, error) {
	switch strategy {
	case fetcher.StrategyStatic, fetcher.StrategyBrowser:
		target, err := s.walker.WalkGallery(ctx, galleryURL, strategy)
		return target, strategy, err
	}

	target, err := s.walker.WalkGallery(ctx, galleryURL, fetcher.StrategyStatic)
	if err != nil {
		return target, fetcher.StrategyStatic, err
	}
	if len(target.Candidates) >= s.cfg.MinImagesThreshold {
		return target, fetcher.StrategyStatic, nil
	}

	s.log.WithFields(logrus.Fields{
		"url": galleryURL, "candidates": len(target.Candidates),
	}).Info("Static yield below threshold, escalating to browser")

	browserTarget, err := s.walker.WalkGallery(ctx, galleryURL, fetcher.StrategyBrowser)
	if err != nil {
		return target, fetcher.StrategyStatic, err
	}
	if len(browserTarget.Candidates) > len(target.Candidates) {
		return browserTarget, fetcher.StrategyBrowser, nil
	}
	return target, fetcher.StrategyStatic, nil
}

// ScrapeGallery runs the full pipeline for one gallery URL: paginate and
// detect, download all candidates, then write metadata. Per-gallery failures
// are encoded in the report; the error return is reserved for run-fatal
// conditions and cancellation.
func (s *Scraper) ScrapeGallery(ctx context.Context, galleryURL string, strategy fetcher.Strategy) (*GalleryReport, error) {
	start := time.Now()

	target, used, err := s.collect(ctx, galleryURL, strategy)
	if err != nil {
		return nil, err
	}

	report := &GalleryReport{
		URL:          galleryURL,
		StrategyUsed: used,
		SeedStatus:   target.FirstPage.Status,
		PagesVisited: len(target.PagesVisited),
		Candidates:   len(target.Candidates),
	}

	if len(target.Candidates) == 0 {
		s.log.WithFields(logrus.Fields{"url": galleryURL, "seed_status": report.SeedStatus}).Warn("No images found")
		report.Summary = downloader.Summarize(nil, time.Since(start))
		return report, nil
	}

	destDir := s.cfg.OutputDir
	if s.cfg.GallerySubdirs {
		destDir = filepath.Join(destDir, folderName(galleryURL))
	}
	report.OutputDir = destDir

	outcomes, err := s.manager.DownloadAll(ctx, target.Candidates, destDir)
	if err != nil {
		return report, err
	}
	report.Outcomes = outcomes
	report.Summary = downloader.Summarize(outcomes, time.Since(start))

	if target.FirstPage.OK() {
		meta := s.meta.Extract(target.FirstPage, len(target.Candidates))
		report.Title = meta.Title
		if s.cfg.SaveMetadata {
			if err := s.meta.Save(meta, destDir); err != nil {
				s.log.WithField("url", galleryURL).Warnf("Metadata not saved: %v", err)
			}
		}
	}

	s.log.WithFields(logrus.Fields{
		"url":        galleryURL,
		"downloaded": report.Summary.Downloaded,
		"skipped":    report.Summary.SkippedExisting + report.Summary.SkippedInvalid,
		"failed":     report.Summary.Failed,
		"elapsed":    report.Summary.Elapsed.Round(time.Millisecond),
	}).Info("Gallery finished")
	return report, nil
}

// RunBatch processes multiple gallery URLs with job-level concurrency. The
// reports slice is index-aligned with the input; a run-fatal error cancels
// the remaining jobs.
func (s *Scraper) RunBatch(ctx context.Context, urls []string, strategy fetcher.Strategy) ([]*GalleryReport, error) {
	reports := make([]*GalleryReport, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.JobConcurrency)

	for i, galleryURL := range urls {
		i, galleryURL := i, galleryURL
		g.Go(func() error {
			report, err := s.ScrapeGallery(gctx, galleryURL, strategy)
			if err != nil {
				return fmt.Errorf("gallery %s: %w", galleryURL, err)
			}
			reports[i] = report
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return reports, err
	}
	return reports, nil
}

// RunCategory discovers gallery links on a category/listing page chain and
// scrapes each discovered gallery as a batch job.
func (s *Scraper) RunCategory(ctx context.Context, categoryURL string, strategy fetcher.Strategy) ([]*GalleryReport, error) {
	galleries, err := s.category.Discover(ctx, categoryURL, strategy)
	if err != nil {
		return nil, err
	}
	if len(galleries) == 0 {
		s.log.WithField("url", categoryURL).Warn("No galleries discovered")
		return nil, nil
	}
	s.log.WithFields(logrus.Fields{"url": categoryURL, "galleries": len(galleries)}).Info("Category discovered")
	return s.RunBatch(ctx, galleries, strategy)
}

// IsListingPage checks whether a URL serves a category/listing grid rather
// than a gallery. Used by the CLI to redirect misfiled single-gallery jobs.
func (s *Scraper) IsListingPage(ctx context.Context, pageURL string) bool {
	res, err := s.fetch.Fetch(ctx, pageURL, fetcher.StrategyStatic)
	if err != nil || !res.OK() {
		return false
	}
	return s.detector.IsListingPage(res)
}
