package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"galleria/config"
	"galleria/fetcher"
	"galleria/scraper"
)

func main() {
	var (
		urlFlag      = flag.String("url", "", "gallery URL to scrape")
		batchFlag    = flag.String("batch", "", "file with gallery URLs, one per line")
		categoryFlag = flag.String("category", "", "category/listing URL to discover galleries from")
		configFlag   = flag.String("config", "config.yaml", "path to config file")
		modeFlag     = flag.String("mode", "auto", "fetch mode: auto, static or browser")
		outputFlag   = flag.String("output", "", "override output directory")
		verboseFlag  = flag.Bool("verbose", false, "debug logging")
	)
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *verboseFlag {
		log.SetLevel(logrus.DebugLevel)
	}

	if err := run(*urlFlag, *batchFlag, *categoryFlag, *configFlag, *modeFlag, *outputFlag, log); err != nil {
		log.Errorf("Run failed: %v", err)
		os.Exit(1)
	}
}

func run(urlFlag, batchFlag, categoryFlag, configPath, mode, output string, log *logrus.Logger) error {
	jobs := 0
	for _, f := range []string{urlFlag, batchFlag, categoryFlag} {
		if f != "" {
			jobs++
		}
	}
	if jobs != 1 {
		return errors.New("exactly one of -url, -batch or -category is required")
	}

	strategy, err := parseMode(mode)
	if err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if output != "" {
		cfg.OutputDir = output
	}

	s, err := scraper.New(cfg, log)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var reports []*scraper.GalleryReport
	switch {
	case urlFlag != "":
		// A single URL that turns out to be a listing grid is treated as a
		// category job instead of reporting zero images.
		if strategy != fetcher.StrategyBrowser && s.IsListingPage(ctx, urlFlag) {
			log.WithField("url", urlFlag).Info("URL looks like a listing page, discovering galleries")
			reports, err = s.RunCategory(ctx, urlFlag, strategy)
		} else {
			var report *scraper.GalleryReport
			report, err = s.ScrapeGallery(ctx, urlFlag, strategy)
			if report != nil {
				reports = append(reports, report)
			}
		}
	case batchFlag != "":
		var urls []string
		urls, err = config.LoadURLFile(batchFlag)
		if err == nil {
			reports, err = s.RunBatch(ctx, urls, strategy)
		}
	case categoryFlag != "":
		reports, err = s.RunCategory(ctx, categoryFlag, strategy)
	}
	if err != nil {
		return err
	}

	printSummary(reports, log)
	return nil
}

func parseMode(mode string) (fetcher.Strategy, error) {
	switch fetcher.Strategy(mode) {
	case fetcher.StrategyAuto, fetcher.StrategyStatic, fetcher.StrategyBrowser:
		return fetcher.Strategy(mode), nil
	}
	return "", fmt.Errorf("unknown mode %q: want auto, static or browser", mode)
}

func printSummary(reports []*scraper.GalleryReport, log *logrus.Logger) {
	var downloaded, skipped, failed int
	var bytes int64
	for _, r := range reports {
		if r == nil {
			continue
		}
		downloaded += r.Summary.Downloaded
		skipped += r.Summary.SkippedExisting + r.Summary.SkippedInvalid
		failed += r.Summary.Failed
		bytes += r.Summary.TotalBytes
	}
	log.Infof("Done: %d galleries, %d downloaded, %d skipped, %d failed, %.1f MB",
		len(reports), downloaded, skipped, failed, float64(bytes)/(1024*1024))
}
