// Package downloader turns a gallery's candidate list into files on disk:
// bounded-concurrency downloads with retries, pre-download validation and
// atomic writes, reporting one Outcome per candidate.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"galleria/config"
	"galleria/detect"
)

// Outcome kinds. Every candidate handed to DownloadAll resolves to exactly
// one of these.
const (
	KindDownloaded      = "downloaded"
	KindSkippedExisting = "skipped_existing"
	KindSkippedInvalid  = "skipped_invalid"
	KindFailed          = "failed"
)

// Outcome records how one candidate was resolved.
type Outcome struct {
	Candidate    detect.Candidate
	Filename     string
	Kind         string
	Reason       string
	BytesWritten int64
	Attempts     int
}

// Summary aggregates the outcomes of one gallery.
type Summary struct {
	Downloaded      int
	SkippedExisting int
	SkippedInvalid  int
	Failed          int
	TotalBytes      int64
	Elapsed         time.Duration
}

// Summarize folds outcomes into counts.
func Summarize(outcomes []Outcome, elapsed time.Duration) Summary {
	s := Summary{Elapsed: elapsed}
	for _, o := range outcomes {
		switch o.Kind {
		case KindDownloaded:
			s.Downloaded++
			s.TotalBytes += o.BytesWritten
		case KindSkippedExisting:
			s.SkippedExisting++
		case KindSkippedInvalid:
			s.SkippedInvalid++
		case KindFailed:
			s.Failed++
		}
	}
	return s
}

// Manager downloads image candidates with bounded concurrency.
type Manager struct {
	client      *http.Client
	headers     *config.HeaderSet
	userAgent   string
	concurrency int64
	maxRetries  int
	retryDelay  time.Duration
	validator   *Validator
	log         *logrus.Entry
}

// NewManager builds a download manager from the run configuration.
func NewManager(cfg *config.Config, headers *config.HeaderSet, log *logrus.Logger) *Manager {
	if headers == nil {
		headers = &config.HeaderSet{}
	}
	return &Manager{
		client:      &http.Client{Timeout: cfg.PageTimeout},
		headers:     headers,
		userAgent:   cfg.UserAgent,
		concurrency: int64(cfg.Concurrency),
		maxRetries:  cfg.MaxRetries,
		retryDelay:  cfg.RetryDelay,
		validator: &Validator{
			MinBytes:  cfg.MinImageBytes,
			MinWidth:  cfg.MinWidth,
			MinHeight: cfg.MinHeight,
		},
		log: log.WithField("component", "downloader"),
	}
}

// extensionFor derives the output extension from the candidate URL's path,
// defaulting to .jpg when the path carries no recognizable image extension.
func extensionFor(sourceURL string) string {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return ".jpg"
	}
	ext := strings.ToLower(path.Ext(u.Path))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp":
		return ext
	}
	return ".jpg"
}

// DownloadAll resolves every candidate to an Outcome. Filenames are assigned
// up front from the candidate order (001.jpg, 002.png, ...) so results are
// reproducible regardless of which worker finishes first. A context cancel
// marks the remaining candidates failed rather than dropping them.
func (m *Manager) DownloadAll(ctx context.Context, candidates []detect.Candidate, destDir string) ([]Outcome, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, fmt.Errorf("creating gallery directory %s: %w", destDir, err)
	}

	outcomes := make([]Outcome, len(candidates))
	for i, c := range candidates {
		outcomes[i] = Outcome{
			Candidate: c,
			Filename:  fmt.Sprintf("%03d%s", i+1, extensionFor(c.SourceURL)),
		}
	}

	sem := semaphore.NewWeighted(m.concurrency)
	var wg sync.WaitGroup

	for i := range outcomes {
		if err := sem.Acquire(ctx, 1); err != nil {
			outcomes[i].Kind = KindFailed
			outcomes[i].Reason = "canceled"
			continue
		}
		wg.Add(1)
		go func(o *Outcome) {
			defer wg.Done()
			defer sem.Release(1)
			m.downloadOne(ctx, o, destDir)
		}(&outcomes[i])
	}
	wg.Wait()

	return outcomes, nil
}

// downloadOne resolves a single candidate. Skip-existing is checked before
// any network traffic so re-runs over a completed gallery are free.
func (m *Manager) downloadOne(ctx context.Context, o *Outcome, destDir string) {
	target := filepath.Join(destDir, o.Filename)

	if info, err := os.Stat(target); err == nil && info.Size() > 0 {
		o.Kind = KindSkippedExisting
		m.log.Debugf("Exists, skipping: %s", o.Filename)
		return
	}

	var lastErr error
	for attempt := 1; attempt <= m.maxRetries+1; attempt++ {
		o.Attempts = attempt
		if attempt > 1 {
			select {
			case <-ctx.Done():
				o.Kind = KindFailed
				o.Reason = "canceled"
				return
			case <-time.After(m.retryDelay):
			}
		}

		data, err := m.fetchImage(ctx, o.Candidate)
		if err != nil {
			lastErr = err
			m.log.WithField("url", o.Candidate.SourceURL).Warnf("Attempt %d/%d failed: %v", attempt, m.maxRetries+1, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		if err := m.validator.Validate(data); err != nil {
			if errors.Is(err, ErrRejected) {
				o.Kind = KindSkippedInvalid
				o.Reason = err.Error()
				m.log.WithField("url", o.Candidate.SourceURL).Infof("Rejected: %v", err)
				return
			}
			lastErr = err
			m.log.WithField("url", o.Candidate.SourceURL).Warnf("Attempt %d/%d: unusable payload: %v", attempt, m.maxRetries+1, err)
			continue
		}

		if err := writeAtomic(target, data); err != nil {
			o.Kind = KindFailed
			o.Reason = err.Error()
			return
		}
		o.Kind = KindDownloaded
		o.BytesWritten = int64(len(data))
		return
	}

	o.Kind = KindFailed
	if lastErr != nil {
		o.Reason = lastErr.Error()
	} else {
		o.Reason = "canceled"
	}
}

var errNotFound = errors.New("not_found")

func (m *Manager) fetchImage(ctx context.Context, c detect.Candidate) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.SourceURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", m.userAgent)
	req.Header.Set("Accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")
	if c.Referrer != "" {
		req.Header.Set("Referer", c.Referrer)
	}
	for name, value := range m.headers.Headers {
		req.Header.Set(name, value)
	}
	for name, value := range m.headers.Cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return nil, errNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// writeAtomic stages the bytes in a temp file beside the target and renames
// into place, so an interrupted run never leaves a partial image.
func writeAtomic(target string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(target), filepath.Base(target)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
