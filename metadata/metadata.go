// Package metadata extracts best-effort descriptive fields from a gallery
// page. Every field beyond url/scraped_at/image_count is optional: each field
// has a prioritized strategy list and the first non-empty result wins.
// Extraction never fabricates values and never fails a run.
package metadata

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"galleria/fetcher"
)

var titleCaser = cases.Title(language.English)

// Metadata is serialized to metadata.json next to the gallery's images.
type Metadata struct {
	URL         string   `json:"url"`
	ScrapedAt   string   `json:"scraped_at"`
	ImageCount  int      `json:"image_count"`
	Title       string   `json:"title,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Artist      string   `json:"artist,omitempty"`
	Date        string   `json:"date,omitempty"`
	Category    string   `json:"category,omitempty"`
	Description string   `json:"description,omitempty"`
}

var (
	titleSelectors = []string{
		"h1", ".title", ".post-title", "#title", "title",
		".entry-title", ".comic-title", ".gallery-title",
	}
	artistSelectors = []string{
		".artist", ".author", ".by-author a", "a[rel=\"author\"]",
		".creator", ".artist-name",
	}
	dateSelectors = []string{
		"time", ".date", ".published", ".post-date", ".upload-date",
	}
	categorySelectors = []string{
		".category", ".series", ".breadcrumb a", ".cat-links a",
	}
	descriptionSelectors = []string{
		".description", ".content", ".post-content", ".entry-content",
	}

	whitespaceRe = regexp.MustCompile(`\s+`)
	pageExtRe    = regexp.MustCompile(`\.(html|php|aspx?)$`)
)

// Extractor pulls Metadata out of gallery HTML.
type Extractor struct {
	log *logrus.Entry
}

// NewExtractor creates an Extractor.
func NewExtractor(log *logrus.Logger) *Extractor {
	return &Extractor{log: log.WithField("component", "metadata")}
}

// Extract builds the metadata record for one gallery. imageCount is the
// number of candidates the detector produced, recorded as-is.
func (e *Extractor) Extract(res fetcher.Result, imageCount int) Metadata {
	meta := Metadata{
		URL:        res.URL,
		ScrapedAt:  time.Now().Format(time.RFC3339),
		ImageCount: imageCount,
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.HTML))
	if err != nil {
		e.log.WithField("url", res.URL).Warnf("Unparseable HTML, metadata limited to URL: %v", err)
		meta.Title = titleFromURL(res.URL)
		return meta
	}

	meta.Title = extractTitle(doc, res.URL)
	meta.Tags = extractTags(doc)
	meta.Artist = extractArtist(doc)
	meta.Date = extractDate(doc)
	meta.Category = extractCategory(doc, res.URL)
	meta.Description = extractDescription(doc)
	return meta
}

// Save writes metadata.json into the gallery directory.
func (e *Extractor) Save(meta Metadata, dir string) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	path := filepath.Join(dir, "metadata.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	e.log.Debugf("Saved metadata to %s", path)
	return nil
}

func extractTitle(doc *goquery.Document, pageURL string) string {
	for _, sel := range titleSelectors {
		text := strings.TrimSpace(doc.Find(sel).First().Text())
		if len(text) > 3 {
			return whitespaceRe.ReplaceAllString(text, " ")
		}
	}
	return titleFromURL(pageURL)
}

// titleFromURL derives a readable title from the last URL path segment.
func titleFromURL(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "Unknown Gallery"
	}
	segments := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	if len(segments) == 0 {
		return "Unknown Gallery"
	}
	title := segments[len(segments)-1]
	title = pageExtRe.ReplaceAllString(title, "")
	title = strings.NewReplacer("-", " ", "_", " ").Replace(title)
	return titleCaser.String(title)
}

func extractArtist(doc *goquery.Document) string {
	for _, sel := range artistSelectors {
		text := strings.TrimSpace(doc.Find(sel).First().Text())
		if len(text) > 2 {
			return text
		}
	}
	return ""
}

// extractDate returns the raw date string as published: a datetime attribute
// when present, otherwise the element text. No parsing or normalization.
func extractDate(doc *goquery.Document) string {
	for _, sel := range dateSelectors {
		el := doc.Find(sel).First()
		if el.Length() == 0 {
			continue
		}
		if dt, ok := el.Attr("datetime"); ok && strings.TrimSpace(dt) != "" {
			return strings.TrimSpace(dt)
		}
		if text := strings.TrimSpace(el.Text()); text != "" {
			return text
		}
	}
	return ""
}

func extractCategory(doc *goquery.Document, pageURL string) string {
	for _, sel := range categorySelectors {
		matches := doc.Find(sel)
		if matches.Length() == 0 {
			continue
		}
		// Last match is the most specific breadcrumb level.
		text := strings.TrimSpace(matches.Last().Text())
		if len(text) > 2 {
			return text
		}
	}

	if u, err := url.Parse(pageURL); err == nil {
		if _, after, found := strings.Cut(u.Path, "/category/"); found {
			segment := strings.SplitN(after, "/", 2)[0]
			if segment != "" {
				return titleCaser.String(strings.ReplaceAll(segment, "-", " "))
			}
		}
	}
	return ""
}

func extractDescription(doc *goquery.Document) string {
	for _, sel := range descriptionSelectors {
		text := strings.TrimSpace(doc.Find(sel).First().Text())
		if len(text) > 10 {
			text = whitespaceRe.ReplaceAllString(text, " ")
			return truncate(text, 500)
		}
	}
	if desc, ok := doc.Find("meta[name=\"description\"]").Attr("content"); ok {
		desc = strings.TrimSpace(desc)
		if len(desc) > 10 {
			return truncate(desc, 500)
		}
	}
	return ""
}

// truncate cuts s to at most max bytes, backing up to a rune boundary so the
// result stays valid UTF-8.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
