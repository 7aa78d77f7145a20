// Package detect turns an arbitrary page DOM into a ranked, deduplicated set
// of full-resolution image candidates, plus an optional next-page link. It
// has no notion of individual sites: behavior is driven entirely by the
// configured selector lists and heuristics, layered cheapest-first.
package detect

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"galleria/config"
	"galleria/fetcher"
)

// Candidate is a discovered, not-yet-downloaded image reference. Candidates
// are ephemeral: they live only between detection and download.
type Candidate struct {
	SourceURL string // normalized absolute URL, the uniqueness key
	Referrer  string // page the candidate was found on
	Width     int    // declared width from markup, 0 when absent
	Height    int    // declared height from markup, 0 when absent
	Score     int
}

// Source attribute quality, highest first. Anchor-wrapped full-size links and
// srcset entries out-rank lazy-load attributes, which out-rank a plain src.
const (
	qualityAnchor   = 3
	qualitySrcset   = 3
	qualityDataAttr = 2
	qualitySrc      = 1
)

// lazyAttrs are checked in order; the first usable value wins.
var lazyAttrs = []string{"data-original", "data-full", "data-src", "data-large", "data-lazy"}

// containerTags are the elements considered by the structural fallback scan.
const containerTags = "div, article, section, main"

// minContainerImages is the smallest descendant image count that makes a
// container a gallery candidate in the structural scan.
const minContainerImages = 3

// Detector runs the heuristic pipeline over fetched pages.
type Detector struct {
	gallerySelectors    []string
	excludeSelectors    []string
	paginationSelectors []string
	nextPhrases         []string
	minWidth            int
	minHeight           int
	links               *LinkHeuristics
	log                 *logrus.Entry
}

// New builds a Detector from the run configuration.
func New(cfg *config.Config, log *logrus.Logger) (*Detector, error) {
	links, err := NewLinkHeuristics(cfg.Links)
	if err != nil {
		return nil, err
	}
	return &Detector{
		gallerySelectors:    cfg.GallerySelectors,
		excludeSelectors:    cfg.ExcludeSelectors,
		paginationSelectors: cfg.PaginationSelectors,
		nextPhrases:         cfg.NextPhrases,
		minWidth:            cfg.MinWidth,
		minHeight:           cfg.MinHeight,
		links:               links,
		log:                 log.WithField("component", "detect"),
	}, nil
}

// Detect extracts image candidates and the next-page URL from a fetched
// page. The returned order is stable for identical input: container document
// order, anchors before the thumbnails they wrap.
func (d *Detector) Detect(res fetcher.Result) ([]Candidate, string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.HTML))
	if err != nil {
		d.log.WithField("url", res.URL).Warnf("Unparseable HTML: %v", err)
		return nil, ""
	}

	base, err := url.Parse(res.FinalURL)
	if err != nil {
		return nil, ""
	}

	scope := d.findContainer(doc)
	if scope == nil {
		d.log.WithField("url", res.URL).Debug("No gallery container, scanning whole document")
		scope = doc.Selection
	}

	candidates := d.extractCandidates(scope, base, res.FinalURL)
	next := d.NextPage(doc, base, res.FinalURL)
	return candidates, next
}

// findContainer evaluates the configured gallery selectors first; of the
// matches, the one with the most descendant images wins. When none match, a
// structural scan scores every container element by descendant image count
// and picks the highest-scoring one outside excluded regions, earliest in
// document order on ties.
func (d *Detector) findContainer(doc *goquery.Document) *goquery.Selection {
	for _, selector := range d.gallerySelectors {
		best, count := d.densestMatch(doc, selector, 1)
		if best != nil {
			d.log.WithFields(logrus.Fields{"selector": selector, "images": count}).Debug("Gallery container matched")
			return best
		}
	}

	best, count := d.densestMatch(doc, containerTags, minContainerImages)
	if best != nil {
		d.log.WithField("images", count).Debug("Gallery container found by structural scan")
	}
	return best
}

func (d *Detector) densestMatch(doc *goquery.Document, selector string, minImages int) (*goquery.Selection, int) {
	var best *goquery.Selection
	bestCount := 0
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if d.excluded(s) {
			return
		}
		// Strictly greater keeps the earliest container on ties.
		if count := s.Find("img").Length(); count >= minImages && count > bestCount {
			best, bestCount = s, count
		}
	})
	return best, bestCount
}

// excluded reports whether the selection sits inside (or is) an excluded
// region such as a sidebar, nav block or ad slot.
func (d *Detector) excluded(s *goquery.Selection) bool {
	for _, selector := range d.excludeSelectors {
		if s.Closest(selector).Length() > 0 {
			return true
		}
	}
	return false
}

// extractCandidates runs two passes over the scope. Anchors that link
// directly to image files carry the full-resolution URL, so they are
// collected first and any thumbnail <img> they wrap is suppressed; remaining
// <img> elements are resolved by attribute preference.
func (d *Detector) extractCandidates(scope *goquery.Selection, base *url.URL, referrer string) []Candidate {
	density := scope.Find("img").Length()

	var candidates []Candidate
	seen := map[string]struct{}{}
	thumbnails := map[string]struct{}{}

	keep := func(c Candidate) {
		if _, dup := seen[c.SourceURL]; dup {
			return
		}
		seen[c.SourceURL] = struct{}{}
		candidates = append(candidates, c)
	}

	scope.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := a.AttrOr("href", "")
		if !isImageURL(href) || d.excluded(a) {
			return
		}
		resolved, ok := normalizeURL(base, href)
		if !ok {
			return
		}
		keep(Candidate{
			SourceURL: resolved,
			Referrer:  referrer,
			Score:     qualityAnchor*10 + density,
		})
		a.Find("img").Each(func(_ int, img *goquery.Selection) {
			if raw, _ := bestImageURL(img); raw != "" {
				if thumb, ok := normalizeURL(base, raw); ok {
					thumbnails[thumb] = struct{}{}
				}
			}
		})
	})

	scope.Find("img").Each(func(_ int, img *goquery.Selection) {
		if d.excluded(img) {
			return
		}
		raw, quality := bestImageURL(img)
		if raw == "" {
			return
		}
		resolved, ok := normalizeURL(base, raw)
		if !ok {
			return
		}
		if _, isThumb := thumbnails[resolved]; isThumb {
			return
		}

		width := intAttr(img, "width")
		height := intAttr(img, "height")
		if belowMinimum(width, d.minWidth) || belowMinimum(height, d.minHeight) {
			return
		}

		keep(Candidate{
			SourceURL: resolved,
			Referrer:  referrer,
			Width:     width,
			Height:    height,
			Score:     quality*10 + density,
		})
	})

	return candidates
}

// bestImageURL resolves the best available URL for an <img>, preferring the
// highest-resolution srcset entry, then lazy-load attributes, then src.
func bestImageURL(img *goquery.Selection) (string, int) {
	if srcset := img.AttrOr("srcset", ""); srcset != "" {
		if best := largestSrcsetEntry(srcset); best != "" && isImageURL(best) {
			return best, qualitySrcset
		}
	}
	for _, attr := range lazyAttrs {
		if v := img.AttrOr(attr, ""); v != "" && isImageURL(v) {
			return v, qualityDataAttr
		}
	}
	if src := img.AttrOr("src", ""); src != "" && isImageURL(src) {
		return src, qualitySrc
	}
	return "", 0
}

// largestSrcsetEntry parses "url1 300w, url2 600w" and returns the entry
// with the largest width descriptor. Entries without a descriptor rank
// lowest.
func largestSrcsetEntry(srcset string) string {
	best := ""
	bestWidth := -1
	for _, entry := range strings.Split(srcset, ",") {
		fields := strings.Fields(strings.TrimSpace(entry))
		if len(fields) == 0 {
			continue
		}
		width := 0
		if len(fields) > 1 {
			descriptor := fields[1]
			if strings.HasSuffix(descriptor, "w") {
				width, _ = strconv.Atoi(strings.TrimSuffix(descriptor, "w"))
			}
		}
		if width > bestWidth {
			best, bestWidth = fields[0], width
		}
	}
	return best
}

func intAttr(s *goquery.Selection, name string) int {
	v, err := strconv.Atoi(strings.TrimSpace(s.AttrOr(name, "")))
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// belowMinimum applies the declared-dimension filter only when markup
// actually declares a dimension; absent values never reject a candidate.
func belowMinimum(declared, minimum int) bool {
	return declared > 0 && minimum > 0 && declared < minimum
}

// NextPage finds the pagination anchor for the current page. The configured
// selector list is consulted first, then anchors whose rel attribute or text
// signals "next". A link back to the current page is never returned.
func (d *Detector) NextPage(doc *goquery.Document, base *url.URL, currentURL string) string {
	current, _ := normalizeURL(base, currentURL)

	resolve := func(a *goquery.Selection) string {
		href := a.AttrOr("href", "")
		if href == "" {
			return ""
		}
		resolved, ok := normalizeURL(base, href)
		if !ok || resolved == current {
			return ""
		}
		return resolved
	}

	for _, selector := range d.paginationSelectors {
		next := ""
		doc.Find(selector).EachWithBreak(func(_ int, a *goquery.Selection) bool {
			next = resolve(a)
			return next == ""
		})
		if next != "" {
			return next
		}
	}

	next := ""
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		rel := strings.ToLower(a.AttrOr("rel", ""))
		text := strings.ToLower(strings.TrimSpace(a.Text()))
		matched := strings.Contains(rel, "next")
		for _, phrase := range d.nextPhrases {
			if text == strings.ToLower(phrase) {
				matched = true
				break
			}
		}
		if !matched {
			return true
		}
		next = resolve(a)
		return next == ""
	})
	return next
}
