package detect

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"galleria/config"
	"galleria/fetcher"
)

// Default anchor-classification heuristics for category pages. There is no
// single rule that separates gallery links from pagination, filter and
// navigation links across all sites, so every knob here is overridable from
// configuration.
var (
	defaultGalleryPatterns = []string{
		`/(gallery|galleries|comic|comics|album|post|pics|galls)/[^/]{10,}`,
		`/[a-z0-9]+-[a-z0-9-]+-\d{4,}/?$`,
		`/\d{5,}/`,
	}
	defaultExcludePatterns = []string{
		`^/?$`,
		`[?&]page=`,
		`[?&]sort=`,
		`[?&]filter=`,
		`/page/\d+/?$`,
		`/tags?/[^/]+/?$`,
		`/categor(y|ies)/?`,
		`/channels/?$`,
		`/models?/?$`,
		`/search`,
		`/login`,
		`/register`,
		`/dmca`,
		`/privacy`,
		`/terms`,
		`/contact`,
		`/about`,
		`/sitemap`,
	}
	defaultMinSlugLen    = 10
	defaultMinSlugDashes = 2
)

// LinkHeuristics is the compiled anchor classifier used in link-collection
// mode.
type LinkHeuristics struct {
	galleryPatterns []*regexp.Regexp
	excludePatterns []*regexp.Regexp
	minSlugLen      int
	minSlugDashes   int
}

// NewLinkHeuristics compiles the configured patterns, falling back to the
// defaults for any list left empty.
func NewLinkHeuristics(cfg config.LinkHeuristics) (*LinkHeuristics, error) {
	gallery := cfg.GalleryPatterns
	if len(gallery) == 0 {
		gallery = defaultGalleryPatterns
	}
	exclude := cfg.ExcludePatterns
	if len(exclude) == 0 {
		exclude = defaultExcludePatterns
	}

	compile := func(patterns []string) ([]*regexp.Regexp, error) {
		out := make([]*regexp.Regexp, 0, len(patterns))
		for _, p := range patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("%w: link pattern %q: %v", config.ErrInvalid, p, err)
			}
			out = append(out, re)
		}
		return out, nil
	}

	galleryRe, err := compile(gallery)
	if err != nil {
		return nil, err
	}
	excludeRe, err := compile(exclude)
	if err != nil {
		return nil, err
	}

	h := &LinkHeuristics{
		galleryPatterns: galleryRe,
		excludePatterns: excludeRe,
		minSlugLen:      cfg.MinSlugLen,
		minSlugDashes:   cfg.MinSlugDashes,
	}
	if h.minSlugLen <= 0 {
		h.minSlugLen = defaultMinSlugLen
	}
	if h.minSlugDashes <= 0 {
		h.minSlugDashes = defaultMinSlugDashes
	}
	return h, nil
}

func (h *LinkHeuristics) excludedLink(full string, linkPath string) bool {
	for _, re := range h.excludePatterns {
		if re.MatchString(full) || re.MatchString(linkPath) {
			return true
		}
	}
	return false
}

func (h *LinkHeuristics) galleryLike(linkURL *url.URL, basePath string, wrapsThumb bool) bool {
	p := linkURL.Path
	for _, re := range h.galleryPatterns {
		if re.MatchString(p) {
			return true
		}
	}
	if !wrapsThumb {
		return false
	}

	// Thumbnail-wrapping links with descriptive slugs or deeper paths than
	// the listing page are almost always gallery entries.
	slug := p
	if idx := strings.LastIndex(strings.Trim(p, "/"), "/"); idx >= 0 {
		slug = strings.Trim(p, "/")[idx+1:]
	} else {
		slug = strings.Trim(p, "/")
	}
	if len(slug) >= h.minSlugLen && strings.Count(slug, "-") >= h.minSlugDashes {
		return true
	}
	if len(strings.TrimRight(p, "/")) > len(basePath)+5 {
		return true
	}
	return false
}

// DetectLinks runs the Detector in link-collection mode: instead of image
// candidates it returns same-domain gallery URLs found on a listing page,
// deduplicated in first-seen order, plus the listing's next-page URL.
func (d *Detector) DetectLinks(res fetcher.Result) ([]string, string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.HTML))
	if err != nil {
		d.log.WithField("url", res.URL).Warnf("Unparseable HTML: %v", err)
		return nil, ""
	}
	base, err := url.Parse(res.FinalURL)
	if err != nil {
		return nil, ""
	}
	basePath := strings.TrimRight(base.Path, "/")
	current, _ := normalizeURL(base, res.FinalURL)

	var links []string
	seen := map[string]struct{}{}

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := a.AttrOr("href", "")
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}
		resolved, ok := normalizeURL(base, href)
		if !ok || resolved == current {
			return
		}
		if _, dup := seen[resolved]; dup {
			return
		}

		linkURL, err := url.Parse(resolved)
		if err != nil || !sameDomain(base, linkURL) {
			return
		}
		if isImageURL(resolved) {
			return
		}
		if d.links.excludedLink(resolved, strings.ToLower(linkURL.Path)) {
			return
		}
		if d.excluded(a) {
			return
		}

		wrapsThumb := a.Find("img").Length() > 0
		if !d.links.galleryLike(linkURL, basePath, wrapsThumb) {
			return
		}

		seen[resolved] = struct{}{}
		links = append(links, resolved)
	})

	next := d.NextPage(doc, base, res.FinalURL)
	return links, next
}

// IsListingPage reports whether a page looks like a category/listing grid
// (many thumbnails linking to deeper same-domain pages) rather than a
// gallery of full-size images.
func (d *Detector) IsListingPage(res fetcher.Result) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.HTML))
	if err != nil {
		return false
	}
	base, err := url.Parse(res.FinalURL)
	if err != nil {
		return false
	}
	basePath := strings.TrimRight(base.Path, "/")

	thumbLinks := 0
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := a.AttrOr("href", "")
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}
		if a.Find("img").Length() == 0 {
			return
		}
		resolved, ok := normalizeURL(base, href)
		if !ok || isImageURL(resolved) {
			return
		}
		linkURL, err := url.Parse(resolved)
		if err != nil || !sameDomain(base, linkURL) {
			return
		}
		linkPath := strings.TrimRight(linkURL.Path, "/")
		if linkPath == basePath {
			return
		}
		if len(linkPath) > len(basePath)+5 {
			thumbLinks++
		}
	})

	return thumbLinks >= 5
}
