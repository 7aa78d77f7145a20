package metadata

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const maxTags = 50

// Navigation and UI strings that show up inside tag-looking containers but
// are never gallery tags.
var tagSkipWords = map[string]struct{}{
	"tags": {}, "tag": {}, "tags:": {}, "categories:": {}, "keywords:": {},
	"characters:": {}, "more": {}, "all": {}, "category": {}, "categories": {},
	"home": {}, "next": {}, "prev": {}, "previous": {}, "»": {}, "«": {},
	">": {}, "<": {}, "search": {}, "login": {}, "register": {}, "menu": {},
	"welcome": {}, "dmca": {}, "privacy": {}, "terms": {}, "2257": {},
	"sitemap": {}, "contact": {}, "about": {}, "help": {}, "faq": {},
	"+ suggest": {},
}

// URL path markers that identify tag/category links with high confidence.
var tagURLPatterns = []string{
	"/category/", "/tag/", "/user_tags/", "/tags/", "/labels/", "/niches/",
}

// URL path markers for person/performer pages. Their anchor text is a name,
// not a tag.
var personURLPatterns = []string{
	"/models/", "/model/", "/performers/", "/performer/", "/actress/",
}

// Tag bars are often introduced by a short label element or bare text node.
var tagLabelWords = map[string]struct{}{
	"tags:": {}, "tags": {}, "categories:": {}, "categories": {},
	"keywords:": {}, "keywords": {}, "characters:": {},
}

var tagSelectors = []string{
	".tags a", ".tag", ".post-tag", "a[rel=\"tag\"]", ".label", ".badge",
	".wp-tag-cloud a", ".tagcloud a", ".entry-tags a", ".post-tags a",
	"a.tag-link", "a.tag_item", ".tag-list a", ".tags-list a",
	".tag-container a", ".info-tags a", ".meta-tags a",
	".categories-list a", ".cats a", ".cat-list a",
	"a[href*=\"/tag/\"]", "a[href*=\"/tags/\"]",
}

// extractTags collects tags with three strategies in priority order: links
// whose URL marks them as tag pages, common tag CSS selectors, and a
// structural scan for containers introduced by a "Tags:" label. All results
// pass through the same cleaning filter and dedup in first-seen order.
func extractTags(doc *goquery.Document) []string {
	var raw []string

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := strings.ToLower(a.AttrOr("href", ""))
		if a.HasClass("person") || a.AttrOr("data-models", "") != "" {
			return
		}
		for _, p := range personURLPatterns {
			if strings.Contains(href, p) {
				return
			}
		}
		for _, p := range tagURLPatterns {
			if strings.Contains(href, p) {
				raw = append(raw, a.Text())
				return
			}
		}
		// Listing prefixes double as tag indexes on some sites, but only
		// with short slugs; long dashed slugs are gallery links.
		for _, prefix := range []string{"/pics/", "/galleries/", "/channels/"} {
			if idx := strings.Index(href, prefix); idx >= 0 {
				slug := strings.Trim(href[idx+len(prefix):], "/")
				if slug != "" && len(slug) < 25 && strings.Count(slug, "-") < 3 {
					raw = append(raw, a.Text())
				}
				return
			}
		}
	})

	for _, sel := range tagSelectors {
		doc.Find(sel).Each(func(_ int, el *goquery.Selection) {
			if el.HasClass("person") || el.AttrOr("data-models", "") != "" {
				return
			}
			href := strings.ToLower(el.AttrOr("href", ""))
			for _, p := range personURLPatterns {
				if strings.Contains(href, p) {
					return
				}
			}
			raw = append(raw, el.Text())
		})
	}

	raw = append(raw, labeledTagGroups(doc)...)

	tags := CleanTags(raw)
	if len(tags) > maxTags {
		tags = tags[:maxTags]
	}
	return tags
}

// labeledTagGroups finds containers whose first child is a "Tags:" label
// (either a bare text node or a short inline element) and returns the link
// texts that follow it. This catches sites that expose tags visually without
// any recognizable class or URL pattern.
func labeledTagGroups(doc *goquery.Document) []string {
	var out []string

	doc.Find("div, p, ul, span, section").Each(func(_ int, container *goquery.Selection) {
		if len(container.Nodes) == 0 || !hasTagLabel(container.Nodes[0]) {
			return
		}
		links := container.Find("a")
		if links.Length() < 2 {
			return
		}
		links.Each(func(_ int, a *goquery.Selection) {
			text := strings.TrimSpace(a.Text())
			if len(text) > 0 && len(text) <= 40 {
				out = append(out, text)
			}
		})
	})

	return out
}

// hasTagLabel reports whether the container opens with a tag label: a leading
// text node saying "Tags:", or a leading inline element whose text does.
func hasTagLabel(n *html.Node) bool {
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		switch child.Type {
		case html.TextNode:
			text := strings.ToLower(strings.TrimSpace(child.Data))
			if text == "" {
				continue
			}
			_, ok := tagLabelWords[text]
			return ok
		case html.ElementNode:
			switch child.Data {
			case "strong", "b", "span", "label", "em":
				text := strings.ToLower(strings.TrimSpace(nodeText(child)))
				_, ok := tagLabelWords[text]
				return ok
			}
			return false
		}
	}
	return false
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.TextNode {
			b.WriteString(child.Data)
		} else {
			b.WriteString(nodeText(child))
		}
	}
	return b.String()
}

// CleanTags normalizes a tag list: trims whitespace and surrounding quotes,
// strips separator punctuation, drops empties, digits-only entries, UI
// placeholders and navigation words, and dedups in first-seen order. The
// filter is idempotent: cleaning an already-clean list is a no-op.
func CleanTags(raw []string) []string {
	var tags []string
	seen := map[string]struct{}{}

	for _, t := range raw {
		t = strings.TrimSpace(t)
		t = strings.Trim(t, `"'`)
		t = strings.NewReplacer(",", "", ";", "", "#", "").Replace(t)
		t = whitespaceRe.ReplaceAllString(t, " ")
		t = strings.TrimSpace(t)

		if len(t) < 2 || len(t) > 40 {
			continue
		}
		if isAllDigits(t) {
			continue
		}
		if _, skip := tagSkipWords[strings.ToLower(t)]; skip {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		tags = append(tags, t)
	}
	return tags
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
