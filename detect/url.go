package detect

import (
	"net/url"
	"path"
	"strings"
)

var imageExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {}, ".bmp": {},
}

// isImageURL reports whether a raw href/src plausibly points at an image
// file. Query strings are ignored for the extension check; data URIs never
// qualify.
func isImageURL(raw string) bool {
	if raw == "" || strings.HasPrefix(raw, "data:") {
		return false
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	ext := strings.ToLower(path.Ext(parsed.Path))
	_, ok := imageExtensions[ext]
	return ok
}

// normalizeURL resolves a possibly-relative reference against the page URL
// and produces the candidate uniqueness key: absolute scheme+host+path+query
// with the fragment stripped. Non-HTTP schemes are rejected.
func normalizeURL(base *url.URL, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "javascript:") || strings.HasPrefix(raw, "data:") {
		return "", false
	}

	ref, err := url.Parse(raw)
	if err != nil {
		return "", false
	}

	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}
	resolved.Fragment = ""
	return resolved.String(), true
}

// sameDomain compares hosts ignoring a www. prefix.
func sameDomain(a, b *url.URL) bool {
	return strings.TrimPrefix(a.Hostname(), "www.") == strings.TrimPrefix(b.Hostname(), "www.")
}
