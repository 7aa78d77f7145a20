package detect

import (
	"fmt"
	"net/url"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"galleria/config"
	"galleria/fetcher"
)

func newQuietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func testDetector(t *testing.T) *Detector {
	t.Helper()
	cfg := config.Default()
	cfg.MinWidth = 0
	cfg.MinHeight = 0
	d, err := New(cfg, newQuietLogger())
	require.NoError(t, err)
	return d
}

func pageResult(url, html string) fetcher.Result {
	return fetcher.Result{
		URL:      url,
		FinalURL: url,
		HTML:     html,
		Status:   fetcher.StatusOK,
		Strategy: fetcher.StrategyStatic,
	}
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func sourceURLs(candidates []Candidate) []string {
	urls := make([]string, len(candidates))
	for i, c := range candidates {
		urls[i] = c.SourceURL
	}
	return urls
}

func TestDetectAttributePreference(t *testing.T) {
	d := testDetector(t)

	tests := []struct {
		name     string
		img      string
		expected string
	}{
		{
			name:     "srcset beats src",
			img:      `<img srcset="/small.jpg 300w, /big.jpg 1200w" src="/thumb.jpg">`,
			expected: "https://example.com/big.jpg",
		},
		{
			name:     "data-original beats src",
			img:      `<img data-original="/full.jpg" src="/thumb.jpg">`,
			expected: "https://example.com/full.jpg",
		},
		{
			name:     "data-src beats src",
			img:      `<img data-src="/lazy.png" src="/placeholder.png">`,
			expected: "https://example.com/lazy.png",
		},
		{
			name:     "plain src as fallback",
			img:      `<img src="/only.webp">`,
			expected: "https://example.com/only.webp",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html := fmt.Sprintf(`<html><body><div class="gallery">%s<img src="/a.jpg"><img src="/b.jpg"></div></body></html>`, tt.img)
			candidates, _ := d.Detect(pageResult("https://example.com/gallery/test", html))
			assert.Contains(t, sourceURLs(candidates), tt.expected)
		})
	}
}

func TestDetectAnchorLinkSuppressesWrappedThumbnail(t *testing.T) {
	d := testDetector(t)

	html := `<html><body><div class="gallery">
		<a href="/images/full-001.jpg"><img src="/thumbs/t-001.jpg"></a>
		<a href="/images/full-002.jpg"><img src="/thumbs/t-002.jpg"></a>
		<img src="/images/inline-003.jpg">
	</div></body></html>`

	candidates, _ := d.Detect(pageResult("https://example.com/gallery/test", html))
	urls := sourceURLs(candidates)

	assert.Equal(t, []string{
		"https://example.com/images/full-001.jpg",
		"https://example.com/images/full-002.jpg",
		"https://example.com/images/inline-003.jpg",
	}, urls)
	assert.NotContains(t, urls, "https://example.com/thumbs/t-001.jpg")
}

func TestDetectDeduplicatesNormalizedURLs(t *testing.T) {
	d := testDetector(t)

	// Same image referenced three ways: relative, absolute, with fragment.
	html := `<html><body><div class="gallery">
		<img src="/pics/one.jpg"><img src="/pics/two.jpg">
		<img src="https://example.com/pics/one.jpg">
		<img src="/pics/one.jpg#view">
	</div></body></html>`

	candidates, _ := d.Detect(pageResult("https://example.com/gallery/test", html))
	assert.Equal(t, []string{
		"https://example.com/pics/one.jpg",
		"https://example.com/pics/two.jpg",
	}, sourceURLs(candidates))
}

func TestDetectIsIdempotent(t *testing.T) {
	d := testDetector(t)

	html := `<html><body><div class="gallery">
		<a href="/full/1.jpg"><img src="/t/1.jpg"></a>
		<img src="/full/2.jpg"><img data-src="/full/3.jpg">
	</div><a class="next" href="/gallery/test?page=2">Next</a></body></html>`
	res := pageResult("https://example.com/gallery/test", html)

	first, firstNext := d.Detect(res)
	second, secondNext := d.Detect(res)
	assert.Equal(t, first, second)
	assert.Equal(t, firstNext, secondNext)
}

func TestDetectSkipsExcludedRegions(t *testing.T) {
	d := testDetector(t)

	html := `<html><body>
		<div class="sidebar"><img src="/ads/banner1.jpg"><img src="/ads/banner2.jpg"><img src="/ads/banner3.jpg"></div>
		<div class="gallery"><img src="/pics/1.jpg"><img src="/pics/2.jpg"><img src="/pics/3.jpg"></div>
	</body></html>`

	candidates, _ := d.Detect(pageResult("https://example.com/gallery/test", html))
	for _, u := range sourceURLs(candidates) {
		assert.NotContains(t, u, "/ads/")
	}
	assert.Len(t, candidates, 3)
}

func TestDetectDeclaredDimensionFilter(t *testing.T) {
	cfg := config.Default()
	d, err := New(cfg, newQuietLogger())
	require.NoError(t, err)

	html := `<html><body><div class="gallery">
		<img src="/icons/tiny.png" width="32" height="32">
		<img src="/pics/big.jpg" width="800" height="600">
		<img src="/pics/undeclared.jpg">
	</div></body></html>`

	candidates, _ := d.Detect(pageResult("https://example.com/gallery/test", html))
	urls := sourceURLs(candidates)

	assert.NotContains(t, urls, "https://example.com/icons/tiny.png")
	assert.Contains(t, urls, "https://example.com/pics/big.jpg")
	// Images without declared dimensions are kept; the downloader validates
	// real dimensions after fetch.
	assert.Contains(t, urls, "https://example.com/pics/undeclared.jpg")
}

func TestDetectStructuralFallback(t *testing.T) {
	d := testDetector(t)

	// No configured selector matches; the densest container wins.
	html := `<html><body>
		<div id="promo"><img src="/promo/1.jpg"></div>
		<div id="content">
			<img src="/pics/1.jpg"><img src="/pics/2.jpg">
			<img src="/pics/3.jpg"><img src="/pics/4.jpg">
		</div>
	</body></html>`

	candidates, _ := d.Detect(pageResult("https://example.com/view/123", html))
	assert.Len(t, candidates, 4)
	for _, u := range sourceURLs(candidates) {
		assert.Contains(t, u, "/pics/")
	}
}

func TestNextPageSelectorsFirst(t *testing.T) {
	d := testDetector(t)

	html := `<html><body><div class="gallery"><img src="/1.jpg"></div>
		<a href="/gallery/test?page=3">3</a>
		<a class="next" href="/gallery/test?page=2">weiter</a>
	</body></html>`

	_, next := d.Detect(pageResult("https://example.com/gallery/test", html))
	assert.Equal(t, "https://example.com/gallery/test?page=2", next)
}

func TestNextPagePhraseFallback(t *testing.T) {
	d := testDetector(t)

	html := `<html><body><div class="gallery"><img src="/1.jpg"></div>
		<a href="/gallery/test/2">Next</a>
	</body></html>`

	_, next := d.Detect(pageResult("https://example.com/gallery/test", html))
	assert.Equal(t, "https://example.com/gallery/test/2", next)
}

func TestNextPageNeverReturnsSelf(t *testing.T) {
	d := testDetector(t)

	html := `<html><body><div class="gallery"><img src="/1.jpg"></div>
		<a class="next" href="/gallery/test">Next</a>
	</body></html>`

	_, next := d.Detect(pageResult("https://example.com/gallery/test", html))
	assert.Equal(t, "", next)
}

func TestNextPageAbsent(t *testing.T) {
	d := testDetector(t)

	html := `<html><body><div class="gallery"><img src="/1.jpg"></div></body></html>`
	_, next := d.Detect(pageResult("https://example.com/gallery/test", html))
	assert.Equal(t, "", next)
}

func TestLargestSrcsetEntry(t *testing.T) {
	tests := []struct {
		name     string
		srcset   string
		expected string
	}{
		{"widths ascending", "/a.jpg 300w, /b.jpg 600w, /c.jpg 1200w", "/c.jpg"},
		{"widths descending", "/c.jpg 1200w, /a.jpg 300w", "/c.jpg"},
		{"no descriptors", "/only.jpg", "/only.jpg"},
		{"mixed descriptors", "/a.jpg, /b.jpg 800w", "/b.jpg"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, largestSrcsetEntry(tt.srcset))
		})
	}
}

func TestNormalizeURL(t *testing.T) {
	base := mustParse(t, "https://example.com/gallery/test/")

	tests := []struct {
		name     string
		raw      string
		expected string
		ok       bool
	}{
		{"relative", "pic.jpg", "https://example.com/gallery/test/pic.jpg", true},
		{"root relative", "/pic.jpg", "https://example.com/pic.jpg", true},
		{"absolute", "https://cdn.example.com/pic.jpg", "https://cdn.example.com/pic.jpg", true},
		{"fragment stripped", "/pic.jpg#top", "https://example.com/pic.jpg", true},
		{"query kept", "/pic.jpg?v=2", "https://example.com/pic.jpg?v=2", true},
		{"javascript rejected", "javascript:void(0)", "", false},
		{"data rejected", "data:image/png;base64,xyz", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := normalizeURL(base, tt.raw)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.expected, got)
			}
		})
	}
}
