package detect

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"galleria/config"
)

func TestDetectLinksGalleryPatterns(t *testing.T) {
	d := testDetector(t)

	html := `<html><body>
		<a href="/gallery/summer-beach-photo-set-2024"><img src="/t/1.jpg"></a>
		<a href="/gallery/mountain-hiking-album-shots"><img src="/t/2.jpg"></a>
		<a href="/album/9912345/"><img src="/t/3.jpg"></a>
		<a href="/login">Login</a>
		<a href="/tags/nature">nature</a>
		<a href="/?page=2">2</a>
	</body></html>`

	links, _ := d.DetectLinks(pageResult("https://example.com/galleries/", html))
	assert.Equal(t, []string{
		"https://example.com/gallery/summer-beach-photo-set-2024",
		"https://example.com/gallery/mountain-hiking-album-shots",
		"https://example.com/album/9912345/",
	}, links)
}

func TestDetectLinksSlugHeuristicNeedsThumbnail(t *testing.T) {
	d := testDetector(t)

	// Both anchors carry descriptive slugs on an unknown path layout; only
	// the one wrapping a thumbnail counts as a gallery entry.
	html := `<html><body>
		<a href="/view/pretty-sunset-over-harbor"><img src="/t/1.jpg"></a>
		<a href="/view/another-text-only-entry">read more</a>
	</body></html>`

	links, _ := d.DetectLinks(pageResult("https://example.com/", html))
	assert.Equal(t, []string{"https://example.com/view/pretty-sunset-over-harbor"}, links)
}

func TestDetectLinksRejectsOffDomainAndImages(t *testing.T) {
	d := testDetector(t)

	html := `<html><body>
		<a href="https://other.example.org/gallery/some-external-set-1234"><img src="/t/1.jpg"></a>
		<a href="/pics/direct-image.jpg"><img src="/t/2.jpg"></a>
		<a href="/gallery/kept-local-photo-set-5678"><img src="/t/3.jpg"></a>
	</body></html>`

	links, _ := d.DetectLinks(pageResult("https://example.com/galleries/", html))
	assert.Equal(t, []string{"https://example.com/gallery/kept-local-photo-set-5678"}, links)
}

func TestDetectLinksDedupAcrossRepeats(t *testing.T) {
	d := testDetector(t)

	html := `<html><body>
		<a href="/gallery/repeated-entry-photo-set"><img src="/t/1.jpg"></a>
		<a href="/gallery/repeated-entry-photo-set"><img src="/t/1b.jpg"></a>
		<a href="/gallery/second-entry-photo-set"><img src="/t/2.jpg"></a>
	</body></html>`

	links, _ := d.DetectLinks(pageResult("https://example.com/", html))
	assert.Len(t, links, 2)
}

func TestDetectLinksPagination(t *testing.T) {
	d := testDetector(t)

	html := `<html><body>
		<a href="/gallery/only-entry-photo-set"><img src="/t/1.jpg"></a>
		<a class="next" href="/galleries/?page=2">Next</a>
	</body></html>`

	links, next := d.DetectLinks(pageResult("https://example.com/galleries/", html))
	assert.Len(t, links, 1)
	assert.Equal(t, "https://example.com/galleries/?page=2", next)
}

func TestDetectLinksCustomPatterns(t *testing.T) {
	cfg := config.Default()
	cfg.Links.GalleryPatterns = []string{`/sets/\d+`}
	log := newQuietLogger()
	d, err := New(cfg, log)
	require.NoError(t, err)

	html := `<html><body>
		<a href="/sets/42">set</a>
		<a href="/gallery/would-match-default-patterns-123456">other</a>
	</body></html>`

	links, _ := d.DetectLinks(pageResult("https://example.com/", html))
	assert.Equal(t, []string{"https://example.com/sets/42"}, links)
}

func TestNewLinkHeuristicsRejectsBadPattern(t *testing.T) {
	cfg := config.Default()
	cfg.Links.ExcludePatterns = []string{"("}
	_, err := New(cfg, newQuietLogger())
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestIsListingPage(t *testing.T) {
	d := testDetector(t)

	var grid strings.Builder
	grid.WriteString("<html><body>")
	for i := 0; i < 8; i++ {
		grid.WriteString(fmt.Sprintf(
			`<a href="/gallery/photo-set-number-%d-here"><img src="/t/%d.jpg"></a>`, i, i))
	}
	grid.WriteString("</body></html>")

	gallery := `<html><body><div class="gallery">
		<a href="/full/1.jpg"><img src="/t/1.jpg"></a>
		<a href="/full/2.jpg"><img src="/t/2.jpg"></a>
	</div></body></html>`

	assert.True(t, d.IsListingPage(pageResult("https://example.com/", grid.String())))
	assert.False(t, d.IsListingPage(pageResult("https://example.com/gallery/set", gallery)))
}
