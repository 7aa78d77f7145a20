package fetcher

import (
	"context"
	"net/http"
	"net/url"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"
)

// RobotsGate is an optional politeness check consulted before page fetches.
// Disabled it allows everything; enabled it caches one robots.txt per host
// for the run. Unfetchable robots.txt means the host allows everything,
// matching the conventional interpretation.
type RobotsGate struct {
	enabled   bool
	client    *StaticClient
	userAgent string
	log       *logrus.Entry

	mu    sync.Mutex
	cache map[string]*robotstxt.RobotsData
}

// NewRobotsGate builds a gate backed by the static client.
func NewRobotsGate(enabled bool, client *StaticClient, userAgent string, log *logrus.Logger) *RobotsGate {
	return &RobotsGate{
		enabled:   enabled,
		client:    client,
		userAgent: userAgent,
		log:       log.WithField("component", "fetcher.robots"),
		cache:     map[string]*robotstxt.RobotsData{},
	}
}

// Allowed reports whether the URL may be fetched.
func (g *RobotsGate) Allowed(ctx context.Context, targetURL string) bool {
	if g == nil || !g.enabled {
		return true
	}

	parsed, err := url.Parse(targetURL)
	if err != nil {
		return true
	}

	data := g.robotsFor(ctx, parsed)
	if data == nil {
		return true
	}
	return data.TestAgent(parsed.Path, g.userAgent)
}

func (g *RobotsGate) robotsFor(ctx context.Context, page *url.URL) *robotstxt.RobotsData {
	host := page.Scheme + "://" + page.Host

	g.mu.Lock()
	defer g.mu.Unlock()

	if data, ok := g.cache[host]; ok {
		return data
	}

	var data *robotstxt.RobotsData
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, host+"/robots.txt", nil)
	if err == nil {
		resp, err := g.client.Do(req)
		if err == nil {
			defer resp.Body.Close()
			if parsed, perr := robotstxt.FromResponse(resp); perr == nil {
				data = parsed
			}
		}
	}
	if data == nil {
		g.log.WithField("host", host).Debug("No usable robots.txt, allowing all")
	}

	g.cache[host] = data
	return data
}
