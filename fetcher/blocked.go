package fetcher

import "strings"

// blockIndicators are substrings that identify anti-bot interstitials and
// challenge pages in a response body.
var blockIndicators = []string{
	"cf-browser-verification",
	"challenge-form",
	"/cdn-cgi/challenge-platform/",
	"cf-chl-",
	"just a moment...",
	"verify you are human",
	"access denied",
}

// looksBlocked reports whether a response is an anti-bot block or challenge
// page rather than real content. Status-based detection covers outright
// refusals; body-based detection covers challenge pages served with 200.
func looksBlocked(statusCode int, body string) bool {
	if statusCode == 403 || statusCode == 429 || statusCode == 503 {
		return true
	}

	lower := strings.ToLower(body)
	for _, indicator := range blockIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}
