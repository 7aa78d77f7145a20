package main

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"galleria/fetcher"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		mode     string
		expected fetcher.Strategy
		ok       bool
	}{
		{"auto", fetcher.StrategyAuto, true},
		{"static", fetcher.StrategyStatic, true},
		{"browser", fetcher.StrategyBrowser, true},
		{"", "", false},
		{"turbo", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			got, err := parseMode(tt.mode)
			if tt.ok {
				assert.NoError(t, err)
				assert.Equal(t, tt.expected, got)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestRunRequiresExactlyOneJobFlag(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	tests := []struct {
		name     string
		url      string
		batch    string
		category string
	}{
		{"none", "", "", ""},
		{"url and batch", "https://example.com/g", "urls.txt", ""},
		{"all three", "https://example.com/g", "urls.txt", "https://example.com/cat"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(tt.url, tt.batch, tt.category, "config.yaml", "auto", "", log)
			assert.Error(t, err)
		})
	}
}
