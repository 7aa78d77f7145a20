package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid marks configuration errors that must abort the run before any
// fetch begins.
var ErrInvalid = errors.New("invalid configuration")

// LinkHeuristics tunes how the category crawler tells gallery links apart
// from pagination, navigation and filter links. All fields have workable
// defaults; override them per site family when the defaults misclassify.
type LinkHeuristics struct {
	GalleryPatterns []string `yaml:"gallery_patterns,omitempty"`
	ExcludePatterns []string `yaml:"exclude_patterns,omitempty"`
	MinSlugLen      int      `yaml:"min_slug_len,omitempty"`
	MinSlugDashes   int      `yaml:"min_slug_dashes,omitempty"`
}

// Config is the configuration snapshot for one run. It is loaded once at
// startup and treated as read-only afterwards.
type Config struct {
	OutputDir      string `yaml:"output_dir"`
	GallerySubdirs bool   `yaml:"gallery_subdirs"`

	Concurrency    int           `yaml:"concurrency"`
	JobConcurrency int           `yaml:"job_concurrency"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryDelay     time.Duration `yaml:"retry_delay"`

	UserAgent   string        `yaml:"user_agent"`
	HeaderFile  string        `yaml:"header_file,omitempty"`
	PageTimeout time.Duration `yaml:"page_timeout"`
	PageDelay   time.Duration `yaml:"page_delay,omitempty"`

	Headless    bool          `yaml:"headless"`
	SettleDelay time.Duration `yaml:"settle_delay"`
	MaxScrolls  int           `yaml:"max_scrolls"`

	MinImageBytes int64 `yaml:"min_image_bytes"`
	MinWidth      int   `yaml:"min_width"`
	MinHeight     int   `yaml:"min_height"`

	GallerySelectors    []string `yaml:"gallery_selectors"`
	ExcludeSelectors    []string `yaml:"exclude_selectors"`
	PaginationSelectors []string `yaml:"pagination_selectors"`
	NextPhrases         []string `yaml:"next_phrases"`
	MaxPages            int      `yaml:"max_pages"`

	// Below this many detected images the static result is discarded and the
	// page is re-fetched with the browser strategy.
	MinImagesThreshold int `yaml:"min_images_threshold"`

	SaveMetadata  bool `yaml:"save_metadata"`
	RespectRobots bool `yaml:"respect_robots"`

	Links LinkHeuristics `yaml:"links,omitempty"`
}

// Default returns the built-in configuration used when no config file is
// present.
func Default() *Config {
	return &Config{
		OutputDir:      "downloads",
		GallerySubdirs: true,
		Concurrency:    5,
		JobConcurrency: 2,
		MaxRetries:     3,
		RetryDelay:     2 * time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		PageTimeout:    30 * time.Second,
		Headless:       true,
		SettleDelay:    3 * time.Second,
		MaxScrolls:     15,
		MinImageBytes:  15 * 1024,
		MinWidth:       400,
		MinHeight:      400,
		GallerySelectors: []string{
			".gallery", "#gallery", ".comic", ".pages", ".post-content",
			"[class*=\"gallery\"]", "[id*=\"gallery\"]",
		},
		ExcludeSelectors: []string{
			".sidebar", ".navigation", ".menu", ".footer",
			".header", ".ad", ".advertisement", "nav",
		},
		PaginationSelectors: []string{
			"a.next", ".pagination a.next", "a[rel=\"next\"]", ".next a",
		},
		NextPhrases:        []string{"next", "»", ">"},
		MaxPages:           100,
		MinImagesThreshold: 5,
		SaveMetadata:       true,
	}
}

// Load reads cfg from a YAML file, layering it over Default. A missing file
// is not an error: the defaults are returned so the tool works out of the
// box.
func Load(path string) (*Config, error) {
	cfg := Default()

	expanded, err := ExpandPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(expanded)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrInvalid, path, err)
	}

	return cfg, cfg.Validate()
}

// Validate rejects configurations that cannot drive a run. Called before any
// network activity.
func (c *Config) Validate() error {
	switch {
	case c.OutputDir == "":
		return fmt.Errorf("%w: output_dir must not be empty", ErrInvalid)
	case c.Concurrency < 1:
		return fmt.Errorf("%w: concurrency must be at least 1", ErrInvalid)
	case c.JobConcurrency < 1:
		return fmt.Errorf("%w: job_concurrency must be at least 1", ErrInvalid)
	case c.MaxRetries < 0:
		return fmt.Errorf("%w: max_retries must not be negative", ErrInvalid)
	case c.MaxPages < 1:
		return fmt.Errorf("%w: max_pages must be at least 1", ErrInvalid)
	case c.MaxScrolls < 0:
		return fmt.Errorf("%w: max_scrolls must not be negative", ErrInvalid)
	case c.PageTimeout <= 0:
		return fmt.Errorf("%w: page_timeout must be positive", ErrInvalid)
	case c.MinImagesThreshold < 0:
		return fmt.Errorf("%w: min_images_threshold must not be negative", ErrInvalid)
	case c.MinWidth < 0 || c.MinHeight < 0:
		return fmt.Errorf("%w: minimum dimensions must not be negative", ErrInvalid)
	}
	return nil
}

// ExpandPath expands a leading ~/ to the user's home directory, or returns
// the path as-is.
func ExpandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(homeDir, path[2:]), nil
	}
	return path, nil
}
