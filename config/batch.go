package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadURLFile reads a newline-delimited batch file of seed URLs. Blank lines
// and lines starting with # are skipped.
func LoadURLFile(path string) ([]string, error) {
	expanded, err := ExpandPath(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(expanded)
	if err != nil {
		return nil, fmt.Errorf("opening batch file %s: %w", path, err)
	}
	defer file.Close()

	var urls []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading batch file %s: %w", path, err)
	}
	return urls, nil
}
