// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys from a directory of plain-text files.
// Each file holds one secret: the filename is the key name and the
// trimmed file contents are the value.
package secrets

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Key file names read by trialmatch.
const (
	OpenAIKey   = "openai-api-key"
	OpenCageKey = "opencage-api-key"
)

// Store is the set of secrets loaded from a directory.
type Store map[string]string

// Load reads all files in dir and returns their trimmed contents by
// filename. A missing directory is not an error; Load returns an empty
// Store. Unreadable files produce a warning on warn but do not abort.
func Load(dir string, warn io.Writer) (Store, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Store{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}
	if warn == nil {
		warn = io.Discard
	}

	s := make(Store)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(warn, "warning: could not read secret %s: %v\n", name, err)
			continue
		}

		if value := strings.TrimSpace(string(data)); value != "" {
			s[name] = value
		}
	}

	return s, nil
}

// Get returns the first non-empty value among the configured value, the
// secret file named key, and the environment variable env.
func (s Store) Get(configured, key, env string) string {
	if v := strings.TrimSpace(configured); v != "" {
		return v
	}
	if v := s[key]; v != "" {
		return v
	}
	if env != "" {
		return strings.TrimSpace(os.Getenv(env))
	}
	return ""
}
