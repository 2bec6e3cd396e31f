package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

// Manifest is an optional operator-supplied channel policy, loaded once at
// startup. It can disable declared channels and override the request timeout
// per channel; it can never add channels the host did not declare.
type Manifest struct {
	Channels []ManifestChannel `yaml:"channels"`
}

// ManifestChannel is one channel policy entry.
type ManifestChannel struct {
	Name    string `yaml:"name"`
	Enabled *bool  `yaml:"enabled"`
	Timeout string `yaml:"timeout"`
}

// LoadManifest reads and validates a YAML manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	for i, ch := range m.Channels {
		if ch.Name == "" {
			return nil, fmt.Errorf("manifest channel %d has no name", i)
		}
		if ch.Timeout != "" {
			if _, err := time.ParseDuration(ch.Timeout); err != nil {
				return nil, fmt.Errorf("manifest channel %s: bad timeout %q: %w", ch.Name, ch.Timeout, err)
			}
		}
	}
	return &m, nil
}

// Disabled returns the names of channels the manifest turns off.
func (m *Manifest) Disabled() []string {
	var out []string
	for _, ch := range m.Channels {
		if ch.Enabled != nil && !*ch.Enabled {
			out = append(out, ch.Name)
		}
	}
	return out
}

// Timeouts returns per-channel request timeout overrides.
func (m *Manifest) Timeouts() map[string]time.Duration {
	out := make(map[string]time.Duration)
	for _, ch := range m.Channels {
		if ch.Timeout == "" {
			continue
		}
		d, err := time.ParseDuration(ch.Timeout)
		if err != nil {
			continue // validated at load time
		}
		out[ch.Name] = d
	}
	return out
}
