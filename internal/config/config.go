// Package config loads the track-set configuration (spec §6 `moqTracks`)
// from a YAML file, grounded on vinq1911-nonchalant's use of
// gopkg.in/yaml.v3 for structured config — the only example repo in the
// retrieval pack that parses config rather than accepting only flags or
// env vars.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/zsiec/moqtcore/internal/track"
)

// trackFile is the on-disk shape of a track-set config file: one entry
// per track kind ("audio", "video", "data").
type trackFile struct {
	Tracks map[string]trackEntry `yaml:"tracks"`
}

type trackEntry struct {
	ID                  uint64 `yaml:"id"`
	Namespace           string `yaml:"namespace"`
	Name                string `yaml:"name"`
	AuthInfo            string `yaml:"authInfo"`
	IsHipri             bool   `yaml:"isHipri"`
	MaxInFlightRequests uint32 `yaml:"maxInFlightRequests"`
}

// Load reads and validates a track.Set from a YAML file at path.
func Load(path string) (track.Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a track.Set from YAML bytes, in the shape Load reads from
// disk. Exposed separately so the hot-reload watcher (see watch.go) can
// reuse it without a temp file.
func Parse(data []byte) (track.Set, error) {
	var f trackFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}

	set := make(track.Set, len(f.Tracks))
	for kindName, entry := range f.Tracks {
		set[track.Kind(kindName)] = &track.Config{
			ID:          entry.ID,
			Namespace:   entry.Namespace,
			Name:        entry.Name,
			AuthInfo:    entry.AuthInfo,
			IsHipri:     entry.IsHipri,
			MaxInFlight: entry.MaxInFlightRequests,
		}
	}

	if err := set.Validate(); err != nil {
		return nil, err
	}
	return set, nil
}
