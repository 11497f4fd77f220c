// Package track defines the MOQT track descriptor and per-track publisher
// bookkeeping shared by the session, publisher, and subscriber packages
// (spec §3).
package track

import (
	"fmt"
	"sync/atomic"
)

// Kind selects the packaging used for a track's objects: audio and video
// use LOC framing, data uses RAW framing.
type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
	KindData  Kind = "data"
)

// Config is a single track's descriptor (spec §3 "Track descriptor").
// ID and NumSubscribers are runtime fields mutated in place after
// creation (ID is assigned by the publisher and echoed back to the
// subscriber in SUBSCRIBE_RESPONSE; NumSubscribers is publisher-only and
// starts at 0), so Config is always held and passed by pointer.
type Config struct {
	Namespace   string
	Name        string
	AuthInfo    string
	IsHipri     bool
	MaxInFlight uint32 // publisher only; ignored by subscribers

	ID             uint64
	NumSubscribers atomic.Uint32 // publisher only
}

// Validate checks that a track carries the minimum fields the handshake
// needs (spec §6: "non-empty; each track carries at least namespace, name,
// authInfo").
func (c *Config) Validate() error {
	if c.Namespace == "" {
		return fmt.Errorf("track: empty namespace")
	}
	if c.Name == "" {
		return fmt.Errorf("track: empty name")
	}
	if c.AuthInfo == "" {
		return fmt.Errorf("track: empty authInfo")
	}
	return nil
}

// Set is the full configured track table for one engine, keyed by the
// track's kind (spec's "mediaType"/"trackKind"). A given engine instance
// publishes or subscribes to one track per configured kind.
type Set map[Kind]*Config

// Validate checks that the set is non-empty and every entry is well formed.
func (s Set) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("track: empty track set")
	}
	for kind, cfg := range s {
		if cfg == nil {
			return fmt.Errorf("track: nil config for kind %q", kind)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("track: kind %q: %w", kind, err)
		}
	}
	return nil
}

// Namespaces returns the distinct namespaces across the set, in a stable
// order, so that ANNOUNCE is sent exactly once per distinct namespace even
// when multiple tracks share one (spec §4.D, tested by scenario S1).
func (s Set) Namespaces() []string {
	seen := make(map[string]bool, len(s))
	var order []string
	for _, kind := range OrderedKinds(s) {
		ns := s[kind].Namespace
		if !seen[ns] {
			seen[ns] = true
			order = append(order, ns)
		}
	}
	return order
}

// OrderedKinds returns the set's keys in a deterministic order (audio,
// video, data, then any others), so namespace enumeration, id assignment,
// and iteration in tests is reproducible despite Go's randomized map
// order.
func OrderedKinds(s Set) []Kind {
	preferred := []Kind{KindAudio, KindVideo, KindData}
	var out []Kind
	seen := make(map[Kind]bool, len(s))
	for _, k := range preferred {
		if _, ok := s[k]; ok {
			out = append(out, k)
			seen[k] = true
		}
	}
	for k := range s {
		if !seen[k] {
			out = append(out, k)
		}
	}
	return out
}

// ByNamespaceName finds the track whose (namespace, name) matches, used by
// the publisher's subscribe-accept loop (spec §4.D).
func (s Set) ByNamespaceName(namespace, name string) (Kind, *Config, bool) {
	for _, kind := range OrderedKinds(s) {
		cfg := s[kind]
		if cfg.Namespace == namespace && cfg.Name == name {
			return kind, cfg, true
		}
	}
	return "", nil, false
}

// PackagingFor reports which packager a track kind uses (spec §3: "data
// selects RAW packaging, the others LOC").
func PackagingFor(kind Kind) (isRaw bool) {
	return kind == KindData
}

// State is the publisher's per-track group/object sequence bookkeeping
// (spec §3). It is created lazily on the first keyframe object seen for a
// track and is absent until then.
type State struct {
	GroupSeq  uint64
	ObjectSeq uint64
}

// Advance applies one object's group/object sequence transition and
// returns the (groupSeq, objSeq) pair the object itself should carry —
// always the pre-increment pair (spec §4.E "Group/object assignment").
func (s *State) Advance(isKey bool) (groupSeq, objSeq uint64) {
	if isKey {
		s.GroupSeq++
		s.ObjectSeq = 0
	}
	groupSeq, objSeq = s.GroupSeq, s.ObjectSeq
	s.ObjectSeq++
	return groupSeq, objSeq
}
