// Package hostmsg defines the bidirectional message schema between the
// host process and a publisher/subscriber engine (spec §6). The original
// shape is an ad-hoc channel keyed by a string `type` field; per spec
// §9 "Dynamic messages → tagged variants" this module instead models
// each message as its own Go type implementing a marker interface, so
// each message's fields are typed and checked by the compiler rather than
// looked up by string key. Consumers dispatch with a type switch; the
// compiler does not check such a switch for exhaustiveness.
package hostmsg

import "github.com/zsiec/moqtcore/internal/track"

// In is implemented by every inbound (host → engine) message.
type In interface{ isIn() }

// MuxerSendInit is the publisher init message (spec §6 `muxersendini`).
// publisher.Engine does not act on it: it takes its tracks from New,
// starts the handshake from Run, and logs an init message arriving on the
// bus as unexpected.
type MuxerSendInit struct {
	URLHostPort    string
	IsSendingStats bool
	MoqTracks      track.Set
}

func (MuxerSendInit) isIn() {}

// DownloaderSendInit is the subscriber init message (spec §6
// `downloadersendini`).
type DownloaderSendInit struct {
	URLHostPort    string
	URLPath        string
	IsSendingStats bool
	MoqTracks      track.Set
}

func (DownloaderSendInit) isIn() {}

// Stop requests graceful shutdown (spec §6 `stop`).
type Stop struct{}

func (Stop) isIn() {}

// Chunk is publisher chunk ingress for one configured track (spec §6
// "any configured track name"). Track identifies which configured track
// the chunk belongs to; the engine rejects a Chunk whose Track is not in
// the configured set with an Error event (spec §4.E step 2).
type Chunk struct {
	Track             track.Kind
	SeqID             int64
	ChunkType         string // "key" | "delta"
	Timestamp         int64  // µs
	Duration          uint32 // µs
	FirstFrameClkMs   int64
	EstimatedDuration uint32 // preferred duration; falls back to Duration when zero (spec §9)
	Metadata          []byte
	Data              []byte
}

func (Chunk) isIn() {}

// Out is implemented by every outbound (engine → host) event.
type Out interface{ isOut() }

// Info is a routine lifecycle notice.
type Info struct{ Message string }

func (Info) isOut() {}

// Debug is a routine per-object notice, emitted when the subscriber's
// latency probe does not trip (spec §4.F).
type Debug struct{ Message string }

func (Debug) isOut() {}

// Warning is a non-fatal anomaly, emitted when the subscriber's latency
// probe trips (spec §4.F).
type Warning struct{ Message string }

func (Warning) isOut() {}

// Error reports a ConfigError, HandshakeError, ProtocolError, or AuthError
// (spec §7).
type Error struct{ Err error }

func (Error) isOut() {}

// Dropped reports a soft per-chunk drop: no subscribers, session not
// running, in-flight full, or first-object-must-be-key (spec §4.E, §7
// BackpressureDrop).
type Dropped struct {
	Track  track.Kind
	Reason string
}

func (Dropped) isOut() {}

// DroppedStream reports a subscriber-side object stream discarded for a
// header parse failure or unknown trackId (spec §4.F).
type DroppedStream struct{ Reason string }

func (DroppedStream) isOut() {}

// SendStats is the publisher's periodic stats event (spec §6
// `sendstats`, cadence per SPEC_FULL §Supplemented features).
type SendStats struct {
	ClkMs       int64
	InFlightReq map[track.Kind]int
}

func (SendStats) isOut() {}

// DownloaderStats is the subscriber's periodic stats event (spec §6
// `downloaderstats`).
type DownloaderStats struct {
	ClkMs int64
}

func (DownloaderStats) isOut() {}

// EncodedChunk is the decoded-chunk record carried by AudioChunk and
// VideoChunk (spec §4.F). Data carries its own SeqID, ChunkType and Data
// fields instead.
type EncodedChunk struct {
	Timestamp    int64  // µs
	ChunkType    string // "key" | "delta"
	Data         []byte
	Duration     uint32 // µs
	SeqID        int64
	CaptureClkMs int64
	Metadata     []byte
}

// AudioChunk is emitted for a decoded LOC object on an audio track.
type AudioChunk struct{ Chunk EncodedChunk }

func (AudioChunk) isOut() {}

// VideoChunk is emitted for a decoded LOC object on a video track.
type VideoChunk struct{ Chunk EncodedChunk }

func (VideoChunk) isOut() {}

// Data is emitted for a decoded RAW object on a data track.
type Data struct {
	SeqID     int64
	ChunkType string
	Data      []byte
}

func (Data) isOut() {}
