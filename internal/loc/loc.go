// Package loc implements the LOC media envelope: a length-prefixed framing
// for already-encoded audio/video chunks, carrying timing, keyframe, and
// capture-clock metadata alongside the payload (spec §4.B).
package loc

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/golang/snappy"

	"github.com/zsiec/moqtcore/internal/wire"
)

// MediaType selects which encoded media the envelope carries.
type MediaType string

const (
	MediaAudio MediaType = "audio"
	MediaVideo MediaType = "video"
)

// ChunkType distinguishes a keyframe (independently decodable) object from
// a delta object that depends on prior objects in its group.
type ChunkType string

const (
	ChunkKey   ChunkType = "key"
	ChunkDelta ChunkType = "delta"
)

// Errors returned by Decode when a LOC envelope is malformed (spec §4.B).
var (
	ErrTruncatedHeader  = errors.New("loc: truncated header")
	ErrUnknownMediaType = errors.New("loc: unknown media type")
	ErrUnknownChunkType = errors.New("loc: unknown chunk type")
)

// Envelope is one LOC media chunk (spec §3 "LOC envelope fields").
type Envelope struct {
	MediaType       MediaType
	Timestamp       int64 // microseconds
	Duration        uint32 // microseconds
	ChunkType       ChunkType
	SeqID           int64
	FirstFrameClkMs int64  // wall-clock milliseconds of capture
	Metadata        []byte // may be empty
	Data            []byte
}

// IsKey reports whether the envelope carries a keyframe object.
func (e Envelope) IsKey() bool { return e.ChunkType == ChunkKey }

// Encode serializes e in field order: mediaType, timestamp, duration,
// chunkType, seqId, firstFrameClkms, metadata, data. Strings are
// lp_string, signed integers are zigzag varints, duration is an unsigned
// varint, byte buffers are lp_bytes.
//
// The metadata field is snappy-compressed on the wire: metadata is
// arbitrary application bytes that benefit from compression, and Decode
// transparently reverses it, so Decode(Encode(e)) still reproduces e's
// original (uncompressed) Metadata bytes.
func Encode(e Envelope) ([]byte, error) {
	if e.MediaType != MediaAudio && e.MediaType != MediaVideo {
		return nil, ErrUnknownMediaType
	}
	if e.ChunkType != ChunkKey && e.ChunkType != ChunkDelta {
		return nil, ErrUnknownChunkType
	}

	var buf []byte
	buf = wire.AppendString(buf, string(e.MediaType))
	buf = wire.AppendVarint(buf, e.Timestamp)
	buf = wire.AppendUvarint(buf, uint64(e.Duration))
	buf = wire.AppendString(buf, string(e.ChunkType))
	buf = wire.AppendVarint(buf, e.SeqID)
	buf = wire.AppendVarint(buf, e.FirstFrameClkMs)
	buf = wire.AppendBytes(buf, snappy.Encode(nil, e.Metadata))
	buf = wire.AppendBytes(buf, e.Data)
	return buf, nil
}

// Decode parses a LOC envelope from r, which must contain exactly one
// envelope's bytes (the caller reads the object stream to EOF first, per
// spec §4.B "exactly the inverse over a streaming reader").
func Decode(r io.Reader) (Envelope, error) {
	var e Envelope
	rd := wire.NewReader(r)

	mediaType, err := rd.String()
	if err != nil {
		return e, fmt.Errorf("%w: mediaType: %v", ErrTruncatedHeader, err)
	}
	e.MediaType = MediaType(mediaType)
	if e.MediaType != MediaAudio && e.MediaType != MediaVideo {
		return e, ErrUnknownMediaType
	}

	if e.Timestamp, err = rd.Varint(); err != nil {
		return e, fmt.Errorf("%w: timestamp: %v", ErrTruncatedHeader, err)
	}

	duration, err := rd.Uvarint()
	if err != nil {
		return e, fmt.Errorf("%w: duration: %v", ErrTruncatedHeader, err)
	}
	e.Duration = uint32(duration)

	chunkType, err := rd.String()
	if err != nil {
		return e, fmt.Errorf("%w: chunkType: %v", ErrTruncatedHeader, err)
	}
	e.ChunkType = ChunkType(chunkType)
	if e.ChunkType != ChunkKey && e.ChunkType != ChunkDelta {
		return e, ErrUnknownChunkType
	}

	if e.SeqID, err = rd.Varint(); err != nil {
		return e, fmt.Errorf("%w: seqId: %v", ErrTruncatedHeader, err)
	}
	if e.FirstFrameClkMs, err = rd.Varint(); err != nil {
		return e, fmt.Errorf("%w: firstFrameClkms: %v", ErrTruncatedHeader, err)
	}

	compMeta, err := rd.Bytes()
	if err != nil {
		return e, fmt.Errorf("%w: metadata: %v", ErrTruncatedHeader, err)
	}
	metadata, err := snappy.Decode(nil, compMeta)
	if err != nil {
		return e, fmt.Errorf("%w: metadata: %v", ErrTruncatedHeader, err)
	}
	// The wire format has no way to distinguish a nil Metadata from a
	// non-nil empty one: both snappy-compress to the same zero-length
	// payload. Decode normalizes either case back to nil rather than
	// picking one arbitrarily.
	if len(metadata) > 0 {
		e.Metadata = metadata
	}

	if e.Data, err = rd.Bytes(); err != nil {
		return e, fmt.Errorf("%w: data: %v", ErrTruncatedHeader, err)
	}

	return e, nil
}

// DecodeBytes is a convenience wrapper around Decode for callers that
// already hold the full payload in memory.
func DecodeBytes(payload []byte) (Envelope, error) {
	return Decode(bytes.NewReader(payload))
}
