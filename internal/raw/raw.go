// Package raw implements the RAW envelope for opaque (non-media) data
// objects: a minimal framing of mediaType, chunkType, seqId, and data
// (spec §4.C).
package raw

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/zsiec/moqtcore/internal/wire"
)

// DataMediaType is the only mediaType RAW recognizes (spec §4.C: "Recognizes
// mediaType == 'data' only").
const DataMediaType = "data"

// Errors returned by Decode when a RAW envelope is malformed.
var (
	ErrTruncatedHeader  = errors.New("raw: truncated header")
	ErrUnknownMediaType = errors.New("raw: unknown media type")
)

// Envelope is one RAW opaque-data chunk (spec §3 "RAW envelope fields").
type Envelope struct {
	MediaType string
	ChunkType string
	SeqID     int64
	Data      []byte
}

// Encode serializes e in field order: mediaType, chunkType, seqId, data.
func Encode(e Envelope) ([]byte, error) {
	if e.MediaType != DataMediaType {
		return nil, ErrUnknownMediaType
	}

	var buf []byte
	buf = wire.AppendString(buf, e.MediaType)
	buf = wire.AppendString(buf, e.ChunkType)
	buf = wire.AppendVarint(buf, e.SeqID)
	buf = wire.AppendBytes(buf, e.Data)
	return buf, nil
}

// Decode parses a RAW envelope from r, which must contain exactly one
// envelope's bytes.
func Decode(r io.Reader) (Envelope, error) {
	var e Envelope
	rd := wire.NewReader(r)

	mediaType, err := rd.String()
	if err != nil {
		return e, fmt.Errorf("%w: mediaType: %v", ErrTruncatedHeader, err)
	}
	if mediaType != DataMediaType {
		return e, ErrUnknownMediaType
	}
	e.MediaType = mediaType

	if e.ChunkType, err = rd.String(); err != nil {
		return e, fmt.Errorf("%w: chunkType: %v", ErrTruncatedHeader, err)
	}
	if e.SeqID, err = rd.Varint(); err != nil {
		return e, fmt.Errorf("%w: seqId: %v", ErrTruncatedHeader, err)
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
