package wire

import (
	"bufio"
	"io"

	"github.com/quic-go/quic-go/quicvarint"
)

// byteReader is the minimal interface quicvarint needs to parse a varint
// directly off a stream without buffering the whole message first.
type byteReader interface {
	io.Reader
	io.ByteReader
}

// Reader sequentially decodes MOQT primitives off a byte stream: QUIC
// varints, length-prefixed byte strings and strings, and parameter lists.
// A single Reader is typically held for the lifetime of a control stream,
// since MOQT messages are not length-prefixed as a whole — only their
// individual variable-length fields are.
type Reader struct {
	r byteReader
}

// NewReader wraps r for MOQT primitive decoding. If r does not already
// implement io.ByteReader, it is wrapped in a bufio.Reader.
func NewReader(r io.Reader) *Reader {
	if br, ok := r.(byteReader); ok {
		return &Reader{r: br}
	}
	return &Reader{r: bufio.NewReader(r)}
}

// Read implements io.Reader by delegating to the wrapped stream, so a
// Reader can itself be handed to io.ReadAll/io.Copy once its caller is
// done decoding fixed fields and wants the remaining raw bytes. This must
// be used in preference to reading the underlying stream directly: when
// NewReader wraps a stream that isn't already an io.ByteReader, it
// buffers it in a bufio.Reader, which may have prefetched bytes past
// whatever has been decoded so far.
func (r *Reader) Read(p []byte) (int, error) {
	return r.r.Read(p)
}

// Uvarint reads a QUIC variable-length unsigned integer (1/2/4/8 bytes,
// width selected by the top two bits of the first byte).
func (r *Reader) Uvarint() (uint64, error) {
	v, err := quicvarint.Read(r.r)
	if err != nil {
		return 0, ErrTruncated
	}
	return v, nil
}

// Varint reads a zigzag-encoded signed QUIC varint. seqId and timestamp
// fields are logically signed; zigzag keeps the wire encoding unsigned
// while letting negative sentinels (e.g. seqId < 0) round-trip exactly.
func (r *Reader) Varint() (int64, error) {
	u, err := r.Uvarint()
	if err != nil {
		return 0, err
	}
	return ZigzagDecode(u), nil
}

// Byte reads a single raw byte (used for one-byte enum fields like ROLE).
func (r *Reader) Byte() (byte, error) {
	b, err := r.r.ReadByte()
	if err != nil {
		return 0, ErrTruncated
	}
	return b, nil
}

// Bytes reads a varint length followed by that many raw bytes (lp_bytes).
func (r *Reader) Bytes() ([]byte, error) {
	n, err := r.Uvarint()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r.r, buf); err != nil {
			return nil, ErrTruncated
		}
	}
	return buf, nil
}

// String reads a UTF-8 string via lp_string (lp_bytes interpreted as text).
func (r *Reader) String() (string, error) {
	b, err := r.Bytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Param is one (key, value) pair of a MOQT parameter list. Value always
// carries the raw lp_bytes payload; callers interpret it according to key.
type Param struct {
	Key   uint64
	Value []byte
}

// Params is an ordered parameter list, as produced by ReadParams.
type Params []Param

// Get returns the value of the first parameter with the given key.
func (p Params) Get(key uint64) ([]byte, bool) {
	for _, kv := range p {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return nil, false
}

// Params reads a count-prefixed list of (key: varint, value: lp_bytes) pairs.
func (r *Reader) Params() (Params, error) {
	count, err := r.Uvarint()
	if err != nil {
		return nil, &ParseError{Field: "param_count", Err: err}
	}
	out := make(Params, 0, count)
	for i := uint64(0); i < count; i++ {
		key, err := r.Uvarint()
		if err != nil {
			return nil, &ParseError{Field: "param_key", Err: err}
		}
		val, err := r.Bytes()
		if err != nil {
			return nil, &ParseError{Field: "param_value", Err: err}
		}
		out = append(out, Param{Key: key, Value: val})
	}
	return out, nil
}

// ZigzagEncode maps a signed int64 onto the unsigned wire encoding used by
// varint fields, so that small-magnitude negative values still encode in
// the shortest width.
func ZigzagEncode(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

// ZigzagDecode is the inverse of ZigzagEncode.
func ZigzagDecode(u uint64) int64 {
	return int64(u>>1) ^ -int64(u&1)
}

// AppendUvarint appends v to buf in the shortest legal QUIC varint width.
func AppendUvarint(buf []byte, v uint64) []byte {
	return quicvarint.Append(buf, v)
}

// AppendVarint zigzag-encodes v and appends it as a QUIC varint.
func AppendVarint(buf []byte, v int64) []byte {
	return quicvarint.Append(buf, ZigzagEncode(v))
}

// AppendBytes appends data as lp_bytes: a varint length followed by the
// raw bytes.
func AppendBytes(buf []byte, data []byte) []byte {
	buf = AppendUvarint(buf, uint64(len(data)))
	return append(buf, data...)
}

// AppendString appends s as lp_string (its UTF-8 bytes via lp_bytes).
func AppendString(buf []byte, s string) []byte {
	return AppendBytes(buf, []byte(s))
}

// AppendParams appends a count-prefixed parameter list.
func AppendParams(buf []byte, params Params) []byte {
	buf = AppendUvarint(buf, uint64(len(params)))
	for _, kv := range params {
		buf = AppendUvarint(buf, kv.Key)
		buf = AppendBytes(buf, kv.Value)
	}
	return buf
}
