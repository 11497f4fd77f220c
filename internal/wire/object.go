package wire

import "io"

// ObjectHeader is the fixed-field header written at the start of every
// per-object unidirectional QUIC stream (spec §4.A). The payload follows
// immediately and runs to the end of the stream — there is no trailing
// delimiter or length prefix on the payload itself.
type ObjectHeader struct {
	TrackID   uint64
	GroupSeq  uint64
	ObjSeq    uint64
	SendOrder uint64
}

// WriteObjectHeader serializes h as a single Write call, so the header
// cannot be torn across partial writes on the underlying stream.
func WriteObjectHeader(w io.Writer, h ObjectHeader) error {
	buf := AppendUvarint(nil, h.TrackID)
	buf = AppendUvarint(buf, h.GroupSeq)
	buf = AppendUvarint(buf, h.ObjSeq)
	buf = AppendUvarint(buf, h.SendOrder)
	_, err := w.Write(buf)
	return err
}

// ReadObjectHeader reads an object-stream header off r. The caller is
// responsible for reading the remaining payload bytes (e.g. via io.ReadAll
// on the same underlying stream) once the header has been consumed.
func ReadObjectHeader(r *Reader) (ObjectHeader, error) {
	var h ObjectHeader
	var err error
	if h.TrackID, err = r.Uvarint(); err != nil {
		return h, &ParseError{Field: "trackId", Err: err}
	}
	if h.GroupSeq, err = r.Uvarint(); err != nil {
		return h, &ParseError{Field: "groupSeq", Err: err}
	}
	if h.ObjSeq, err = r.Uvarint(); err != nil {
		return h, &ParseError{Field: "objSeq", Err: err}
	}
	if h.SendOrder, err = r.Uvarint(); err != nil {
		return h, &ParseError{Field: "sendOrder", Err: err}
	}
	return h, nil
}
