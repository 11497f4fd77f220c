package wire

import "io"

// MOQT control message tags (spec §4.A). Each message on the control
// stream is a tag followed by its fields in declared order — there is no
// overall message-length prefix, unlike the per-field lp_bytes framing.
const (
	TagSubscribeRequest  uint64 = 0x01
	TagSubscribeResponse uint64 = 0x02
	TagSubscribeError    uint64 = 0x03
	TagAnnounce          uint64 = 0x06
	TagAnnounceOK        uint64 = 0x07
	TagSetup             uint64 = 0x40
	TagSetupOK           uint64 = 0x41
)

// Parameter keys in use on the control stream.
const (
	ParamRole     uint64 = 0x00
	ParamAuthInfo uint64 = 0x02
)

// ROLE parameter values.
const (
	RolePublisher  byte = 1
	RoleSubscriber byte = 2
	RoleBoth       byte = 3
)

// SubscribeRequest is tag 0x01.
type SubscribeRequest struct {
	Namespace string
	TrackName string
	Params    Params
}

// SubscribeResponse is tag 0x02, the successful reply to SubscribeRequest.
type SubscribeResponse struct {
	Namespace string
	TrackName string
	TrackID   uint64
	Expires   uint64
}

// SubscribeError is tag 0x03. It is parsed but never emitted by this core
// (spec §4.D / §9 open question: auth mismatches are logged, not replied to).
type SubscribeError struct {
	Namespace string
	TrackName string
	Reason    string
}

// Announce is tag 0x06.
type Announce struct {
	Namespace string
	Params    Params
}

// AnnounceOK is tag 0x07.
type AnnounceOK struct {
	Namespace string
}

// Setup is tag 0x40, sent by the side opening the handshake.
type Setup struct {
	Version uint64
	Params  Params
}

// SetupOK is tag 0x41, the reply to Setup.
type SetupOK struct {
	Version uint64
	Params  Params
}

// ReadTag reads the message-type varint that begins every control message.
func ReadTag(r *Reader) (uint64, error) {
	tag, err := r.Uvarint()
	if err != nil {
		return 0, &ParseError{Field: "tag", Err: err}
	}
	return tag, nil
}

// ParseSubscribeRequest reads a SUBSCRIBE_REQUEST body (tag already consumed).
func ParseSubscribeRequest(r *Reader) (SubscribeRequest, error) {
	var m SubscribeRequest
	var err error
	if m.Namespace, err = r.String(); err != nil {
		return m, &ParseError{Field: "namespace", Err: err}
	}
	if m.TrackName, err = r.String(); err != nil {
		return m, &ParseError{Field: "trackName", Err: err}
	}
	if m.Params, err = r.Params(); err != nil {
		return m, err
	}
	return m, nil
}

// WriteSubscribeRequest serializes and writes a SUBSCRIBE_REQUEST in one call.
func WriteSubscribeRequest(w io.Writer, m SubscribeRequest) error {
	buf := AppendUvarint(nil, TagSubscribeRequest)
	buf = AppendString(buf, m.Namespace)
	buf = AppendString(buf, m.TrackName)
	buf = AppendParams(buf, m.Params)
	_, err := w.Write(buf)
	return err
}

// ParseSubscribeResponse reads a SUBSCRIBE_RESPONSE body (tag already consumed).
func ParseSubscribeResponse(r *Reader) (SubscribeResponse, error) {
	var m SubscribeResponse
	var err error
	if m.Namespace, err = r.String(); err != nil {
		return m, &ParseError{Field: "namespace", Err: err}
	}
	if m.TrackName, err = r.String(); err != nil {
		return m, &ParseError{Field: "trackName", Err: err}
	}
	if m.TrackID, err = r.Uvarint(); err != nil {
		return m, &ParseError{Field: "trackId", Err: err}
	}
	if m.Expires, err = r.Uvarint(); err != nil {
		return m, &ParseError{Field: "expires", Err: err}
	}
	return m, nil
}

// WriteSubscribeResponse serializes and writes a SUBSCRIBE_RESPONSE in one call.
func WriteSubscribeResponse(w io.Writer, m SubscribeResponse) error {
	buf := AppendUvarint(nil, TagSubscribeResponse)
	buf = AppendString(buf, m.Namespace)
	buf = AppendString(buf, m.TrackName)
	buf = AppendUvarint(buf, m.TrackID)
	buf = AppendUvarint(buf, m.Expires)
	_, err := w.Write(buf)
	return err
}

// ParseSubscribeError reads a SUBSCRIBE_ERROR body (tag already consumed).
// This core never emits SUBSCRIBE_ERROR itself, but parses it defensively
// in case a future peer sends one.
func ParseSubscribeError(r *Reader) (SubscribeError, error) {
	var m SubscribeError
	var err error
	if m.Namespace, err = r.String(); err != nil {
		return m, &ParseError{Field: "namespace", Err: err}
	}
	if m.TrackName, err = r.String(); err != nil {
		return m, &ParseError{Field: "trackName", Err: err}
	}
	if m.Reason, err = r.String(); err != nil {
		return m, &ParseError{Field: "reason", Err: err}
	}
	return m, nil
}

// WriteSubscribeError serializes and writes a SUBSCRIBE_ERROR in one call.
func WriteSubscribeError(w io.Writer, m SubscribeError) error {
	buf := AppendUvarint(nil, TagSubscribeError)
	buf = AppendString(buf, m.Namespace)
	buf = AppendString(buf, m.TrackName)
	buf = AppendString(buf, m.Reason)
	_, err := w.Write(buf)
	return err
}

// ParseAnnounce reads an ANNOUNCE body (tag already consumed).
func ParseAnnounce(r *Reader) (Announce, error) {
	var m Announce
	var err error
	if m.Namespace, err = r.String(); err != nil {
		return m, &ParseError{Field: "namespace", Err: err}
	}
	if m.Params, err = r.Params(); err != nil {
		return m, err
	}
	return m, nil
}

// WriteAnnounce serializes and writes an ANNOUNCE in one call.
func WriteAnnounce(w io.Writer, m Announce) error {
	buf := AppendUvarint(nil, TagAnnounce)
	buf = AppendString(buf, m.Namespace)
	buf = AppendParams(buf, m.Params)
	_, err := w.Write(buf)
	return err
}

// ParseAnnounceOK reads an ANNOUNCE_OK body (tag already consumed).
func ParseAnnounceOK(r *Reader) (AnnounceOK, error) {
	var m AnnounceOK
	var err error
	if m.Namespace, err = r.String(); err != nil {
		return m, &ParseError{Field: "namespace", Err: err}
	}
	return m, nil
}

// WriteAnnounceOK serializes and writes an ANNOUNCE_OK in one call.
func WriteAnnounceOK(w io.Writer, m AnnounceOK) error {
	buf := AppendUvarint(nil, TagAnnounceOK)
	buf = AppendString(buf, m.Namespace)
	_, err := w.Write(buf)
	return err
}

// ParseSetup reads a SETUP body (tag already consumed).
func ParseSetup(r *Reader) (Setup, error) {
	var m Setup
	var err error
	if m.Version, err = r.Uvarint(); err != nil {
		return m, &ParseError{Field: "version", Err: err}
	}
	if m.Params, err = r.Params(); err != nil {
		return m, err
	}
	return m, nil
}

// WriteSetup serializes and writes a SETUP in one call.
func WriteSetup(w io.Writer, m Setup) error {
	buf := AppendUvarint(nil, TagSetup)
	buf = AppendUvarint(buf, m.Version)
	buf = AppendParams(buf, m.Params)
	_, err := w.Write(buf)
	return err
}

// ParseSetupOK reads a SETUP_OK body (tag already consumed).
func ParseSetupOK(r *Reader) (SetupOK, error) {
	var m SetupOK
	var err error
	if m.Version, err = r.Uvarint(); err != nil {
		return m, &ParseError{Field: "version", Err: err}
	}
	if m.Params, err = r.Params(); err != nil {
		return m, err
	}
	return m, nil
}

// WriteSetupOK serializes and writes a SETUP_OK in one call.
func WriteSetupOK(w io.Writer, m SetupOK) error {
	buf := AppendUvarint(nil, TagSetupOK)
	buf = AppendUvarint(buf, m.Version)
	buf = AppendParams(buf, m.Params)
	_, err := w.Write(buf)
	return err
}

// RoleParam builds a ROLE parameter carrying a single role byte.
func RoleParam(role byte) Param {
	return Param{Key: ParamRole, Value: []byte{role}}
}

// AuthInfoParam builds an AUTH_INFO parameter carrying a length-prefixed string.
func AuthInfoParam(authInfo string) Param {
	return Param{Key: ParamAuthInfo, Value: []byte(authInfo)}
}
