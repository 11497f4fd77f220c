package session

import "errors"

// Error kinds from spec §7. Callers distinguish failure modes with
// errors.Is/errors.As; HandshakeError additionally carries a stack trace
// via github.com/pkg/errors, since a handshake failure is the one place a
// wire-format mismatch against a remote peer benefits from knowing exactly
// which call site produced it.
var (
	// ErrConfig indicates a malformed or empty track set; the handshakes
	// return it when track.Set.Validate fails. The transport address is not
	// checked here. The handshake aborts; state remains Instantiated.
	ErrConfig = errors.New("session: config error")

	// ErrHandshake indicates an unsupported peer role, an unexpected tag, a
	// namespace mismatch on ANNOUNCE_OK, or a name mismatch on
	// SUBSCRIBE_RESPONSE. The handshake has no timeout of its own, and it
	// does not close the control stream or the transport on failure.
	ErrHandshake = errors.New("session: handshake error")

	// ErrProtocol indicates a malformed frame, unknown tag, or truncated
	// envelope. Fatal on the control stream; confined to one object stream
	// elsewhere.
	ErrProtocol = errors.New("session: protocol error")

	// ErrAuth indicates a SUBSCRIBE_REQUEST whose AUTH_INFO does not match
	// the configured track. No state change; no wire reply.
	ErrAuth = errors.New("session: auth error")

	// ErrStopped indicates the session already transitioned to Stopped.
	ErrStopped = errors.New("session: stopped")

	// ErrWrongState indicates a method was called in a state that does
	// not permit it (e.g. a second Instantiate call).
	ErrWrongState = errors.New("session: wrong state")
)
