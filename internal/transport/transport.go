// Package transport abstracts the QUIC session handed to the core (spec
// §6 "Transport"). The core never dials, accepts, or verifies a
// connection itself — it is handed a live, already-verified Transport and
// only opens/accepts streams on it. See internal/transport/quic.go for the
// quic-go-backed implementation.
package transport

import (
	"context"
	"io"
)

// Stream is a bidirectional byte stream, used for the control stream.
type Stream interface {
	io.Reader
	io.Writer
	io.Closer
}

// SendStream is the write side of a unidirectional object stream.
type SendStream interface {
	io.Writer
	io.Closer
}

// ReceiveStream is the read side of a unidirectional object stream.
type ReceiveStream interface {
	io.Reader
}

// Transport is the QUIC session surface the engine needs: a control
// stream, object streams with a priority hint, and lifecycle signals.
type Transport interface {
	// OpenControlStream opens the single bidirectional stream used for
	// the SETUP/ANNOUNCE/SUBSCRIBE handshake and all control traffic.
	OpenControlStream(ctx context.Context) (Stream, error)

	// OpenUniStream opens a unidirectional stream for one object,
	// hinting the transport's scheduler with sendOrder (spec §4.E
	// "Dispatch": higher sendOrder wins).
	OpenUniStream(ctx context.Context, sendOrder uint64) (SendStream, error)

	// AcceptUniStream blocks until the peer opens a new unidirectional
	// object stream, or ctx is done.
	AcceptUniStream(ctx context.Context) (ReceiveStream, error)

	// Ready is closed once the session handshake at the transport layer
	// has completed and streams may be opened.
	Ready() <-chan struct{}

	// Closed is closed when the session has ended, for any reason.
	Closed() <-chan struct{}

	// Close tears down the session. err, if non-nil, is surfaced to the
	// peer as the close reason where the transport supports one.
	Close(err error) error
}
