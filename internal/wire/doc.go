// Package wire implements the MOQT wire primitives shared by the control
// stream and object streams: QUIC variable-length integers, length-prefixed
// byte strings, parameter lists, and the control-message and object-header
// framing built on top of them.
//
// This package contains no session or engine logic; those live in
// [github.com/zsiec/moqtcore/internal/session], [.../internal/publisher]
// and [.../internal/subscriber].
package wire
