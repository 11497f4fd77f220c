// Package session implements the MOQT session state machine and the
// SETUP/ANNOUNCE/SUBSCRIBE handshake driven over a dedicated control
// stream (spec §3 "Session state", §4.D).
package session

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/zsiec/moqtcore/internal/wire"
)

// State is the session lifecycle (spec §3): Created → Instantiated →
// Running → Stopped. Stopped is terminal. On stop each engine emits a
// single "stopped" info event and then stops reading host messages; later
// messages get no event of their own.
type State int

const (
	Created State = iota
	Instantiated
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Instantiated:
		return "instantiated"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Version is the control-stream protocol version advertised in SETUP.
const Version uint64 = 1

// Session owns the control stream and the lifecycle state machine shared
// by the publisher and subscriber engines. It does not know about object
// streams, tracks, or chunk dispatch — those are the engines' job.
type Session struct {
	log     *slog.Logger
	control io.ReadWriter
	rd      *wire.Reader

	mu    sync.Mutex
	state State

	writeMu sync.Mutex
}

// New creates a Session bound to a bidirectional control stream, starting
// in the Created state.
func New(control io.ReadWriter, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	return &Session{
		log:     log.With("component", "session"),
		control: control,
		rd:      wire.NewReader(control),
		state:   Created,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Instantiate moves Created → Instantiated (spec §3). Both engines call it
// at the start of Run; no host message drives this transition.
func (s *Session) Instantiate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Created {
		return fmt.Errorf("%w: Instantiate from %s", ErrWrongState, s.state)
	}
	s.state = Instantiated
	return nil
}

// markRunning moves Instantiated → Running on handshake success.
func (s *Session) markRunning() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Instantiated {
		return fmt.Errorf("%w: markRunning from %s", ErrWrongState, s.state)
	}
	s.state = Running
	return nil
}

// Stop transitions to Stopped. Idempotent: stopping an already-stopped
// session is not an error (spec §5 cancellation).
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Stopped
}

// IsRunning reports whether the session is in the Running state.
func (s *Session) IsRunning() bool {
	return s.State() == Running
}

// IsStopped reports whether the session is in the terminal Stopped state.
func (s *Session) IsStopped() bool {
	return s.State() == Stopped
}

// Reader returns the shared wire.Reader used to decode control messages.
// There is exactly one reader per session, since control messages are not
// individually length-prefixed and must be parsed off one continuous
// stream of bytes (spec §4.A).
func (s *Session) Reader() *wire.Reader {
	return s.rd
}

// WriteLocked serializes fn's writes to the control stream so that two
// goroutines (e.g. the handshake and the subscribe-accept loop) never
// interleave partial messages (mirrors the teacher's controlMu pattern).
func (s *Session) WriteLocked(fn func(io.Writer) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return fn(s.control)
}
