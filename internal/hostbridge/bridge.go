// Package hostbridge drives a hostmsg.Bus over a JSON-over-WebSocket
// control socket, for a host process that is not itself written in Go.
// The core's event surface (spec §6) is transport-agnostic — this is the
// one concrete wire format this module ships, grounded on the gorilla/
// websocket control-plane pattern used by abrahamVado-DriftPursuit's
// go-broker and vinq1911-nonchalant's wsflv handler.
package hostbridge

import (
	"context"
	"log/slog"

	"github.com/gorilla/websocket"

	"github.com/zsiec/moqtcore/internal/hostmsg"
)

// Bridge relays one WebSocket connection's JSON messages onto a Bus's
// In channel, and a Bus's Out channel back onto the connection.
type Bridge struct {
	conn *websocket.Conn
	bus  *hostmsg.Bus
	log  *slog.Logger
}

// New wraps an already-upgraded WebSocket connection.
func New(conn *websocket.Conn, bus *hostmsg.Bus, log *slog.Logger) *Bridge {
	if log == nil {
		log = slog.Default()
	}
	return &Bridge{conn: conn, bus: bus, log: log.With("component", "hostbridge")}
}

// Run pumps both directions until ctx is cancelled or the connection
// closes. It returns once both pumps have stopped.
func (b *Bridge) Run(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		b.writeLoop(ctx)
	}()

	err := b.readLoop(ctx)
	<-done
	return err
}

// readLoop decodes inbound JSON frames and forwards them to bus.In.
func (b *Bridge) readLoop(ctx context.Context) error {
	defer close(b.bus.In)
	for {
		var e envelope
		if err := b.conn.ReadJSON(&e); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		in, err := decodeIn(e)
		if err != nil {
			b.log.Warn("bad host message", "error", err)
			continue
		}
		select {
		case b.bus.In <- in:
		case <-ctx.Done():
			return nil
		}
	}
}

// writeLoop encodes bus.Out events as JSON frames on the connection.
func (b *Bridge) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case out, ok := <-b.bus.Out:
			if !ok {
				return
			}
			e, err := encodeOut(out)
			if err != nil {
				b.log.Warn("unencodable engine event", "error", err)
				continue
			}
			if err := b.conn.WriteJSON(e); err != nil {
				b.log.Debug("write failed, closing bridge", "error", err)
				return
			}
		}
	}
}
