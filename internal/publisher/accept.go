package publisher

import (
	"context"
	"io"

	"github.com/zsiec/moqtcore/internal/hostmsg"
	"github.com/zsiec/moqtcore/internal/wire"
)

// acceptSubscribeLoop continuously reads SUBSCRIBE_REQUESTs on the
// control stream after the handshake (spec §4.D "After the handshake,
// the publisher continuously reads SUBSCRIBE_REQUESTs..."). It exits
// cleanly once the session is Stopped; an error observed at that point is
// the expected shutdown signal, not a failure (spec §5 "subscribe-accept
// loop observes Stopped at each iteration").
func (e *Engine) acceptSubscribeLoop(ctx context.Context) error {
	r := e.sess.Reader()
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		tag, err := wire.ReadTag(r)
		if err != nil {
			if e.sess.IsStopped() || err == io.EOF {
				return nil
			}
			e.bus.Emit(hostmsg.Error{Err: err})
			return err
		}
		if tag != wire.TagSubscribeRequest {
			e.log.Warn("unexpected control tag in subscribe-accept loop", "tag", tag)
			continue
		}

		req, err := wire.ParseSubscribeRequest(r)
		if err != nil {
			if e.sess.IsStopped() {
				return nil
			}
			e.bus.Emit(hostmsg.Error{Err: err})
			return err
		}
		e.handleSubscribeRequest(req)
	}
}

// handleSubscribeRequest implements spec §4.D's auth gate: on a matching
// (namespace, name, authInfo), increment numSubscribers and reply
// SUBSCRIBE_RESPONSE; on mismatch, log and ignore without a wire reply
// (spec §7 AuthError, §9 "no SUBSCRIBE_ERROR is currently emitted").
func (e *Engine) handleSubscribeRequest(req wire.SubscribeRequest) {
	kind, cfg, ok := e.tracks.ByNamespaceName(req.Namespace, req.TrackName)
	if !ok {
		e.log.Warn("SUBSCRIBE_REQUEST for unknown track", "namespace", req.Namespace, "name", req.TrackName)
		return
	}

	authInfo, _ := req.Params.Get(wire.ParamAuthInfo)
	if string(authInfo) != cfg.AuthInfo {
		e.bus.Emit(hostmsg.Error{Err: authMismatchError(req.Namespace, req.TrackName)})
		return
	}

	cfg.NumSubscribers.Add(1)

	resp := wire.SubscribeResponse{
		Namespace: req.Namespace,
		TrackName: req.TrackName,
		TrackID:   cfg.ID,
		Expires:   0,
	}
	if err := e.sess.WriteLocked(func(w io.Writer) error {
		return wire.WriteSubscribeResponse(w, resp)
	}); err != nil {
		e.log.Warn("write SUBSCRIBE_RESPONSE failed", "track", kind, "error", err)
	}
}
