// Package subscriber implements the subscriber engine (spec §4.F): for
// each incoming unidirectional object stream, parses the header,
// resolves the track, decodes the LOC/RAW envelope, and emits a chunk or
// data event to the host.
package subscriber

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/zsiec/moqtcore/internal/hostmsg"
	"github.com/zsiec/moqtcore/internal/loc"
	"github.com/zsiec/moqtcore/internal/raw"
	"github.com/zsiec/moqtcore/internal/session"
	"github.com/zsiec/moqtcore/internal/track"
	"github.com/zsiec/moqtcore/internal/transport"
	"github.com/zsiec/moqtcore/internal/wire"
)

// Engine owns one subscriber session: the configured track table (keyed
// by the publisher-assigned track ID once the handshake completes) and
// the incoming-stream accept loop.
type Engine struct {
	log    *slog.Logger
	sess   *session.Session
	tr     transport.Transport
	tracks track.Set
	bus    *hostmsg.Bus

	byID   map[uint64]track.Kind
	byIDMu sync.RWMutex

	isSendingStats bool

	wg sync.WaitGroup
}

// statsInterval is how often downloaderstats events are emitted, matching
// the teacher's per-viewer writeStatsLoop cadence.
const statsInterval = 1 * time.Second

// New constructs a subscriber Engine. isSendingStats mirrors the host's
// downloaderConfig.isSendingStats field (spec §6): when true, the engine
// emits a downloaderstats event every second.
func New(sess *session.Session, tr transport.Transport, tracks track.Set, bus *hostmsg.Bus, isSendingStats bool, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		log:            log.With("component", "subscriber"),
		sess:           sess,
		tr:             tr,
		tracks:         tracks,
		bus:            bus,
		byID:           make(map[uint64]track.Kind),
		isSendingStats: isSendingStats,
	}
}

// Run performs the handshake, then concurrently pumps the incoming
// unidirectional stream iterator and the host's stop signal.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.sess.Instantiate(); err != nil {
		return err
	}
	if err := e.sess.SubscriberHandshake(e.tracks); err != nil {
		e.bus.Emit(hostmsg.Error{Err: err})
		return err
	}
	e.indexByID()
	e.bus.Emit(hostmsg.Info{Message: "subscriber running"})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	streamErrCh := make(chan error, 1)
	go func() { streamErrCh <- e.acceptStreamLoop(ctx) }()

	if e.isSendingStats {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.statsLoop(ctx)
		}()
	}

waitForStop:
	for {
		select {
		case <-ctx.Done():
			break waitForStop
		case msg, ok := <-e.bus.In:
			if !ok {
				break waitForStop
			}
			if _, isStop := msg.(hostmsg.Stop); isStop {
				break waitForStop
			}
			e.log.Warn("unexpected message on subscriber bus", "type", fmt.Sprintf("%T", msg))
		case stopErr := <-streamErrCh:
			cancel()
			e.wg.Wait()
			return stopErr
		}
	}

	e.sess.Stop()
	cancel()
	e.wg.Wait()
	if err := e.tr.Close(nil); err != nil {
		e.log.Debug("transport close", "error", err)
	}
	<-streamErrCh
	e.bus.Emit(hostmsg.Info{Message: "stopped"})
	return nil
}

// statsLoop emits a downloaderstats event every statsInterval until ctx is
// done (spec §6 `downloaderstats`).
func (e *Engine) statsLoop(ctx context.Context) {
	t := time.NewTicker(statsInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			e.bus.Emit(hostmsg.DownloaderStats{ClkMs: time.Now().UnixMilli()})
		}
	}
}

// indexByID builds the trackId → kind lookup used by the stream loop,
// from the ids the handshake just assigned.
func (e *Engine) indexByID() {
	e.byIDMu.Lock()
	defer e.byIDMu.Unlock()
	for kind, cfg := range e.tracks {
		e.byID[cfg.ID] = kind
	}
}

func (e *Engine) resolveTrack(id uint64) (track.Kind, *track.Config, bool) {
	e.byIDMu.RLock()
	kind, ok := e.byID[id]
	e.byIDMu.RUnlock()
	if !ok {
		return "", nil, false
	}
	cfg := e.tracks[kind]
	return kind, cfg, true
}

// acceptStreamLoop accepts incoming unidirectional object streams until
// ctx is done or the transport closes.
func (e *Engine) acceptStreamLoop(ctx context.Context) error {
	for {
		s, err := e.tr.AcceptUniStream(ctx)
		if err != nil {
			if ctx.Err() != nil || e.sess.IsStopped() {
				return nil
			}
			return err
		}
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.handleStream(s)
		}()
	}
}

// handleStream implements spec §4.F: parse the object header, resolve
// the track, decode the envelope, and emit the matching event. Any
// failure discards this stream only and reports dropped stream.
func (e *Engine) handleStream(s transport.ReceiveStream) {
	rd := wire.NewReader(s)
	hdr, err := wire.ReadObjectHeader(rd)
	if err != nil {
		e.bus.Emit(hostmsg.DroppedStream{Reason: err.Error()})
		return
	}

	kind, _, ok := e.resolveTrack(hdr.TrackID)
	if !ok {
		e.bus.Emit(hostmsg.DroppedStream{Reason: fmt.Sprintf("unknown trackId %d", hdr.TrackID)})
		return
	}

	payload, err := io.ReadAll(rd)
	if err != nil {
		e.bus.Emit(hostmsg.DroppedStream{Reason: err.Error()})
		return
	}

	if track.PackagingFor(kind) {
		e.handleRaw(payload)
		return
	}
	e.handleLOC(kind, payload)
}

func (e *Engine) handleRaw(payload []byte) {
	env, err := raw.DecodeBytes(payload)
	if err != nil {
		e.bus.Emit(hostmsg.DroppedStream{Reason: err.Error()})
		return
	}
	e.bus.Emit(hostmsg.Data{
		SeqID:     env.SeqID,
		ChunkType: env.ChunkType,
		Data:      env.Data,
	})
}

func (e *Engine) handleLOC(kind track.Kind, payload []byte) {
	env, err := loc.DecodeBytes(payload)
	if err != nil {
		e.bus.Emit(hostmsg.DroppedStream{Reason: err.Error()})
		return
	}

	chunk := hostmsg.EncodedChunk{
		Timestamp:    env.Timestamp,
		ChunkType:    string(env.ChunkType),
		Data:         env.Data,
		Duration:     env.Duration,
		SeqID:        env.SeqID,
		CaptureClkMs: env.FirstFrameClkMs,
		Metadata:     env.Metadata,
	}

	switch kind {
	case track.KindAudio:
		e.bus.Emit(hostmsg.AudioChunk{Chunk: chunk})
	case track.KindVideo:
		e.bus.Emit(hostmsg.VideoChunk{Chunk: chunk})
	default:
		e.bus.Emit(hostmsg.DroppedStream{Reason: fmt.Sprintf("LOC packaging on non-media track %q", kind)})
		return
	}

	e.probeLatency(env)
}

// probeLatency implements spec §4.F's "intentional" loose threshold:
// duration is microseconds, but the comparison treats duration/1000 as a
// millisecond bound, making it 1000x looser than it reads. Preserved
// verbatim per spec §9.
func (e *Engine) probeLatency(env loc.Envelope) {
	elapsedMs := time.Since(captureTime(env)).Milliseconds()
	thresholdMs := int64(env.Duration / 1000)
	if elapsedMs > thresholdMs {
		e.bus.Emit(hostmsg.Warning{Message: fmt.Sprintf("object seq=%d elapsed=%dms threshold=%dms", env.SeqID, elapsedMs, thresholdMs)})
		return
	}
	e.bus.Emit(hostmsg.Debug{Message: fmt.Sprintf("object seq=%d elapsed=%dms threshold=%dms", env.SeqID, elapsedMs, thresholdMs)})
}

// captureTime reconstructs the wall-clock capture instant from
// firstFrameClkms, the only wall-clock reference the envelope carries.
func captureTime(env loc.Envelope) time.Time {
	return time.UnixMilli(env.FirstFrameClkMs)
}
