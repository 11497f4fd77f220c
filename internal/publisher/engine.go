// Package publisher implements the publisher engine (spec §4.E): accepts
// chunks from the host, packages and dispatches them onto per-object
// unidirectional QUIC streams with a computed priority, and answers
// SUBSCRIBE_REQUESTs on the control stream after the handshake.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/zsiec/moqtcore/internal/hostmsg"
	"github.com/zsiec/moqtcore/internal/loc"
	"github.com/zsiec/moqtcore/internal/raw"
	"github.com/zsiec/moqtcore/internal/session"
	"github.com/zsiec/moqtcore/internal/track"
	"github.com/zsiec/moqtcore/internal/transport"
	"github.com/zsiec/moqtcore/internal/wire"
)

// statsInterval is how often sendstats events are emitted, matching the
// teacher's per-viewer writeStatsLoop cadence.
const statsInterval = 1 * time.Second

// Engine owns one publisher session: the track table, per-track
// group/object sequence state, and the per-track in-flight bound. It is
// not safe for concurrent use from more than the goroutines Run itself
// starts (spec §5 "Shared resources").
type Engine struct {
	log    *slog.Logger
	sess   *session.Session
	tr     transport.Transport
	tracks track.Set
	bus    *hostmsg.Bus

	stateMu sync.Mutex
	state   map[track.Kind]*track.State

	sems      map[track.Kind]*semaphore.Weighted
	inFlightN map[track.Kind]*atomic.Int64

	isSendingStats bool

	wg sync.WaitGroup
}

// New constructs a publisher Engine. tracks must already have passed
// track.Set.Validate, and every entry must carry a non-zero MaxInFlight
// (the publisher's in-flight bound per spec §3). isSendingStats mirrors
// the muxerSenderConfig.isSendingStats field of the host's init message
// (spec §6): when true, the engine emits a sendstats event every second.
func New(sess *session.Session, tr transport.Transport, tracks track.Set, bus *hostmsg.Bus, isSendingStats bool, log *slog.Logger) (*Engine, error) {
	if log == nil {
		log = slog.Default()
	}
	assignTrackIDs(tracks)

	sems := make(map[track.Kind]*semaphore.Weighted, len(tracks))
	inFlightN := make(map[track.Kind]*atomic.Int64, len(tracks))
	for kind, cfg := range tracks {
		if cfg.MaxInFlight == 0 {
			return nil, fmt.Errorf("publisher: track %q: maxInFlight must be > 0", kind)
		}
		sems[kind] = semaphore.NewWeighted(int64(cfg.MaxInFlight))
		inFlightN[kind] = &atomic.Int64{}
	}
	return &Engine{
		log:            log.With("component", "publisher"),
		sess:           sess,
		tr:             tr,
		tracks:         tracks,
		bus:            bus,
		state:          make(map[track.Kind]*track.State),
		sems:           sems,
		inFlightN:      inFlightN,
		isSendingStats: isSendingStats,
	}, nil
}

// assignTrackIDs fills in a track id for every config still at its
// zero-value, in deterministic kind order (spec §3: "id: u64, assigned
// by publisher, echoed by subscribe-response"). A track configured with
// an explicit non-zero id (spec §6 `moqTracks[kind].id?`) keeps it;
// sequential assignment only fills the gaps, skipping ids already
// claimed so the two schemes never collide.
func assignTrackIDs(tracks track.Set) {
	claimed := make(map[uint64]bool, len(tracks))
	for _, cfg := range tracks {
		if cfg.ID != 0 {
			claimed[cfg.ID] = true
		}
	}
	next := uint64(0)
	for _, kind := range track.OrderedKinds(tracks) {
		cfg := tracks[kind]
		if cfg.ID != 0 {
			continue
		}
		for claimed[next] {
			next++
		}
		cfg.ID = next
		claimed[next] = true
	}
}

// Run drives the engine until ctx is cancelled or a stop message arrives
// on the bus: it performs the handshake, then concurrently pumps the
// chunk-ingress loop and the subscribe-accept loop (spec §4.D, §4.E).
func (e *Engine) Run(ctx context.Context) error {
	if err := e.sess.Instantiate(); err != nil {
		return err
	}
	if err := e.sess.PublisherHandshake(e.tracks); err != nil {
		e.bus.Emit(hostmsg.Error{Err: err})
		return err
	}
	e.bus.Emit(hostmsg.Info{Message: "publisher running"})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	acceptErrCh := make(chan error, 1)
	go func() { acceptErrCh <- e.acceptSubscribeLoop(ctx) }()

	statsDone := make(chan struct{})
	if e.isSendingStats {
		go func() {
			defer close(statsDone)
			e.statsLoop(ctx)
		}()
	} else {
		close(statsDone)
	}

	chunkErr := e.chunkLoop(ctx)
	cancel()
	<-statsDone
	e.wg.Wait()

	if acceptErr := <-acceptErrCh; acceptErr != nil && chunkErr == nil {
		chunkErr = acceptErr
	}
	return chunkErr
}

// chunkLoop reads host messages off the bus until Stop or ctx is done.
func (e *Engine) chunkLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-e.bus.In:
			if !ok {
				e.stop()
				return nil
			}
			switch m := msg.(type) {
			case hostmsg.Stop:
				e.stop()
				return nil
			case hostmsg.Chunk:
				e.handleChunk(ctx, m)
			default:
				e.log.Warn("unexpected message on publisher bus", "type", fmt.Sprintf("%T", m))
			}
		}
	}
}

// statsLoop emits a sendstats event every statsInterval until ctx is done,
// reporting the current in-flight count per track (spec §6 `sendstats`).
func (e *Engine) statsLoop(ctx context.Context) {
	t := time.NewTicker(statsInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			inFlight := make(map[track.Kind]int, len(e.inFlightN))
			for kind, n := range e.inFlightN {
				inFlight[kind] = int(n.Load())
			}
			e.bus.Emit(hostmsg.SendStats{ClkMs: time.Now().UnixMilli(), InFlightReq: inFlight})
		}
	}
}

// stop implements spec §5 "Cancellation": transition to Stopped, await
// all in-flight close futures, then close the transport.
func (e *Engine) stop() {
	e.sess.Stop()
	e.wg.Wait()
	if err := e.tr.Close(nil); err != nil {
		e.log.Debug("transport close", "error", err)
	}
	e.bus.Emit(hostmsg.Info{Message: "stopped"})
}

// handleChunk implements the publisher accept path (spec §4.E).
func (e *Engine) handleChunk(ctx context.Context, m hostmsg.Chunk) {
	if !e.sess.IsRunning() {
		e.bus.Emit(hostmsg.Dropped{Track: m.Track, Reason: "transport not open"})
		return
	}

	cfg, ok := e.tracks[m.Track]
	if !ok {
		e.bus.Emit(hostmsg.Error{Err: fmt.Errorf("publisher: chunk for unconfigured track %q", m.Track)})
		return
	}

	if cfg.NumSubscribers.Load() == 0 {
		e.bus.Emit(hostmsg.Dropped{Track: m.Track, Reason: "no subscribers"})
		return
	}

	sem := e.sems[m.Track]
	if !sem.TryAcquire(1) {
		e.bus.Emit(hostmsg.Dropped{Track: m.Track, Reason: "too many inflight"})
		return
	}
	n := e.inFlightN[m.Track]
	n.Add(1)

	groupSeq, objSeq, ok := e.assign(m.Track, m.ChunkType == "key")
	if !ok {
		sem.Release(1)
		n.Add(-1)
		e.bus.Emit(hostmsg.Dropped{Track: m.Track, Reason: "first object must be key"})
		return
	}

	payload, err := e.packagePayload(m)
	if err != nil {
		sem.Release(1)
		n.Add(-1)
		e.bus.Emit(hostmsg.Error{Err: err})
		return
	}

	so := computeSendOrder(m.SeqID, cfg.IsHipri)
	hdr := wire.ObjectHeader{
		TrackID:   cfg.ID,
		GroupSeq:  groupSeq,
		ObjSeq:    objSeq,
		SendOrder: so,
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer sem.Release(1)
		defer n.Add(-1)
		if err := e.dispatch(ctx, hdr, payload); err != nil {
			e.log.Debug("object dispatch failed", "track", m.Track, "error", err)
			e.bus.Emit(hostmsg.Dropped{Track: m.Track, Reason: "stream write failed"})
		}
	}()
}

// assign applies the first-object constraint and group/object sequence
// assignment (spec §3, §4.E). ok is false when a delta arrives with no
// existing state.
func (e *Engine) assign(kind track.Kind, isKey bool) (groupSeq, objSeq uint64, ok bool) {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	st, exists := e.state[kind]
	if !exists {
		if !isKey {
			return 0, 0, false
		}
		st = &track.State{}
		e.state[kind] = st
	}
	groupSeq, objSeq = st.Advance(isKey)
	return groupSeq, objSeq, true
}

// packagePayload builds the LOC or RAW payload bytes for m, per the
// track's kind (spec §3: "data selects RAW packaging, the others LOC").
func (e *Engine) packagePayload(m hostmsg.Chunk) ([]byte, error) {
	if track.PackagingFor(m.Track) {
		return raw.Encode(raw.Envelope{
			MediaType: raw.DataMediaType,
			ChunkType: m.ChunkType,
			SeqID:     m.SeqID,
			Data:      m.Data,
		})
	}

	mediaType := loc.MediaVideo
	if m.Track == track.KindAudio {
		mediaType = loc.MediaAudio
	}
	duration := m.EstimatedDuration
	if duration == 0 {
		duration = m.Duration
	}
	return loc.Encode(loc.Envelope{
		MediaType:       mediaType,
		Timestamp:       m.Timestamp,
		Duration:        duration,
		ChunkType:       loc.ChunkType(m.ChunkType),
		SeqID:           m.SeqID,
		FirstFrameClkMs: m.FirstFrameClkMs,
		Metadata:        m.Metadata,
		Data:            m.Data,
	})
}

// dispatch opens a unidirectional stream, writes the object header and
// payload, and closes the write side (spec §4.E "Dispatch").
func (e *Engine) dispatch(ctx context.Context, hdr wire.ObjectHeader, payload []byte) error {
	s, err := e.tr.OpenUniStream(ctx, hdr.SendOrder)
	if err != nil {
		return fmt.Errorf("open uni stream: %w", err)
	}
	if err := wire.WriteObjectHeader(s, hdr); err != nil {
		s.Close()
		return fmt.Errorf("write object header: %w", err)
	}
	if _, err := s.Write(payload); err != nil {
		s.Close()
		return fmt.Errorf("write object payload: %w", err)
	}
	return s.Close()
}
