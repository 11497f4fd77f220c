package publisher

import (
	"bytes"
	"context"
	"math"
	"net"
	"testing"
	"time"

	"github.com/zsiec/moqtcore/internal/hostmsg"
	"github.com/zsiec/moqtcore/internal/session"
	"github.com/zsiec/moqtcore/internal/track"
	"github.com/zsiec/moqtcore/internal/wire"
)

func TestComputeSendOrder(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		seqID   int64
		isHipri bool
		want    uint64
	}{
		{"negative seq is highest priority", -1, false, math.MaxUint64},
		{"normal track uses seqId", 42, false, 42},
		{"hipri track offsets by half the safe-integer range", 10, true, 10 + maxSafeHalf},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := computeSendOrder(tt.seqID, tt.isHipri)
			if got != tt.want {
				t.Fatalf("computeSendOrder(%d, %v) = %d, want %d", tt.seqID, tt.isHipri, got, tt.want)
			}
		})
	}
}

// runSubscriberPeer drives the subscriber side of the handshake wire
// protocol so the engine under test can complete PublisherHandshake.
func runSubscriberPeer(t *testing.T, conn net.Conn, tracks track.Set) {
	t.Helper()
	rd := wire.NewReader(conn)

	if tag, err := wire.ReadTag(rd); err != nil || tag != wire.TagSetup {
		t.Errorf("peer: expected SETUP, got tag=%#x err=%v", tag, err)
		return
	}
	if _, err := wire.ParseSetup(rd); err != nil {
		t.Errorf("peer: parse SETUP: %v", err)
		return
	}
	if err := wire.WriteSetupOK(conn, wire.SetupOK{
		Version: session.Version,
		Params:  wire.Params{wire.RoleParam(wire.RoleSubscriber)},
	}); err != nil {
		t.Errorf("peer: write SETUP_OK: %v", err)
		return
	}

	seen := map[string]bool{}
	for _, cfg := range tracks {
		if seen[cfg.Namespace] {
			continue
		}
		seen[cfg.Namespace] = true
	}
	for range seen {
		tag, err := wire.ReadTag(rd)
		if err != nil || tag != wire.TagAnnounce {
			t.Errorf("peer: expected ANNOUNCE, got tag=%#x err=%v", tag, err)
			return
		}
		ann, err := wire.ParseAnnounce(rd)
		if err != nil {
			t.Errorf("peer: parse ANNOUNCE: %v", err)
			return
		}
		if err := wire.WriteAnnounceOK(conn, wire.AnnounceOK{Namespace: ann.Namespace}); err != nil {
			t.Errorf("peer: write ANNOUNCE_OK: %v", err)
			return
		}
	}
}

// newRunningEngine builds an Engine whose session has already completed
// the publisher handshake against a scripted peer, with one subscriber
// already registered on each track (so handleChunk reaches dispatch).
func newRunningEngine(t *testing.T, tracks track.Set) (*Engine, *fakeTransport, net.Conn, func()) {
	t.Helper()
	clientConn, serverConn := net.Pipe()

	peerDone := make(chan struct{})
	go func() {
		runSubscriberPeer(t, serverConn, tracks)
		close(peerDone)
	}()

	sess := session.New(clientConn, nil)
	if err := sess.Instantiate(); err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	if err := sess.PublisherHandshake(tracks); err != nil {
		t.Fatalf("PublisherHandshake: %v", err)
	}
	select {
	case <-peerDone:
	case <-time.After(time.Second):
		t.Fatal("peer goroutine did not finish")
	}

	for _, cfg := range tracks {
		cfg.NumSubscribers.Add(1)
	}

	tr := newFakeTransport()
	bus := hostmsg.NewBus()
	eng, err := New(sess, tr, tracks, bus, false, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return eng, tr, clientConn, func() { clientConn.Close(); serverConn.Close() }
}

func drainUntil[T any](t *testing.T, ch <-chan T, match func(T) bool, timeout time.Duration) T {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case v := <-ch:
			if match(v) {
				return v
			}
		case <-deadline:
			var zero T
			t.Fatal("timed out waiting for matching value")
			return zero
		}
	}
}

func TestHandleChunkFirstObjectMustBeKey(t *testing.T) {
	t.Parallel()
	tracks := track.Set{
		track.KindVideo: {Namespace: "live", Name: "video0", AuthInfo: "s", MaxInFlight: 4},
	}
	eng, _, _, cleanup := newRunningEngine(t, tracks)
	defer cleanup()

	ctx := context.Background()
	eng.handleChunk(ctx, hostmsg.Chunk{Track: track.KindVideo, SeqID: 1, ChunkType: "delta"})

	dropped := drainUntil(t, eng.bus.Out, func(o hostmsg.Out) bool {
		_, ok := o.(hostmsg.Dropped)
		return ok
	}, time.Second)
	d := dropped.(hostmsg.Dropped)
	if d.Reason != "first object must be key" {
		t.Fatalf("Dropped.Reason = %q, want %q", d.Reason, "first object must be key")
	}
}

func TestHandleChunkNoSubscribers(t *testing.T) {
	t.Parallel()
	tracks := track.Set{
		track.KindVideo: {Namespace: "live", Name: "video0", AuthInfo: "s", MaxInFlight: 4},
	}
	eng, _, _, cleanup := newRunningEngine(t, tracks)
	defer cleanup()

	tracks[track.KindVideo].NumSubscribers.Store(0)

	ctx := context.Background()
	eng.handleChunk(ctx, hostmsg.Chunk{Track: track.KindVideo, SeqID: 1, ChunkType: "key"})

	dropped := drainUntil(t, eng.bus.Out, func(o hostmsg.Out) bool {
		_, ok := o.(hostmsg.Dropped)
		return ok
	}, time.Second)
	if d := dropped.(hostmsg.Dropped); d.Reason != "no subscribers" {
		t.Fatalf("Dropped.Reason = %q, want %q", d.Reason, "no subscribers")
	}
}

func TestHandleChunkTooManyInFlight(t *testing.T) {
	t.Parallel()
	tracks := track.Set{
		track.KindVideo: {Namespace: "live", Name: "video0", AuthInfo: "s", MaxInFlight: 1},
	}
	eng, tr, _, cleanup := newRunningEngine(t, tracks)
	defer cleanup()

	// Exhaust the single in-flight slot without letting dispatch complete.
	if !eng.sems[track.KindVideo].TryAcquire(1) {
		t.Fatal("failed to pre-acquire the semaphore for the test setup")
	}
	eng.inFlightN[track.KindVideo].Add(1)

	ctx := context.Background()
	eng.handleChunk(ctx, hostmsg.Chunk{Track: track.KindVideo, SeqID: 1, ChunkType: "key"})

	dropped := drainUntil(t, eng.bus.Out, func(o hostmsg.Out) bool {
		_, ok := o.(hostmsg.Dropped)
		return ok
	}, time.Second)
	if d := dropped.(hostmsg.Dropped); d.Reason != "too many inflight" {
		t.Fatalf("Dropped.Reason = %q, want %q", d.Reason, "too many inflight")
	}
	if len(tr.dispatched) != 0 {
		t.Fatalf("expected no dispatch while in-flight bound is exhausted, got %d", len(tr.dispatched))
	}
}

func TestHandleChunkDispatchesObjectHeader(t *testing.T) {
	t.Parallel()
	tracks := track.Set{
		track.KindVideo: {Namespace: "live", Name: "video0", AuthInfo: "s", MaxInFlight: 4, IsHipri: true},
	}
	eng, tr, _, cleanup := newRunningEngine(t, tracks)
	defer cleanup()

	ctx := context.Background()
	eng.handleChunk(ctx, hostmsg.Chunk{
		Track:     track.KindVideo,
		SeqID:     7,
		ChunkType: "key",
		Timestamp: 1000,
		Duration:  33000,
		Data:      []byte("keyframe-bytes"),
	})

	var s *fakeSendStream
	select {
	case s = <-tr.dispatched:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for dispatch")
	}

	// Give the dispatch goroutine a moment to finish writing and close.
	deadline := time.Now().Add(time.Second)
	for {
		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("dispatch stream never closed")
		}
		time.Sleep(time.Millisecond)
	}

	rd := wire.NewReader(bytes.NewReader(s.bytes()))
	hdr, err := wire.ReadObjectHeader(rd)
	if err != nil {
		t.Fatalf("ReadObjectHeader: %v", err)
	}
	wantID := tracks[track.KindVideo].ID
	if hdr.TrackID != wantID {
		t.Fatalf("TrackID = %d, want %d", hdr.TrackID, wantID)
	}
	if hdr.GroupSeq != 1 || hdr.ObjSeq != 0 {
		t.Fatalf("GroupSeq/ObjSeq = %d/%d, want 1/0 for the first key object", hdr.GroupSeq, hdr.ObjSeq)
	}
	wantSendOrder := computeSendOrder(7, true)
	if hdr.SendOrder != wantSendOrder {
		t.Fatalf("SendOrder = %d, want %d", hdr.SendOrder, wantSendOrder)
	}
}

func TestAssignTrackIDsSequentialByKind(t *testing.T) {
	t.Parallel()
	tracks := track.Set{
		track.KindAudio: {Namespace: "live", Name: "audio0", AuthInfo: "s", MaxInFlight: 4},
		track.KindVideo: {Namespace: "live", Name: "video0", AuthInfo: "s", MaxInFlight: 4},
	}
	assignTrackIDs(tracks)
	if tracks[track.KindAudio].ID != 0 {
		t.Fatalf("audio.ID = %d, want 0", tracks[track.KindAudio].ID)
	}
	if tracks[track.KindVideo].ID != 1 {
		t.Fatalf("video.ID = %d, want 1", tracks[track.KindVideo].ID)
	}
}

func TestAssignTrackIDsPreservesExplicitAndFillsGaps(t *testing.T) {
	t.Parallel()
	tracks := track.Set{
		track.KindAudio: {Namespace: "live", Name: "audio0", AuthInfo: "s", MaxInFlight: 4, ID: 5},
		track.KindVideo: {Namespace: "live", Name: "video0", AuthInfo: "s", MaxInFlight: 4},
		track.KindData:  {Namespace: "live", Name: "data0", AuthInfo: "s", MaxInFlight: 4},
	}
	assignTrackIDs(tracks)
	if tracks[track.KindAudio].ID != 5 {
		t.Fatalf("audio.ID = %d, want 5 (explicit id preserved)", tracks[track.KindAudio].ID)
	}
	if tracks[track.KindVideo].ID == 5 || tracks[track.KindData].ID == 5 {
		t.Fatalf("sequential assignment collided with the explicit id 5: video=%d data=%d",
			tracks[track.KindVideo].ID, tracks[track.KindData].ID)
	}
	if tracks[track.KindVideo].ID == tracks[track.KindData].ID {
		t.Fatalf("video and data both got id %d, want distinct ids", tracks[track.KindVideo].ID)
	}
}

func TestNewAssignsDistinctTrackIDsAcrossKinds(t *testing.T) {
	t.Parallel()
	tracks := track.Set{
		track.KindAudio: {Namespace: "live", Name: "audio0", AuthInfo: "s", MaxInFlight: 4},
		track.KindVideo: {Namespace: "live", Name: "video0", AuthInfo: "s", MaxInFlight: 4},
	}
	_, _, _, cleanup := newRunningEngine(t, tracks)
	defer cleanup()

	if tracks[track.KindAudio].ID == tracks[track.KindVideo].ID {
		t.Fatalf("audio and video both got track id %d, want distinct ids so the subscriber can demux",
			tracks[track.KindAudio].ID)
	}
}

func TestHandleChunkUnconfiguredTrack(t *testing.T) {
	t.Parallel()
	tracks := track.Set{
		track.KindVideo: {Namespace: "live", Name: "video0", AuthInfo: "s", MaxInFlight: 4},
	}
	eng, _, _, cleanup := newRunningEngine(t, tracks)
	defer cleanup()

	ctx := context.Background()
	eng.handleChunk(ctx, hostmsg.Chunk{Track: track.KindAudio, SeqID: 1, ChunkType: "key"})

	out := drainUntil(t, eng.bus.Out, func(o hostmsg.Out) bool {
		_, ok := o.(hostmsg.Error)
		return ok
	}, time.Second)
	if _, ok := out.(hostmsg.Error); !ok {
		t.Fatalf("expected hostmsg.Error, got %T", out)
	}
}
