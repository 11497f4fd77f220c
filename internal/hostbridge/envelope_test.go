package hostbridge

import (
	"errors"
	"testing"

	"github.com/zsiec/moqtcore/internal/hostmsg"
	"github.com/zsiec/moqtcore/internal/track"
)

func TestDecodeInMuxerSendInit(t *testing.T) {
	t.Parallel()
	e := envelope{
		Type:           "muxersendini",
		URLHostPort:    "relay.example:4443",
		IsSendingStats: true,
		MoqTracks: map[string]trackJSON{
			"video": {Namespace: "live", Name: "video0", AuthInfo: "s", MaxInFlightRequests: 4},
		},
	}
	in, err := decodeIn(e)
	if err != nil {
		t.Fatalf("decodeIn: %v", err)
	}
	m, ok := in.(hostmsg.MuxerSendInit)
	if !ok {
		t.Fatalf("decodeIn returned %T, want hostmsg.MuxerSendInit", in)
	}
	if m.URLHostPort != "relay.example:4443" || !m.IsSendingStats {
		t.Fatalf("decoded = %+v", m)
	}
	if cfg, ok := m.MoqTracks[track.KindVideo]; !ok || cfg.Namespace != "live" {
		t.Fatalf("MoqTracks[video] = %+v, ok=%v", cfg, ok)
	}
}

func TestDecodeInDownloaderSendInit(t *testing.T) {
	t.Parallel()
	e := envelope{Type: "downloadersendini", URLHostPort: "relay.example:4443", URLPath: "/moq"}
	in, err := decodeIn(e)
	if err != nil {
		t.Fatalf("decodeIn: %v", err)
	}
	m, ok := in.(hostmsg.DownloaderSendInit)
	if !ok {
		t.Fatalf("decodeIn returned %T, want hostmsg.DownloaderSendInit", in)
	}
	if m.URLPath != "/moq" {
		t.Fatalf("URLPath = %q, want /moq", m.URLPath)
	}
}

func TestDecodeInStop(t *testing.T) {
	t.Parallel()
	in, err := decodeIn(envelope{Type: "stop"})
	if err != nil {
		t.Fatalf("decodeIn: %v", err)
	}
	if _, ok := in.(hostmsg.Stop); !ok {
		t.Fatalf("decodeIn returned %T, want hostmsg.Stop", in)
	}
}

func TestDecodeInChunkFallsThroughOnTrackName(t *testing.T) {
	t.Parallel()
	e := envelope{Type: "video", SeqID: 5, ChunkType: "key", Data: []byte("x")}
	in, err := decodeIn(e)
	if err != nil {
		t.Fatalf("decodeIn: %v", err)
	}
	c, ok := in.(hostmsg.Chunk)
	if !ok {
		t.Fatalf("decodeIn returned %T, want hostmsg.Chunk", in)
	}
	if c.Track != track.KindVideo || c.SeqID != 5 {
		t.Fatalf("decoded = %+v", c)
	}
}

func TestEncodeOutTypeTags(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		in       hostmsg.Out
		wantType string
	}{
		{"info", hostmsg.Info{Message: "hi"}, "info"},
		{"debug", hostmsg.Debug{Message: "hi"}, "debug"},
		{"warning", hostmsg.Warning{Message: "hi"}, "warning"},
		{"error", hostmsg.Error{Err: errors.New("boom")}, "error"},
		{"dropped", hostmsg.Dropped{Track: track.KindAudio, Reason: "no subscribers"}, "dropped"},
		{"dropped stream", hostmsg.DroppedStream{Reason: "bad header"}, "dropped stream"},
		{"sendstats", hostmsg.SendStats{ClkMs: 1, InFlightReq: map[track.Kind]int{track.KindVideo: 2}}, "sendstats"},
		{"downloaderstats", hostmsg.DownloaderStats{ClkMs: 1}, "downloaderstats"},
		{"audiochunk", hostmsg.AudioChunk{Chunk: hostmsg.EncodedChunk{SeqID: 1}}, "audiochunk"},
		{"videochunk", hostmsg.VideoChunk{Chunk: hostmsg.EncodedChunk{SeqID: 1}}, "videochunk"},
		{"data", hostmsg.Data{SeqID: 1, Data: []byte("x")}, "data"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, err := encodeOut(tt.in)
			if err != nil {
				t.Fatalf("encodeOut: %v", err)
			}
			if e.Type != tt.wantType {
				t.Fatalf("Type = %q, want %q", e.Type, tt.wantType)
			}
		})
	}
}

func TestEncodeOutUnknownType(t *testing.T) {
	t.Parallel()
	if _, err := encodeOut(nil); err == nil {
		t.Fatal("expected an error for an unrecognized Out type")
	}
}
