package hostbridge

import (
	"fmt"

	"github.com/zsiec/moqtcore/internal/hostmsg"
	"github.com/zsiec/moqtcore/internal/track"
)

// envelope is the JSON-over-WebSocket wire shape for one host message
// (spec §6): a "type" tag plus whichever fields that type uses. This is
// deliberately the same ad-hoc keyed-by-type shape spec §9 flags as a
// design smell for the *in-process* channel — hostmsg models that side
// as a sum type — but it is the right shape for a wire format shared
// with a non-Go host process, the same way the teacher's own
// distribution.statsMessage tags its WebSocket/MoQ JSON payloads with a
// "type" field.
type envelope struct {
	Type string `json:"type"`

	URLHostPort    string               `json:"urlHostPort,omitempty"`
	URLPath        string               `json:"urlPath,omitempty"`
	IsSendingStats bool                 `json:"isSendingStats,omitempty"`
	MoqTracks      map[string]trackJSON `json:"moqTracks,omitempty"`

	Track             string `json:"track,omitempty"`
	SeqID             int64  `json:"seqId,omitempty"`
	ChunkType         string `json:"chunkType,omitempty"`
	Timestamp         int64  `json:"timestamp,omitempty"`
	Duration          uint32 `json:"duration,omitempty"`
	FirstFrameClkMs   int64  `json:"firstFrameClkms,omitempty"`
	EstimatedDuration uint32 `json:"estimatedDuration,omitempty"`
	Metadata          []byte `json:"metadata,omitempty"`
	Data              []byte `json:"data,omitempty"`

	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Reason  string `json:"reason,omitempty"`

	ClkMs       int64          `json:"clkms,omitempty"`
	InFlightReq map[string]int `json:"inFlightReq,omitempty"`

	Chunk *chunkJSON `json:"chunk,omitempty"`
}

type trackJSON struct {
	ID                  uint64 `json:"id,omitempty"`
	Namespace           string `json:"namespace"`
	Name                string `json:"name"`
	AuthInfo            string `json:"authInfo"`
	IsHipri             bool   `json:"isHipri"`
	MaxInFlightRequests uint32 `json:"maxInFlightRequests"`
}

type chunkJSON struct {
	Timestamp    int64  `json:"timestamp"`
	ChunkType    string `json:"type"`
	Data         []byte `json:"data"`
	Duration     uint32 `json:"duration"`
	SeqID        int64  `json:"seqId"`
	CaptureClkMs int64  `json:"captureClkms"`
	Metadata     []byte `json:"metadata"`
}

func tracksToJSON(set track.Set) map[string]trackJSON {
	out := make(map[string]trackJSON, len(set))
	for kind, cfg := range set {
		out[string(kind)] = trackJSON{
			ID:                  cfg.ID,
			Namespace:           cfg.Namespace,
			Name:                cfg.Name,
			AuthInfo:            cfg.AuthInfo,
			IsHipri:             cfg.IsHipri,
			MaxInFlightRequests: cfg.MaxInFlight,
		}
	}
	return out
}

func tracksFromJSON(m map[string]trackJSON) track.Set {
	out := make(track.Set, len(m))
	for kind, t := range m {
		out[track.Kind(kind)] = &track.Config{
			ID:          t.ID,
			Namespace:   t.Namespace,
			Name:        t.Name,
			AuthInfo:    t.AuthInfo,
			IsHipri:     t.IsHipri,
			MaxInFlight: t.MaxInFlightRequests,
		}
	}
	return out
}

// decodeIn converts an envelope read off the wire into a hostmsg.In.
func decodeIn(e envelope) (hostmsg.In, error) {
	switch e.Type {
	case "muxersendini":
		return hostmsg.MuxerSendInit{
			URLHostPort:    e.URLHostPort,
			IsSendingStats: e.IsSendingStats,
			MoqTracks:      tracksFromJSON(e.MoqTracks),
		}, nil
	case "downloadersendini":
		return hostmsg.DownloaderSendInit{
			URLHostPort:    e.URLHostPort,
			URLPath:        e.URLPath,
			IsSendingStats: e.IsSendingStats,
			MoqTracks:      tracksFromJSON(e.MoqTracks),
		}, nil
	case "stop":
		return hostmsg.Stop{}, nil
	default:
		return hostmsg.Chunk{
			Track:             track.Kind(e.Type),
			SeqID:             e.SeqID,
			ChunkType:         e.ChunkType,
			Timestamp:         e.Timestamp,
			Duration:          e.Duration,
			FirstFrameClkMs:   e.FirstFrameClkMs,
			EstimatedDuration: e.EstimatedDuration,
			Metadata:          e.Metadata,
			Data:              e.Data,
		}, nil
	}
}

// encodeOut converts a hostmsg.Out into the envelope written to the wire.
func encodeOut(out hostmsg.Out) (envelope, error) {
	switch m := out.(type) {
	case hostmsg.Info:
		return envelope{Type: "info", Message: m.Message}, nil
	case hostmsg.Debug:
		return envelope{Type: "debug", Message: m.Message}, nil
	case hostmsg.Warning:
		return envelope{Type: "warning", Message: m.Message}, nil
	case hostmsg.Error:
		return envelope{Type: "error", Error: m.Err.Error()}, nil
	case hostmsg.Dropped:
		return envelope{Type: "dropped", Track: string(m.Track), Reason: m.Reason}, nil
	case hostmsg.DroppedStream:
		return envelope{Type: "dropped stream", Reason: m.Reason}, nil
	case hostmsg.SendStats:
		inFlight := make(map[string]int, len(m.InFlightReq))
		for kind, n := range m.InFlightReq {
			inFlight[string(kind)] = n
		}
		return envelope{Type: "sendstats", ClkMs: m.ClkMs, InFlightReq: inFlight}, nil
	case hostmsg.DownloaderStats:
		return envelope{Type: "downloaderstats", ClkMs: m.ClkMs}, nil
	case hostmsg.AudioChunk:
		return envelope{Type: "audiochunk", Chunk: chunkToJSON(m.Chunk)}, nil
	case hostmsg.VideoChunk:
		return envelope{Type: "videochunk", Chunk: chunkToJSON(m.Chunk)}, nil
	case hostmsg.Data:
		return envelope{Type: "data", SeqID: m.SeqID, ChunkType: m.ChunkType, Data: m.Data}, nil
	default:
		return envelope{}, fmt.Errorf("hostbridge: unknown out message %T", out)
	}
}

func chunkToJSON(c hostmsg.EncodedChunk) *chunkJSON {
	return &chunkJSON{
		Timestamp:    c.Timestamp,
		ChunkType:    c.ChunkType,
		Data:         c.Data,
		Duration:     c.Duration,
		SeqID:        c.SeqID,
		CaptureClkMs: c.CaptureClkMs,
		Metadata:     c.Metadata,
	}
}
