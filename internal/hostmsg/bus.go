package hostmsg

// Default channel buffer sizes, matching the order of magnitude the
// teacher uses for its per-track frame channels (media.VideoBufferSize,
// media.AudioBufferSize): deep enough to absorb a brief host-side stall
// without itself becoming the backpressure mechanism — that job belongs
// to the publisher's per-track in-flight bound, not this channel.
const (
	InBufferSize  = 64
	OutBufferSize = 128
)

// Bus is the host↔engine message channel pair (spec §6). The host writes
// to In and reads from Out; the engine does the reverse. Closing In
// signals the engine to stop reading. Neither engine closes Out, so a
// reader of Out stops on its own cancellation rather than on a closed
// channel.
type Bus struct {
	In  chan In
	Out chan Out
}

// NewBus allocates a Bus with the default buffer sizes.
func NewBus() *Bus {
	return &Bus{
		In:  make(chan In, InBufferSize),
		Out: make(chan Out, OutBufferSize),
	}
}

// Emit sends an Out event, dropping it if Out is full rather than
// blocking the engine's hot path — a slow or wedged host must not be able
// to stall object dispatch.
func (b *Bus) Emit(evt Out) {
	select {
	case b.Out <- evt:
	default:
	}
}
