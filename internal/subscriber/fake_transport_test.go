package subscriber

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/zsiec/moqtcore/internal/transport"
)

// fakeReceiveStream is an io.Reader over a fixed byte slice, the shape
// handleStream expects from transport.ReceiveStream.
type fakeReceiveStream struct {
	r *bytes.Reader
}

func (s *fakeReceiveStream) Read(p []byte) (int, error) { return s.r.Read(p) }

// fakeTransport hands out queued streams from AcceptUniStream one at a
// time, then blocks until ctx is cancelled, emulating a relay that stops
// sending new object streams once the test's fixtures are exhausted.
type fakeTransport struct {
	mu      sync.Mutex
	queue   [][]byte
	closeCh chan struct{}
}

func newFakeTransport(streams ...[]byte) *fakeTransport {
	return &fakeTransport{queue: streams, closeCh: make(chan struct{})}
}

func (t *fakeTransport) OpenControlStream(ctx context.Context) (transport.Stream, error) {
	panic("not used by engine tests: session owns the control stream directly")
}

func (t *fakeTransport) OpenUniStream(ctx context.Context, sendOrder uint64) (transport.SendStream, error) {
	panic("not used by subscriber engine tests")
}

func (t *fakeTransport) AcceptUniStream(ctx context.Context) (transport.ReceiveStream, error) {
	t.mu.Lock()
	if len(t.queue) > 0 {
		next := t.queue[0]
		t.queue = t.queue[1:]
		t.mu.Unlock()
		return &fakeReceiveStream{r: bytes.NewReader(next)}, nil
	}
	t.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.closeCh:
		return nil, io.EOF
	}
}

func (t *fakeTransport) Ready() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func (t *fakeTransport) Closed() <-chan struct{} { return t.closeCh }

func (t *fakeTransport) Close(err error) error {
	select {
	case <-t.closeCh:
	default:
		close(t.closeCh)
	}
	return nil
}
