package publisher

import (
	"bytes"
	"context"
	"sync"

	"github.com/zsiec/moqtcore/internal/transport"
)

// fakeSendStream records everything written to it until Close.
type fakeSendStream struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

func (s *fakeSendStream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *fakeSendStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSendStream) bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.buf.Bytes()...)
}

// fakeTransport is a minimal transport.Transport for engine-level tests:
// OpenUniStream records each dispatched object on a channel the test can
// drain, instead of driving a real QUIC session.
type fakeTransport struct {
	dispatched chan *fakeSendStream
	openErr    error

	closedCh  chan struct{}
	closeOnce sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		dispatched: make(chan *fakeSendStream, 16),
		closedCh:   make(chan struct{}),
	}
}

func (t *fakeTransport) OpenControlStream(ctx context.Context) (transport.Stream, error) {
	panic("not used by engine tests: session owns the control stream directly")
}

func (t *fakeTransport) OpenUniStream(ctx context.Context, sendOrder uint64) (transport.SendStream, error) {
	if t.openErr != nil {
		return nil, t.openErr
	}
	s := &fakeSendStream{}
	t.dispatched <- s
	return s, nil
}

func (t *fakeTransport) AcceptUniStream(ctx context.Context) (transport.ReceiveStream, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (t *fakeTransport) Ready() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func (t *fakeTransport) Closed() <-chan struct{} { return t.closedCh }

func (t *fakeTransport) Close(err error) error {
	t.closeOnce.Do(func() { close(t.closedCh) })
	return nil
}
