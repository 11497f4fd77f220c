package transport

import (
	"context"
	"net/http"

	"github.com/quic-go/webtransport-go"
)

// prioritizer is implemented by quic-go send streams that support a
// priority hint. webtransport-go streams wrap a quic.SendStream, which
// exposes SetPriority on recent quic-go versions; we probe for it with a
// type assertion rather than depending on the concrete type, so this
// still builds against older vendored copies that lack the method.
type prioritizer interface {
	SetPriority(int)
}

// quicTransport adapts a *webtransport.Session to the Transport
// interface. It is the "verified transport factory" result spec §6
// says the core is handed — dialing, TLS verification, and fingerprint
// pinning all happen before a quicTransport is constructed.
type quicTransport struct {
	sess *webtransport.Session

	readyCh  chan struct{}
	closedCh chan struct{}
}

// NewQUIC wraps an established WebTransport session. sess must already be
// past the WebTransport upgrade handshake (Dial succeeded; both the
// publisher and the subscriber dial the relay as clients).
func NewQUIC(sess *webtransport.Session) Transport {
	t := &quicTransport{
		sess:     sess,
		readyCh:  make(chan struct{}),
		closedCh: make(chan struct{}),
	}
	close(t.readyCh) // the session is only ever handed to us once ready
	go t.watchClose()
	return t
}

func (t *quicTransport) watchClose() {
	<-t.sess.Context().Done()
	close(t.closedCh)
}

func (t *quicTransport) OpenControlStream(ctx context.Context) (Stream, error) {
	s, err := t.sess.OpenStreamSync(ctx)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (t *quicTransport) OpenUniStream(ctx context.Context, sendOrder uint64) (SendStream, error) {
	s, err := t.sess.OpenUniStreamSync(ctx)
	if err != nil {
		return nil, err
	}
	if p, ok := any(s).(prioritizer); ok {
		// sendOrder is unbounded (spec §4.E), quic-go's priority is a
		// signed int; clamp rather than wrap on overflow.
		prio := int(sendOrder)
		if sendOrder > uint64(^uint(0)>>1) {
			prio = int(^uint(0) >> 1)
		}
		p.SetPriority(prio)
	}
	return s, nil
}

func (t *quicTransport) AcceptUniStream(ctx context.Context) (ReceiveStream, error) {
	s, err := t.sess.AcceptUniStream(ctx)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (t *quicTransport) Ready() <-chan struct{} { return t.readyCh }
func (t *quicTransport) Closed() <-chan struct{} { return t.closedCh }

func (t *quicTransport) Close(err error) error {
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	return t.sess.CloseWithError(webtransport.SessionErrorCode(0), reason)
}

// Dial opens a new WebTransport session to the publisher/subscriber peer
// and wraps it as a Transport. dialer.TLSClientConfig is expected to pin
// the peer's certificate by SHA-256 fingerprint (spec §6); this function
// does no certificate handling of its own, only the QUIC/WebTransport
// handshake.
func Dial(ctx context.Context, dialer webtransport.Dialer, urlHostPort, urlPath string) (Transport, error) {
	url := "https://" + urlHostPort + urlPath
	_, sess, err := dialer.Dial(ctx, url, http.Header{})
	if err != nil {
		return nil, err
	}
	return NewQUIC(sess), nil
}
