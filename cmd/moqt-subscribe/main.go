// Command moqt-subscribe runs the subscriber engine against a WebTransport
// relay and drives it over a JSON-over-WebSocket host bridge, mirroring
// cmd/moqt-publish's wiring for the receive side.
package main

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/quic-go/quic-go"
	"github.com/quic-go/webtransport-go"
	"golang.org/x/sync/errgroup"

	"github.com/zsiec/moqtcore/internal/config"
	"github.com/zsiec/moqtcore/internal/devcert"
	"github.com/zsiec/moqtcore/internal/hostbridge"
	"github.com/zsiec/moqtcore/internal/hostmsg"
	"github.com/zsiec/moqtcore/internal/session"
	"github.com/zsiec/moqtcore/internal/subscriber"
	"github.com/zsiec/moqtcore/internal/transport"
)

func main() {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	tracksPath := envOr("TRACKS_CONFIG", "tracks.yaml")
	tracks, err := config.Load(tracksPath)
	if err != nil {
		log.Error("failed to load track config", "error", err)
		os.Exit(1)
	}

	wtAddr := envOr("WT_ADDR", "localhost:4443")
	urlPath := envOr("WT_PATH", "/moq")
	apiAddr := envOr("API_ADDR", ":4445")
	sendStats := os.Getenv("SEND_STATS") != ""

	fpClient := &http.Client{
		Transport: &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}, //nolint:gosec — fingerprint itself is verified below
		Timeout:   10 * time.Second,
	}
	fp, err := devcert.FetchFingerprint(ctx, fpClient, wtAddr)
	if err != nil {
		log.Error("failed to fetch server fingerprint", "error", err)
		os.Exit(1)
	}

	dialer := webtransport.Dialer{
		TLSClientConfig: devcert.PinnedTLSConfig(fp),
		QUICConfig:      &quic.Config{MaxIdleTimeout: 30 * time.Second},
	}
	tr, err := transport.Dial(ctx, dialer, wtAddr, urlPath)
	if err != nil {
		log.Error("failed to dial relay", "error", err)
		os.Exit(1)
	}

	control, err := tr.OpenControlStream(ctx)
	if err != nil {
		log.Error("failed to open control stream", "error", err)
		os.Exit(1)
	}

	sess := session.New(control, log)
	bus := hostmsg.NewBus()
	eng := subscriber.New(sess, tr, tracks, bus, sendStats, log)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return eng.Run(ctx)
	})

	g.Go(func() error {
		return runHostBridge(ctx, apiAddr, bus, log)
	})

	if err := g.Wait(); err != nil {
		log.Error("moqt-subscribe exited with error", "error", err)
		os.Exit(1)
	}
}

// runHostBridge accepts a single host WebSocket connection on /host and
// drives bus over it until ctx is cancelled (spec §6).
func runHostBridge(ctx context.Context, addr string, bus *hostmsg.Bus, log *slog.Logger) error {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(_ *http.Request) bool { return true },
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/host", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("host bridge upgrade failed", "error", err)
			return
		}
		log.Info("host connected", "remote", r.RemoteAddr)
		if err := hostbridge.New(conn, bus, log).Run(r.Context()); err != nil {
			log.Warn("host bridge closed", "error", err)
		}
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	stop := context.AfterFunc(ctx, func() { srv.Close() })
	defer stop()

	log.Info("host bridge listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
