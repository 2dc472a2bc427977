// Command observer joins a room as a silent participant and logs the shared
// canvas as it changes. It is useful for checking that a relay and its
// clients agree on state.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bodymap/bodymap/internal/collab"
	"github.com/bodymap/bodymap/internal/config"
	"github.com/bodymap/bodymap/internal/discovery"
	"github.com/bodymap/bodymap/internal/engine"
	"github.com/bodymap/bodymap/internal/typeid"
)

func main() {
	server := flag.String("server", "", "relay base URL; discovered over mDNS when empty")
	room := flag.String("room", "", "room id to join")
	name := flag.String("name", "observer", "display name")
	discoverFor := flag.Duration("discover", 3*time.Second, "mDNS browse timeout")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	if *room == "" {
		slog.Error("missing -room")
		os.Exit(2)
	}

	cfg, err := config.LoadEngine()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *server == "" {
		found, err := discovery.Lookup(ctx, *discoverFor)
		if err != nil {
			slog.Warn("mdns lookup", "error", err)
		}
		if len(found) == 0 {
			slog.Error("no relay found on the local network; pass -server")
			os.Exit(1)
		}
		*server = found[0].URL()
		slog.Info("discovered relay", "instance", found[0].Instance, "addr", found[0].Addr)
	}

	playerID := typeid.NewPlayerID()
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	ch, err := collab.DialRoom(dialCtx, *server, *room, playerID, collab.DialOptions{
		DisplayName: *name,
		OnState: func(s collab.ConnState) {
			slog.Info("connection", "state", s)
		},
	})
	cancel()
	if err != nil {
		slog.Error("join room", "error", err)
		os.Exit(1)
	}
	defer ch.Close()

	eng := engine.New(cfg.Options(playerID))
	opts := cfg.SessionOptions(eng, ch)
	opts.DisplayName = *name

	var session *collab.Session
	opts.OnChange = func(msgType string) {
		session.View(func(e *engine.Engine) { logCanvas(msgType, e) })
	}
	session, err = collab.NewSession(opts)
	if err != nil {
		slog.Error("create session", "error", err)
		os.Exit(1)
	}
	session.Join()
	defer session.Leave()

	select {
	case <-ctx.Done():
	case <-ch.Done():
		slog.Warn("relay closed the connection")
	}
}

func logCanvas(cause string, e *engine.Engine) {
	slog.Info("canvas changed",
		"cause", cause,
		"strokes", len(e.AllStrokes()),
		"marks", len(e.AllMarks()),
		"fills", len(e.Colors()),
		"sensations", len(e.Sensations()),
		"texts", len(e.Texts()),
		"effects", len(e.CustomEffects()),
		"rotation", e.Rotation(),
		"history", len(e.HistoryItems()),
	)
}
