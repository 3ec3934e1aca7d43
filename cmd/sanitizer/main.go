package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/charleschow/rugs-sanitizer/internal/broadcaster"
	"github.com/charleschow/rugs-sanitizer/internal/config"
	"github.com/charleschow/rugs-sanitizer/internal/sanitizer/history"
	"github.com/charleschow/rugs-sanitizer/internal/sanitizer/model"
	"github.com/charleschow/rugs-sanitizer/internal/sanitizer/pipeline"
	"github.com/charleschow/rugs-sanitizer/internal/telemetry"
	"github.com/charleschow/rugs-sanitizer/internal/upstream"
)

func main() {
	cfg := config.LoadWithTuning()
	telemetry.Init(telemetry.ParseLogLevel(cfg.LogLevel))

	if cfg.UpstreamURL == "" {
		telemetry.Errorf("UPSTREAM_URL is required")
		os.Exit(1)
	}

	telemetry.Infof("rugs-sanitizer starting  upstream=%s  listen=%s:%d  history_interval=every %d rugs",
		cfg.UpstreamURL, cfg.Host, cfg.Port, cfg.HistoryCollectionInterval)
	telemetry.Infof("channels: /feed/game /feed/stats /feed/trades /feed/history /feed/all")

	pipe := pipeline.New()
	bcast := broadcaster.New(cfg.BroadcasterMaxQueueSize)
	historyCollector := history.New(cfg.HistoryCollectionInterval)

	// Wire pipeline -> broadcaster on every primary channel; the broadcaster
	// itself also delivers each of these events to "all" subscribers.
	for _, ch := range []model.Channel{model.ChannelGame, model.ChannelStats, model.ChannelTrades, model.ChannelHistory} {
		pipe.OnEvent(ch, bcast.Broadcast)
	}

	// Rug-collection guard: multiple RUGGED-phase ticks fire per game (the
	// rug broadcasts on several consecutive ticks), so gate on game_id to
	// call the history collector exactly once per rug.
	lastRugGameID := ""
	upstreamClient := upstream.NewClient(cfg.UpstreamURL, func(raw []byte) {
		events := pipe.ProcessRaw(raw)
		handleRugGuard(events, historyCollector, &lastRugGameID)
	}, upstream.Options{
		PingInterval:          cfg.UpstreamPingInterval,
		InitialReconnectDelay: cfg.UpstreamInitialReconnectDelay,
		MaxReconnectDelay:     cfg.UpstreamMaxReconnectDelay,
		PingTimeout:           cfg.UpstreamPingTimeout,
		CloseTimeout:          cfg.UpstreamCloseTimeout,
	})

	mux := http.NewServeMux()
	bcast.RegisterRoutes(mux, func() any {
		return statsSnapshot(upstreamClient, pipe, bcast, historyCollector)
	})

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		upstreamClient.ConnectWithRetry(gctx)
		return nil
	})

	g.Go(func() error {
		bcast.Run()
		return nil
	})

	g.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	telemetry.Infof("listening on %q", addr)

	g.Go(func() error {
		return runPeriodicStats(gctx, cfg.PeriodicStatsInterval)
	})

	<-gctx.Done()
	telemetry.Infof("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	bcast.Close()

	if err := g.Wait(); err != nil {
		telemetry.Errorf("shutdown error: %v", err)
	}

	telemetry.Infof("shutdown complete  events_received=%s  total_events=%s  total_dropped=%s  rug_count=%s",
		humanize.Comma(telemetry.Metrics.EventsReceived.Value()),
		humanize.Comma(telemetry.Metrics.TotalEvents.Value()),
		humanize.Comma(telemetry.Metrics.TotalDropped.Value()),
		humanize.Comma(telemetry.Metrics.RugCount.Value()))
}

// handleRugGuard inspects one batch of sanitized events for a RUGGED game
// tick and, gated by lastRugGameID, hands any co-emitted history records
// to the collector exactly once per rug.
func handleRugGuard(events []model.SanitizedEvent, collector *history.Collector, lastRugGameID *string) {
	var rugGameID string
	var hasGodCandle bool
	var historyRecords []model.GameHistoryRecord

	for _, evt := range events {
		if evt.Channel == model.ChannelGame && evt.Phase == model.PhaseRugged {
			if tick, ok := evt.Data.(model.GameTick); ok {
				rugGameID = evt.GameID
				hasGodCandle = tick.HasGodCandle
			}
		}
		if evt.Channel == model.ChannelHistory {
			if rec, ok := evt.Data.(model.GameHistoryRecord); ok {
				historyRecords = append(historyRecords, rec)
			}
		}
	}

	if rugGameID == "" || rugGameID == *lastRugGameID {
		return
	}
	*lastRugGameID = rugGameID

	// The records OnRug returns are discarded here: this service has no
	// durable sink (out of scope, see SPEC_FULL.md's History Collector
	// supplement), and the collector takes no sink callback of its own.
	collector.OnRug(historyRecords, hasGodCandle)
}

func runPeriodicStats(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 300 * time.Second
	}
	start := time.Now()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			telemetry.Infof("stats: uptime=%s events_received=%s total_events=%s total_dropped=%s rug_count=%s games_seen=%s",
				humanize.Time(start),
				humanize.Comma(telemetry.Metrics.EventsReceived.Value()),
				humanize.Comma(telemetry.Metrics.TotalEvents.Value()),
				humanize.Comma(telemetry.Metrics.TotalDropped.Value()),
				humanize.Comma(telemetry.Metrics.RugCount.Value()),
				humanize.Comma(telemetry.Metrics.GamesSeen.Value()))
		}
	}
}

type statsResponse struct {
	Upstream    upstream.Stats    `json:"upstream"`
	Pipeline    pipeline.Stats    `json:"pipeline"`
	Broadcaster broadcaster.Stats `json:"broadcaster"`
	History     history.Stats    `json:"history_collector"`
}

func statsSnapshot(client *upstream.Client, pipe *pipeline.Pipeline, bcast *broadcaster.Broadcaster, collector *history.Collector) statsResponse {
	return statsResponse{
		Upstream:    client.GetStats(),
		Pipeline:    pipe.GetStats(),
		Broadcaster: bcast.GetStats(),
		History:     collector.GetStats(),
	}
}
