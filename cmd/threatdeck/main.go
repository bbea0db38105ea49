package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rgsec/threatdeck/internal/brain"
	"github.com/rgsec/threatdeck/internal/brief"
	"github.com/rgsec/threatdeck/internal/config"
	"github.com/rgsec/threatdeck/internal/feeds"
	"github.com/rgsec/threatdeck/internal/intel"
	"github.com/rgsec/threatdeck/internal/logging"
	"github.com/rgsec/threatdeck/internal/pipeline"
	"github.com/rgsec/threatdeck/internal/server"
	"github.com/rgsec/threatdeck/internal/telemetry"
)

func main() {
	if err := logging.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer logging.Close()

	cfg, err := config.Load()
	if err != nil {
		logging.Warn("config load failed, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	telemetry.InitMetrics()
	shutdownTracer, err := telemetry.InitTracer()
	if err != nil {
		logging.Warn("tracer init failed, continuing without traces", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info("shutdown signal received", "signal", sig)
		cancel()
	}()

	chain := brain.NewChain(brain.ChainSettings{
		Preferred:  cfg.Brief.Provider,
		Model:      cfg.Brief.Model,
		ClaudeKey:  cfg.Brief.ClaudeKey,
		OpenAIKey:  cfg.Brief.OpenAIKey,
		OllamaHost: cfg.Brief.OllamaHost,
	})
	provider := chain.Available()
	if provider != nil {
		logging.Info("text provider selected", "provider", provider.Name())
	} else {
		logging.Info("no text provider configured, briefs use the deterministic fallback")
	}
	builder := brief.NewBuilder(provider, time.Duration(cfg.Brief.TimeoutMS)*time.Millisecond)
	pipe := pipeline.New(builder, cfg.Brief.TopK)
	agg := feeds.Default(cfg)
	holder := &server.Holder{}

	go pollLoop(ctx, cfg, agg, pipe, holder)

	srv := server.New(cfg.Server.Addr, holder)
	if err := srv.Run(ctx); err != nil {
		logging.Error("server exited", "error", err)
	}

	if shutdownTracer != nil {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := shutdownTracer(flushCtx); err != nil {
			logging.Warn("tracer shutdown", "error", err)
		}
	}
}

// backlogCap bounds the rolling raw batch the daemon re-ranks each poll.
// Oldest records fall off first; recency decay has already pushed them to
// the bottom of the ranking by then.
const backlogCap = 2000

// pollLoop runs one fetch-and-rank pass immediately, then on every tick.
// The aggregator only yields unseen records, so the loop keeps a rolling
// backlog and re-runs the pipeline over the whole window. Each pass
// publishes a fresh snapshot; readers keep serving the previous one until
// the swap.
func pollLoop(ctx context.Context, cfg *config.Config, agg *feeds.Aggregator, pipe *pipeline.Pipeline, holder *server.Holder) {
	interval := time.Duration(cfg.Feeds.PollMinutes) * time.Minute
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	var backlog []intel.RawItem
	backlog = runOnce(ctx, agg, pipe, holder, backlog)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			backlog = runOnce(ctx, agg, pipe, holder, backlog)
		}
	}
}

func runOnce(ctx context.Context, agg *feeds.Aggregator, pipe *pipeline.Pipeline, holder *server.Holder, backlog []intel.RawItem) []intel.RawItem {
	fresh := agg.Collect(ctx)
	if ctx.Err() != nil {
		return backlog
	}
	if len(fresh) == 0 && holder.Get() != nil {
		// Nothing new this poll; keep the current snapshot instead of
		// re-ranking an unchanged window.
		logging.Debug("poll produced no new items")
		return backlog
	}

	backlog = append(backlog, fresh...)
	if len(backlog) > backlogCap {
		backlog = backlog[len(backlog)-backlogCap:]
	}

	holder.Set(pipe.Run(ctx, backlog))
	return backlog
}
