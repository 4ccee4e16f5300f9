// Command schedulerd is a demo/ops process that drives a scheduler.Scheduler
// to completion: it loads configuration, registers a tagged heartbeat task,
// and runs Tick in a loop until signalled to stop.
//
// Usage:
//
//	schedulerd [--config path/to/config.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/snehjoshi/tickwork/clock"
	"github.com/snehjoshi/tickwork/internal/config"
	"github.com/snehjoshi/tickwork/internal/instance"
	"github.com/snehjoshi/tickwork/internal/metrics"
	"github.com/snehjoshi/tickwork/scheduler"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "schedulerd: %v\n", err)
		os.Exit(1)
	}
}

// heartbeatTask adapts a demo func into a task.Task, tagged with an
// instance-minted ID so the same task handle that Remove would use for
// identity can also be correlated across log lines.
type heartbeatTask struct {
	id    string
	beats int
	reg   *metrics.Registry
}

func (h *heartbeatTask) Run() {
	h.beats++
	h.reg.TasksRun.Inc(metrics.KindRecurring)
	slog.Info("heartbeat", "task_id", h.id, "beats", h.beats)
}

func run() error {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// ── 1. Load configuration ────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// ── 2. Set up structured logger ──────────────────────────────────────────
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("schedulerd starting")

	// ── 3. Construct the clock ───────────────────────────────────────────────
	c := clock.New(time.Duration(cfg.Clock.RefreshIntervalMs) * time.Millisecond)
	if cfg.Clock.AutoStart {
		c.StartRefresher()
		defer c.StopRefresher()
	}

	// ── 4. Construct the scheduler ────────────────────────────────────────────
	metricsReg := &metrics.Registry{}
	s := scheduler.New(
		scheduler.WithClock(c),
		scheduler.WithTickBlocksUntilAvailable(cfg.Scheduler.TickBlocksUntilAvailable),
	)

	// ── 5. Register a demo heartbeat task, tagged with a minted ID ──────────
	id, err := instance.NewID()
	if err != nil {
		return fmt.Errorf("mint heartbeat task id: %w", err)
	}
	heartbeat := &heartbeatTask{id: id, reg: metricsReg}
	if err := s.ScheduleWithFixedDelay(heartbeat, 0, 5000); err != nil {
		return fmt.Errorf("schedule heartbeat: %w", err)
	}
	metricsReg.TasksScheduled.Inc(metrics.KindRecurring)

	// ── 6. Serve metrics ──────────────────────────────────────────────────────
	if cfg.Metrics.Enabled {
		metricsAddr := fmt.Sprintf(":%d", cfg.Metrics.Port)
		go func() {
			slog.Info("metrics server listening", "addr", metricsAddr)
			if err := http.ListenAndServe(metricsAddr, metricsReg.Handler()); err != nil {
				slog.Warn("metrics server error", "err", err)
			}
		}()
	}

	// ── 7. Run Tick in a loop until signalled to stop ────────────────────────
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-quit
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	for {
		n, err := s.TickContext(ctx)
		if err != nil {
			slog.Info("schedulerd stopped", "reason", err)
			return nil
		}
		metricsReg.TicksTotal.Inc(metrics.TickKey)
		if n == 0 {
			metricsReg.TickEmptyTotal.Inc(metrics.TickKey)
		}
	}
}
