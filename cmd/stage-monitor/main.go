package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rpggio/livesync/internal/live"
	"github.com/rpggio/livesync/internal/monitor"
	"github.com/rpggio/livesync/internal/surface"
)

func main() {
	os.Exit(run())
}

func run() int {
	prefsPath := flag.String("prefs", "", "surface preferences file (defaults to "+surface.DefaultPrefsPath()+")")
	logPath := flag.String("log", "", "write logs to this file")
	controller := flag.Bool("controller", false, "act as the session controller: consume remote commands and send heartbeats")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, closeLog, err := newLogger(*logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stage-monitor: %v\n", err)
		return 1
	}
	defer closeLog()

	prefs, err := surface.LoadPrefs(*prefsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stage-monitor: %v\n", err)
		return 1
	}
	if *controller {
		prefs.Controller = true
	}
	if prefs.WorkspaceID == "" {
		fmt.Fprintln(os.Stderr, "stage-monitor: workspace_id is not set in prefs")
		return 1
	}

	if err := runMonitor(ctx, prefs, logger); err != nil {
		fmt.Fprintf(os.Stderr, "stage-monitor: %v\n", err)
		return 1
	}
	return 0
}

func runMonitor(ctx context.Context, prefs surface.Prefs, logger *slog.Logger) error {
	client, err := surface.NewClient(prefs.ServerURL, prefs.Actor())
	if err != nil {
		return err
	}
	cachePath, err := prefs.ResolvedCachePath()
	if err != nil {
		return err
	}
	cache := surface.NewLocalCache(cachePath)

	ws, sid := prefs.WorkspaceID, prefs.SessionID
	opts := surface.SyncerOptions{
		Sources: []surface.Source{
			surface.NewPushSource(client, ws, sid, logger),
			surface.NewServerPoller(client, ws, sid, 0, logger),
			surface.NewLocalSource(cache, logger),
		},
		Logger: logger,
	}
	if prefs.Controller {
		ctrl, err := surface.NewController(surface.ControllerOptions{
			Cache:       cache,
			Server:      client,
			WorkspaceID: ws,
			SessionID:   sid,
			Logger:      logger,
		})
		if err != nil {
			return err
		}
		opts.Commands = surface.NewCommandConsumer()
		opts.OnCommand = ctrl.Apply
		opts.Background = append(opts.Background, surface.NewHeartbeat(client, ws, sid, prefs.Actor().Email, logger))
	}
	syncer := surface.NewSyncer(opts)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	syncErr := make(chan error, 1)
	go func() { syncErr <- syncer.Run(ctx) }()

	var timerLayout *live.StageTimerLayout
	if layout, err := client.StageTimerLayout(ctx, ws); err != nil {
		logger.Warn("stage timer layout unavailable", "workspace_id", ws, "error", err)
	} else {
		timerLayout = &layout
	}

	model := monitor.New(monitor.Options{
		Context:     ctx,
		Frames:      syncer,
		Commands:    client,
		WorkspaceID: ws,
		SessionID:   sid,
		StorageFull: cache.StorageFull,
		TimerLayout: timerLayout,
	})
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return err
	}

	cancel()
	return <-syncErr
}

func newLogger(path string) (*slog.Logger, func(), error) {
	if path == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return slog.New(slog.NewTextHandler(file, nil)), func() { _ = file.Close() }, nil
}
