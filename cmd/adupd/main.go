/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ayushbirla71/adupApp/internal/cache"
	"github.com/ayushbirla71/adupApp/internal/config"
	"github.com/ayushbirla71/adupApp/internal/db"
	"github.com/ayushbirla71/adupApp/internal/download"
	"github.com/ayushbirla71/adupApp/internal/engine"
	"github.com/ayushbirla71/adupApp/internal/events"
	"github.com/ayushbirla71/adupApp/internal/logbuffer"
	"github.com/ayushbirla71/adupApp/internal/logging"
	"github.com/ayushbirla71/adupApp/internal/playback"
	"github.com/ayushbirla71/adupApp/internal/player"
	"github.com/ayushbirla71/adupApp/internal/proofofplay"
	"github.com/ayushbirla71/adupApp/internal/push"
	"github.com/ayushbirla71/adupApp/internal/server"
	"github.com/ayushbirla71/adupApp/internal/syncer"
	"github.com/ayushbirla71/adupApp/internal/telemetry"
	"github.com/ayushbirla71/adupApp/internal/version"
)

var (
	logger zerolog.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "adupd",
	Short: "adupd - unattended signage display agent",
	Long:  "adupd loops remotely scheduled creatives on a signage display, keeping the local cache and proof-of-play reporting in sync with the server.",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the display agent",
	Long:  "Connect to the push channel, reconcile the media cache and drive the playback loop until terminated",
	RunE:  runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Version)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// exitHandler turns a remote exit command into the same path as SIGTERM.
type exitHandler struct {
	once sync.Once
	quit chan os.Signal
}

func (h *exitHandler) Exit() {
	h.once.Do(func() { h.quit <- syscall.SIGTERM })
}

func runServe(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logBuf := logbuffer.New(5000)
	logger = logging.SetupWithWriter(cfg.Environment, logbuffer.NewWriter(logBuf, nil))

	logger.Info().
		Str("version", version.Version).
		Str("device_id", cfg.DeviceID).
		Str("group_id", cfg.GroupID).
		Msg("display agent starting")

	database, err := db.Connect(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open local store: %w", err)
	}
	defer db.Close(database)

	bus := events.NewBus()
	telemetry.NewCollector(bus).Start()

	tracker := proofofplay.New(database, cfg.DeviceID, logger)
	defer tracker.Close()
	tracker.RecordEvent("startup", "version "+version.Version)

	// Media cache and reconciliation.
	fs := cache.NewDirFS(cfg.CacheDir)
	if err := fs.EnsureDir(); err != nil {
		return fmt.Errorf("prepare cache dir: %w", err)
	}
	downloader := download.New(cfg.CacheDir, bus, logger)
	reconciler := cache.New(fs, downloader, bus, logger)

	// Playback pipeline. The sim backend stands in anywhere the real
	// panel bindings are not compiled in.
	if cfg.PlayerBackend != "sim" {
		logger.Warn().Str("backend", cfg.PlayerBackend).Msg("player backend not available in this build, using sim")
	}
	p1 := player.NewSimHandle(0, logger)
	p2 := player.NewSimHandle(1, logger)
	pool := player.NewPool(p1, p2)
	defer pool.Close()
	surface := player.NewSimSurface()

	sched := playback.New(pool, surface, fs.URI, tracker, bus, playback.Config{
		ImageDwell:      cfg.ImageDwell,
		PrepareTimeout:  cfg.PrepareTimeout,
		StallTimeout:    cfg.StallTimeout,
		MaxStallTimeout: cfg.MaxStallTimeout,
		RestartGrace:    cfg.RestartGrace,
		DisplayWidth:    cfg.DisplayWidth,
		DisplayHeight:   cfg.DisplayHeight,
		DisplayRotation: cfg.DisplayRotation,
	}, logger)
	defer sched.Stop()

	eng := engine.New(reconciler, sched, bus, logger)
	eng.Run()
	defer eng.Close()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Push channel.
	receiver, err := push.Connect(cfg.NATSURL, cfg.GroupID, cfg.DeviceID, eng, &exitHandler{quit: quit}, logger)
	if err != nil {
		return fmt.Errorf("connect push channel: %w", err)
	}
	defer receiver.Close()
	if err := receiver.Start(); err != nil {
		return fmt.Errorf("start push channel: %w", err)
	}

	// Proof-of-play upload loop.
	bgCtx, bgCancel := context.WithCancel(context.Background())
	var bgWG sync.WaitGroup
	if cfg.LogsAPIURL != "" {
		s := syncer.New(database, cfg.DeviceID, syncer.Config{
			URL:        cfg.LogsAPIURL,
			Interval:   cfg.SyncInterval,
			BatchSize:  cfg.SyncBatchSize,
			MaxRetries: cfg.SyncMaxRetries,
		}, logger)
		bgWG.Add(1)
		go func() {
			defer bgWG.Done()
			s.Run(bgCtx)
		}()
	} else {
		logger.Warn().Msg("no logs API configured, play records stay local")
	}

	// Diagnostics server.
	addr := net.JoinHostPort(cfg.HTTPBind, strconv.Itoa(cfg.HTTPPort))
	srv := server.New(addr, logBuf, bus, sched, logger)
	srvErr := make(chan error, 1)
	srv.Start(srvErr)

	select {
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("shutting down gracefully...")
	case err := <-srvErr:
		logger.Error().Err(err).Msg("diagnostics server failed")
	}

	tracker.RecordEvent("shutdown", "")

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(timeoutCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	bgCancel()
	bgWG.Wait()

	logger.Info().Msg("display agent stopped")
	return nil
}
