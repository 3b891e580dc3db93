/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

//go:build integration

package integration

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ayushbirla71/adupApp/internal/cache"
	"github.com/ayushbirla71/adupApp/internal/download"
	"github.com/ayushbirla71/adupApp/internal/engine"
	"github.com/ayushbirla71/adupApp/internal/events"
	"github.com/ayushbirla71/adupApp/internal/models"
	"github.com/ayushbirla71/adupApp/internal/playback"
	"github.com/ayushbirla71/adupApp/internal/player"
	"github.com/ayushbirla71/adupApp/internal/playlist"
	"github.com/ayushbirla71/adupApp/internal/proofofplay"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := database.AutoMigrate(&models.PlayRecord{}, &models.DeviceEvent{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return database
}

// TestDeliveryToPlayback walks the whole pipeline: a playlist delivery
// is reconciled against an empty cache directory, assets are fetched
// from a local HTTP server, and the playback loop starts producing
// play records.
func TestDeliveryToPlayback(t *testing.T) {
	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("media bytes for " + r.URL.Path))
	}))
	defer cdn.Close()

	dir := t.TempDir()
	bus := events.NewBus()
	log := zerolog.Nop()

	fs := cache.NewDirFS(dir)
	dl := download.New(dir, bus, log)
	rec := cache.New(fs, dl, bus, log)

	database := setupTestDB(t)
	tracker := proofofplay.New(database, "itest-device", log)
	defer tracker.Close()

	p1 := player.NewSimHandle(0, log)
	p2 := player.NewSimHandle(1, log)
	for _, h := range []*player.SimHandle{p1, p2} {
		h.PrepareDelay = time.Millisecond
		h.DurationFor = func(string) time.Duration { return 10 * time.Millisecond }
	}
	pool := player.NewPool(p1, p2)
	surface := player.NewSimSurface()

	sched := playback.New(pool, surface, fs.URI, tracker, bus, playback.Config{
		ImageDwell:      15 * time.Millisecond,
		PrepareTimeout:  time.Second,
		StallTimeout:    time.Second,
		MaxStallTimeout: 5 * time.Second,
		RestartGrace:    5 * time.Millisecond,
	}, log)
	defer sched.Stop()

	eng := engine.New(rec, sched, bus, log)
	eng.Run()
	defer eng.Close()

	eng.OnPlaylistReceived(engine.Delivery{
		Entries: []playlist.Entry{
			{SourceURL: cdn.URL + "/banner.jpg", ContentID: "101"},
			{SourceURL: cdn.URL + "/spot.mp4", ContentID: "102", DurationSeconds: 1},
		},
		MessageID: "itest-1",
	})

	// Both assets land on disk under their derived names.
	waitFor(t, 5*time.Second, func() bool {
		_, err1 := os.Stat(dir + "/banner_101.jpg")
		_, err2 := os.Stat(dir + "/spot_102.mp4")
		return err1 == nil && err2 == nil
	})

	// The loop runs and wraps: more plays than assets.
	waitFor(t, 5*time.Second, func() bool {
		var count int64
		database.Model(&models.PlayRecord{}).Count(&count)
		return count >= 3
	})

	// A second delivery replaces the playlist and evicts the old files.
	eng.OnPlaylistReceived(engine.Delivery{
		Entries: []playlist.Entry{
			{SourceURL: cdn.URL + "/fresh.jpg", ContentID: "201"},
		},
		MessageID: "itest-2",
	})

	waitFor(t, 5*time.Second, func() bool {
		if _, err := os.Stat(dir + "/fresh_201.jpg"); err != nil {
			return false
		}
		_, err := os.Stat(dir + "/banner_101.jpg")
		return os.IsNotExist(err)
	})
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
