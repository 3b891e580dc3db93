/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package proofofplay accounts for every asset's actual screen time.
// Records are written to the local store off the playback path, then
// drained to the reporting API by the syncer.
package proofofplay

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/ayushbirla71/adupApp/internal/models"
	"github.com/ayushbirla71/adupApp/internal/playback"
	"github.com/ayushbirla71/adupApp/internal/playlist"
	"github.com/ayushbirla71/adupApp/internal/telemetry"
)

// Tracker opens and persists play records. Persistence happens on a
// dedicated goroutine so the playback loop never waits on SQLite.
type Tracker struct {
	db       *gorm.DB
	deviceID string
	logger   zerolog.Logger

	records chan models.PlayRecord
	done    chan struct{}
}

// New creates a tracker and starts its writer goroutine.
func New(database *gorm.DB, deviceID string, logger zerolog.Logger) *Tracker {
	t := &Tracker{
		db:       database,
		deviceID: deviceID,
		logger:   logger.With().Str("component", "proofofplay").Logger(),
		records:  make(chan models.PlayRecord, 64),
		done:     make(chan struct{}),
	}
	go t.writer()
	return t
}

// Close flushes queued records and stops the writer.
func (t *Tracker) Close() {
	close(t.records)
	<-t.done
}

// Begin opens a play record for the asset. The returned play must be
// ended exactly once.
func (t *Tracker) Begin(asset playlist.Asset) playback.TrackedPlay {
	return &play{
		tracker: t,
		asset:   asset,
		started: time.Now(),
	}
}

type play struct {
	tracker *Tracker
	asset   playlist.Asset
	started time.Time
	ended   bool
}

// End closes the record. Repeat calls are ignored so a racing watchdog
// and completion callback can never double-count.
func (p *play) End(reason playback.EndReason) {
	if p.ended {
		return
	}
	p.ended = true
	telemetry.PlaybacksTotal.WithLabelValues(string(p.asset.Kind), string(reason)).Inc()

	now := time.Now()
	rec := models.PlayRecord{
		ID:         uuid.NewString(),
		ContentID:  p.asset.ContentID,
		FileName:   p.asset.FileName,
		Kind:       string(p.asset.Kind),
		Reason:     string(reason),
		StartedAt:  p.started,
		EndedAt:    now,
		DurationMs: now.Sub(p.started).Milliseconds(),
		DeviceID:   p.tracker.deviceID,
	}

	select {
	case p.tracker.records <- rec:
	default:
		p.tracker.logger.Warn().Str("file", rec.FileName).Msg("play record queue full, dropping record")
	}
}

// RecordEvent persists a device lifecycle event.
func (t *Tracker) RecordEvent(event, detail string) {
	if t.db == nil {
		return
	}
	rec := models.DeviceEvent{
		ID:       uuid.NewString(),
		DeviceID: t.deviceID,
		Event:    event,
		Detail:   detail,
	}
	if err := t.db.Create(&rec).Error; err != nil {
		t.logger.Error().Err(err).Str("event", event).Msg("failed to persist device event")
	}
}

func (t *Tracker) writer() {
	defer close(t.done)
	for rec := range t.records {
		if t.db == nil {
			continue
		}
		if err := t.db.Create(&rec).Error; err != nil {
			t.logger.Error().Err(err).Str("file", rec.FileName).Msg("failed to persist play record")
		}
	}
}
