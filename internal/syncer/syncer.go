/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package syncer drains unsynced play records and device events to the
// reporting API in periodic batches. The device is expected to be
// offline for stretches; records queue locally until an upload
// succeeds.
package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/ayushbirla71/adupApp/internal/models"
)

// Config carries the upload knobs.
type Config struct {
	// URL is the reporting API endpoint batches are POSTed to.
	URL string
	// Interval between upload passes.
	Interval time.Duration
	// BatchSize caps records per request.
	BatchSize int
	// MaxRetries bounds attempts per batch within one pass.
	MaxRetries int
	// RetryDelay is the base backoff; it doubles per attempt.
	RetryDelay time.Duration
}

// batchPayload is the wire shape of one upload.
type batchPayload struct {
	DeviceID string               `json:"device_id"`
	Plays    []models.PlayRecord  `json:"plays,omitempty"`
	Events   []models.DeviceEvent `json:"events,omitempty"`
}

// Syncer runs the periodic upload loop.
type Syncer struct {
	db       *gorm.DB
	client   *http.Client
	cfg      Config
	deviceID string
	logger   zerolog.Logger
}

// New creates a syncer.
func New(database *gorm.DB, deviceID string, cfg Config, logger zerolog.Logger) *Syncer {
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	return &Syncer{
		db:       database,
		client:   &http.Client{Timeout: 30 * time.Second},
		cfg:      cfg,
		deviceID: deviceID,
		logger:   logger.With().Str("component", "syncer").Logger(),
	}
}

// Run uploads on the configured interval until ctx is cancelled. A
// final pass runs on shutdown so short-lived sessions still report.
func (s *Syncer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.SyncOnce(ctx); err != nil {
				s.logger.Warn().Err(err).Msg("sync pass failed, records retained")
			}
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := s.SyncOnce(flushCtx); err != nil {
				s.logger.Warn().Err(err).Msg("final sync pass failed")
			}
			return
		}
	}
}

// SyncOnce drains everything currently unsynced, batch by batch. It
// stops early once a batch exhausts its retries so a dead API does not
// spin the loop.
func (s *Syncer) SyncOnce(ctx context.Context) error {
	for {
		var plays []models.PlayRecord
		if err := s.db.Where("synced = ?", false).
			Order("created_at").
			Limit(s.cfg.BatchSize).
			Find(&plays).Error; err != nil {
			return fmt.Errorf("load play records: %w", err)
		}

		var events []models.DeviceEvent
		if err := s.db.Where("synced = ?", false).
			Order("created_at").
			Limit(s.cfg.BatchSize).
			Find(&events).Error; err != nil {
			return fmt.Errorf("load device events: %w", err)
		}

		if len(plays) == 0 && len(events) == 0 {
			return nil
		}

		if err := s.uploadWithRetry(ctx, batchPayload{
			DeviceID: s.deviceID,
			Plays:    plays,
			Events:   events,
		}); err != nil {
			return err
		}

		if err := s.markSynced(plays, events); err != nil {
			return err
		}

		s.logger.Info().
			Int("plays", len(plays)).
			Int("events", len(events)).
			Msg("batch uploaded")

		if len(plays) < s.cfg.BatchSize && len(events) < s.cfg.BatchSize {
			return nil
		}
	}
}

// uploadWithRetry POSTs one batch. Server errors and network failures
// retry with doubling backoff; a 4xx is terminal, the batch will never
// be accepted and retrying would wedge the queue.
func (s *Syncer) uploadWithRetry(ctx context.Context, batch batchPayload) error {
	data, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := s.cfg.RetryDelay * (1 << (attempt - 1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		status, err := s.post(ctx, data)
		if err != nil {
			lastErr = err
			s.logger.Warn().Err(err).Int("attempt", attempt+1).Msg("upload failed")
			continue
		}

		switch {
		case status >= 200 && status < 300:
			return nil
		case status >= 400 && status < 500:
			s.logger.Error().Int("status", status).Msg("batch rejected, dropping instead of retrying")
			return nil
		default:
			lastErr = fmt.Errorf("upload status %d", status)
			s.logger.Warn().Int("status", status).Int("attempt", attempt+1).Msg("upload failed")
		}
	}
	return fmt.Errorf("upload abandoned after %d attempts: %w", s.cfg.MaxRetries, lastErr)
}

func (s *Syncer) post(ctx context.Context, data []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

func (s *Syncer) markSynced(plays []models.PlayRecord, events []models.DeviceEvent) error {
	if len(plays) > 0 {
		ids := make([]string, 0, len(plays))
		for _, p := range plays {
			ids = append(ids, p.ID)
		}
		if err := s.db.Model(&models.PlayRecord{}).
			Where("id IN ?", ids).
			Update("synced", true).Error; err != nil {
			return fmt.Errorf("mark plays synced: %w", err)
		}
	}
	if len(events) > 0 {
		ids := make([]string, 0, len(events))
		for _, e := range events {
			ids = append(ids, e.ID)
		}
		if err := s.db.Model(&models.DeviceEvent{}).
			Where("id IN ?", ids).
			Update("synced", true).Error; err != nil {
			return fmt.Errorf("mark events synced: %w", err)
		}
	}
	return nil
}
