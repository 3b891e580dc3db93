/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package engine coordinates playlist deliveries end to end: change
// detection, cache reconciliation, and restarting the playback loop.
// Deliveries are processed one at a time in arrival order; a newer
// delivery preempts the reconciliation of the one before it.
package engine

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ayushbirla71/adupApp/internal/cache"
	"github.com/ayushbirla71/adupApp/internal/events"
	"github.com/ayushbirla71/adupApp/internal/playlist"
)

// Reconciler converges the local media directory to a playlist.
type Reconciler interface {
	Reconcile(ctx context.Context, assets []playlist.Asset) (cache.Result, error)
}

// Player restarts the playback loop over a new asset set.
type Player interface {
	Start(assets []playlist.Asset)
}

// Delivery is one playlist push from the server.
type Delivery struct {
	Entries []playlist.Entry
	// Ticker is the crawl text to show alongside the creatives.
	Ticker string
	// ForceRefresh bypasses change detection, replaying even an
	// identical playlist. Set when the placeholder creative changed.
	ForceRefresh bool
	// MessageID identifies the delivery for acknowledgment.
	MessageID string
}

// Engine owns the delivery worker.
type Engine struct {
	tracker    *playlist.Tracker
	reconciler Reconciler
	player     Player
	bus        *events.Bus
	logger     zerolog.Logger

	deliveries chan Delivery

	mu        sync.Mutex
	preempt   context.CancelFunc
	inflight  string
	runCancel context.CancelFunc
	done      chan struct{}
}

// New creates an engine. Run must be called before deliveries are
// processed.
func New(reconciler Reconciler, player Player, bus *events.Bus, logger zerolog.Logger) *Engine {
	return &Engine{
		tracker:    playlist.NewTracker(),
		reconciler: reconciler,
		player:     player,
		bus:        bus,
		logger:     logger.With().Str("component", "engine").Logger(),
		deliveries: make(chan Delivery, 16),
	}
}

// Run starts the delivery worker. It returns immediately.
func (e *Engine) Run() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	e.mu.Lock()
	e.runCancel = cancel
	e.done = done
	e.mu.Unlock()
	go e.work(ctx, done)
}

// Close stops the worker and waits for it to exit.
func (e *Engine) Close() {
	e.mu.Lock()
	cancel, done := e.runCancel, e.done
	e.runCancel, e.done = nil, nil
	e.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

// OnPlaylistReceived enqueues a delivery. If a different playlist is
// mid-reconciliation its work is cancelled so the worker reaches the
// newer delivery sooner; a redundant redelivery of the playlist being
// reconciled must not interrupt its own pass, the worker will discard
// it as a no-op once it drains the queue. Never blocks the push
// channel's receive goroutine.
func (e *Engine) OnPlaylistReceived(d Delivery) {
	sig := playlist.Signature(playlist.FileNames(d.Entries))

	e.mu.Lock()
	if e.preempt != nil && (d.ForceRefresh || sig != e.inflight) {
		e.preempt()
	}
	e.mu.Unlock()

	select {
	case e.deliveries <- d:
	default:
		e.logger.Warn().Str("message_id", d.MessageID).Msg("delivery queue full, dropping oldest")
		select {
		case <-e.deliveries:
		default:
		}
		e.deliveries <- d
	}
}

func (e *Engine) work(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case d := <-e.deliveries:
			e.process(ctx, d)
		case <-ctx.Done():
			return
		}
	}
}

func (e *Engine) process(parent context.Context, d Delivery) {
	if d.Ticker != "" {
		e.publish(events.EventTickerUpdate, events.Payload{"text": d.Ticker})
	}
	if d.MessageID != "" {
		e.publish(events.EventPlaylistAck, events.Payload{"message_id": d.MessageID})
	}

	names := playlist.FileNames(d.Entries)
	if !e.tracker.ShouldUpdate(names, d.ForceRefresh) {
		e.logger.Info().Int("entries", len(d.Entries)).Msg("playlist unchanged, keeping current loop")
		return
	}

	ctx, cancel := context.WithCancel(parent)
	e.mu.Lock()
	e.preempt = cancel
	e.inflight = playlist.Signature(names)
	e.mu.Unlock()
	defer func() {
		cancel()
		e.mu.Lock()
		e.preempt = nil
		e.inflight = ""
		e.mu.Unlock()
	}()

	assets := playlist.Resolve(d.Entries)
	res, err := e.reconciler.Reconcile(ctx, assets)
	if err != nil {
		if ctx.Err() != nil {
			e.logger.Info().Str("message_id", d.MessageID).Msg("reconciliation preempted by newer delivery")
			return
		}
		e.logger.Error().Err(err).Msg("reconciliation failed, keeping current loop")
		return
	}

	e.logger.Info().
		Int("entries", len(d.Entries)).
		Int("available", len(res.Available)).
		Bool("force_refresh", d.ForceRefresh).
		Msg("restarting playback with new playlist")
	e.player.Start(res.Available)
}

func (e *Engine) publish(event events.EventType, payload events.Payload) {
	if e.bus != nil {
		e.bus.Publish(event, payload)
	}
}
