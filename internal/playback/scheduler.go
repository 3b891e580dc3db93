/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package playback runs the endless display loop: it walks the locally
// available assets round-robin, shows images for a fixed dwell, hands
// videos between the two pooled players, and recovers from stalls and
// per-asset errors without stopping the loop.
package playback

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayushbirla71/adupApp/internal/events"
	"github.com/ayushbirla71/adupApp/internal/player"
	"github.com/ayushbirla71/adupApp/internal/playlist"
)

// EndReason says how one asset's screen time ended.
type EndReason string

const (
	ReasonCompleted EndReason = "completed"
	ReasonError     EndReason = "error"
	ReasonCancelled EndReason = "cancelled"
)

// TrackedPlay is one in-flight playback being accounted for. End must
// be called exactly once.
type TrackedPlay interface {
	End(reason EndReason)
}

// Tracker opens play records. The production tracker persists them for
// later upload; tests substitute a recording fake.
type Tracker interface {
	Begin(asset playlist.Asset) TrackedPlay
}

// Config carries the scheduler's timing knobs.
type Config struct {
	// ImageDwell is how long a still image stays on screen.
	ImageDwell time.Duration
	// PrepareTimeout bounds how long a video may buffer before it is
	// skipped.
	PrepareTimeout time.Duration
	// StallTimeout is the minimum stall watchdog duration; the
	// effective value is the asset duration when that is longer.
	StallTimeout time.Duration
	// MaxStallTimeout caps the stall watchdog regardless of asset
	// duration.
	MaxStallTimeout time.Duration
	// RestartGrace is the pause between tearing down one playback
	// session and starting the next, letting in-flight player
	// callbacks drain.
	RestartGrace time.Duration
	// Display geometry, reapplied at every open. The pipeline resets
	// surface properties when media is replaced.
	DisplayWidth    int
	DisplayHeight   int
	DisplayRotation int
}

// Scheduler drives playback sessions. At most one session runs at a
// time; Start replaces the current one.
type Scheduler struct {
	pool    *player.Pool
	surface player.Surface
	uriFor  func(fileName string) string
	tracker Tracker
	bus     *events.Bus
	cfg     Config
	logger  zerolog.Logger

	generation atomic.Uint64

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	current *playlist.Asset
}

// New creates a scheduler. uriFor maps a cached file name to its local
// playback URI. The bus and tracker may be nil in tests.
func New(pool *player.Pool, surface player.Surface, uriFor func(string) string, tracker Tracker, bus *events.Bus, cfg Config, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		pool:    pool,
		surface: surface,
		uriFor:  uriFor,
		tracker: tracker,
		bus:     bus,
		cfg:     cfg,
		logger:  logger.With().Str("component", "playback").Logger(),
	}
}

// Start replaces the running session with a new one over assets. The
// old session is cancelled and fully drained before the new loop
// begins; a short grace pause lets late player callbacks land while
// they are still identifiable as stale.
func (s *Scheduler) Start(assets []playlist.Asset) {
	gen := s.generation.Add(1)

	s.mu.Lock()
	prevCancel, prevDone := s.cancel, s.done
	s.mu.Unlock()

	if prevCancel != nil {
		prevCancel()
		<-prevDone
		time.Sleep(s.cfg.RestartGrace)
	}

	if len(assets) == 0 {
		s.logger.Warn().Msg("no playable assets, going idle")
		s.mu.Lock()
		s.cancel, s.done, s.current = nil, nil, nil
		s.mu.Unlock()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.mu.Lock()
	s.cancel, s.done = cancel, done
	s.mu.Unlock()

	go s.run(ctx, gen, assets, done)
}

// Stop cancels the running session, if any, and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	s.pool.Reset()
}

// Current returns the asset on screen right now, or nil when idle.
func (s *Scheduler) Current() *playlist.Asset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Scheduler) run(ctx context.Context, gen uint64, assets []playlist.Asset, done chan struct{}) {
	defer close(done)
	defer func() {
		s.mu.Lock()
		s.current = nil
		s.mu.Unlock()
	}()

	s.logger.Info().Uint64("generation", gen).Int("assets", len(assets)).Msg("playback loop starting")
	s.publish(events.EventPlaybackLoop, events.Payload{"generation": gen, "assets": len(assets)})

	idle := 0
	for i := 0; ; i = (i + 1) % len(assets) {
		if ctx.Err() != nil {
			return
		}
		asset := assets[i]
		played := false
		switch asset.Kind {
		case playlist.KindImage:
			played = s.playImage(ctx, gen, asset)
		case playlist.KindVideo:
			played = s.playVideo(ctx, gen, asset)
		default:
			s.logger.Warn().Str("file", asset.FileName).Msg("unsupported media type, skipping")
		}
		if played {
			idle = 0
			continue
		}
		// A full pass that put nothing on screen waits one dwell before
		// retrying, so a list of broken assets cannot spin the loop.
		if idle++; idle >= len(assets) {
			idle = 0
			select {
			case <-time.After(s.cfg.ImageDwell):
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *Scheduler) setCurrent(gen uint64, a playlist.Asset) {
	s.mu.Lock()
	cur := a
	s.current = &cur
	s.mu.Unlock()
	s.publish(events.EventNowPlaying, events.Payload{
		"file":       a.FileName,
		"kind":       string(a.Kind),
		"content_id": a.ContentID,
		"generation": gen,
	})
}

func (s *Scheduler) playImage(ctx context.Context, gen uint64, a playlist.Asset) bool {
	uri := s.uriFor(a.FileName)
	if err := s.surface.ShowImage(uri); err != nil {
		s.reportError(a, fmt.Errorf("show image: %w", err))
		return false
	}

	track := s.begin(a)
	s.setCurrent(gen, a)

	dwell := time.NewTimer(s.cfg.ImageDwell)
	defer dwell.Stop()

	select {
	case <-dwell.C:
		s.end(track, ReasonCompleted)
	case <-ctx.Done():
		s.end(track, ReasonCancelled)
		_ = s.surface.Clear()
	}
	return true
}

// playerEvent carries one asynchronous player callback into the
// session loop, tagged with the generation that installed the listener.
type playerEvent struct {
	gen       uint64
	buffered  bool
	completed bool
	err       error
}

type sessionListener struct {
	gen uint64
	ch  chan playerEvent
}

func (l *sessionListener) send(e playerEvent) {
	e.gen = l.gen
	select {
	case l.ch <- e:
	default:
	}
}

func (l *sessionListener) OnBufferingComplete() { l.send(playerEvent{buffered: true}) }
func (l *sessionListener) OnStreamCompleted()   { l.send(playerEvent{completed: true}) }
func (l *sessionListener) OnError(err error)    { l.send(playerEvent{err: err}) }

func (s *Scheduler) playVideo(ctx context.Context, gen uint64, a playlist.Asset) bool {
	active, previous := s.pool.AcquireNext()

	evts := make(chan playerEvent, 8)
	active.SetListener(&sessionListener{gen: gen, ch: evts})
	defer active.SetListener(nil)

	uri := s.uriFor(a.FileName)
	if err := active.Open(uri); err != nil {
		s.reportError(a, fmt.Errorf("open: %w", err))
		return false
	}
	if s.cfg.DisplayWidth > 0 {
		_ = active.SetDisplayRect(0, 0, s.cfg.DisplayWidth, s.cfg.DisplayHeight)
	}
	if s.cfg.DisplayRotation != 0 {
		_ = active.SetRotation(s.cfg.DisplayRotation)
	}

	ready := make(chan error, 1)
	active.PrepareAsync(
		func() { ready <- nil },
		func(err error) { ready <- err },
	)

	prepare := time.NewTimer(s.cfg.PrepareTimeout)
	defer prepare.Stop()

	select {
	case err := <-ready:
		if err != nil {
			_ = active.Stop()
			s.reportError(a, fmt.Errorf("prepare: %w", err))
			return false
		}
	case <-prepare.C:
		_ = active.Stop()
		s.reportError(a, fmt.Errorf("prepare timed out after %s", s.cfg.PrepareTimeout))
		return false
	case <-ctx.Done():
		_ = active.Stop()
		return false
	}

	// Incoming player is ready: release the outgoing one, hide any
	// still image underneath, and start.
	_ = previous.Stop()
	_ = s.surface.Clear()

	track := s.begin(a)
	if err := active.Play(); err != nil {
		s.end(track, ReasonError)
		s.reportError(a, fmt.Errorf("play: %w", err))
		return false
	}
	s.setCurrent(gen, a)

	// The stall watchdog is armed only once buffering completes, so a
	// slow first buffer is governed by the prepare timeout alone.
	stall := time.NewTimer(time.Hour)
	stall.Stop()
	defer stall.Stop()

	for {
		select {
		case evt := <-evts:
			if evt.gen != gen {
				continue
			}
			switch {
			case evt.buffered:
				stall.Reset(s.stallTimeout(a))
			case evt.completed:
				_ = active.SetStillFrame(true)
				_ = active.Stop()
				s.end(track, ReasonCompleted)
				return true
			case evt.err != nil:
				_ = active.Stop()
				s.end(track, ReasonError)
				s.reportError(a, evt.err)
				return true
			}
		case <-stall.C:
			_ = active.Stop()
			s.end(track, ReasonError)
			s.reportError(a, fmt.Errorf("playback stalled after %s", s.stallTimeout(a)))
			return true
		case <-ctx.Done():
			_ = active.Stop()
			s.end(track, ReasonCancelled)
			return true
		}
	}
}

// stallTimeout is the asset duration when known, floored at the
// configured minimum and capped at the maximum.
func (s *Scheduler) stallTimeout(a playlist.Asset) time.Duration {
	d := time.Duration(a.DurationSeconds) * time.Second
	if d < s.cfg.StallTimeout {
		d = s.cfg.StallTimeout
	}
	if d > s.cfg.MaxStallTimeout {
		d = s.cfg.MaxStallTimeout
	}
	return d
}

func (s *Scheduler) begin(a playlist.Asset) TrackedPlay {
	if s.tracker == nil {
		return nil
	}
	return s.tracker.Begin(a)
}

func (s *Scheduler) end(track TrackedPlay, reason EndReason) {
	if track != nil {
		track.End(reason)
	}
}

func (s *Scheduler) reportError(a playlist.Asset, err error) {
	s.logger.Error().Err(err).Str("file", a.FileName).Msg("asset playback failed")
	s.publish(events.EventPlaybackErr, events.Payload{
		"file":  a.FileName,
		"error": err.Error(),
	})
}

func (s *Scheduler) publish(event events.EventType, payload events.Payload) {
	if s.bus != nil {
		s.bus.Publish(event, payload)
	}
}
