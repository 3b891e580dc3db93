/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package player

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// SimHandle is a timer-driven Handle used in development and tests. It
// buffers for a fixed delay and "plays" each asset for a duration
// chosen by the DurationFor hook.
type SimHandle struct {
	id     int
	logger zerolog.Logger

	// PrepareDelay is how long PrepareAsync takes before signalling ready.
	PrepareDelay time.Duration
	// DurationFor picks the simulated playback length for a URI.
	DurationFor func(uri string) time.Duration

	mu       sync.Mutex
	listener Listener
	uri      string
	playing  *time.Timer
	closed   bool
}

// NewSimHandle creates a simulated player handle.
func NewSimHandle(id int, logger zerolog.Logger) *SimHandle {
	return &SimHandle{
		id:           id,
		logger:       logger.With().Str("component", "player").Int("handle", id).Logger(),
		PrepareDelay: 5 * time.Millisecond,
		DurationFor:  func(string) time.Duration { return 50 * time.Millisecond },
	}
}

func (h *SimHandle) ID() int { return h.id }

func (h *SimHandle) Open(uri string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return fmt.Errorf("handle %d: open on closed handle", h.id)
	}
	h.stopLocked()
	h.uri = uri
	return nil
}

func (h *SimHandle) SetListener(l Listener) {
	h.mu.Lock()
	h.listener = l
	h.mu.Unlock()
}

func (h *SimHandle) PrepareAsync(onReady func(), onError func(error)) {
	h.mu.Lock()
	delay := h.PrepareDelay
	uri := h.uri
	closed := h.closed
	h.mu.Unlock()

	go func() {
		if closed || uri == "" {
			onError(fmt.Errorf("handle %d: nothing opened", h.id))
			return
		}
		time.Sleep(delay)
		h.mu.Lock()
		l := h.listener
		h.mu.Unlock()
		if l != nil {
			l.OnBufferingComplete()
		}
		onReady()
	}()
}

func (h *SimHandle) Play() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return fmt.Errorf("handle %d: play on closed handle", h.id)
	}
	if h.uri == "" {
		return fmt.Errorf("handle %d: play with nothing opened", h.id)
	}
	h.logger.Debug().Str("uri", h.uri).Msg("sim playback start")

	dur := h.DurationFor(h.uri)
	h.playing = time.AfterFunc(dur, func() {
		h.mu.Lock()
		l := h.listener
		h.mu.Unlock()
		if l != nil {
			l.OnStreamCompleted()
		}
	})
	return nil
}

func (h *SimHandle) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopLocked()
	return nil
}

func (h *SimHandle) stopLocked() {
	if h.playing != nil {
		h.playing.Stop()
		h.playing = nil
	}
	h.uri = ""
}

func (h *SimHandle) SetStillFrame(on bool) error { return nil }

func (h *SimHandle) SetDisplayRect(x, y, width, height int) error { return nil }

func (h *SimHandle) SetRotation(degrees int) error { return nil }

func (h *SimHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopLocked()
	h.closed = true
	return nil
}

// SimSurface is a no-op image Surface that records the last shown URI.
type SimSurface struct {
	mu   sync.Mutex
	last string
}

// NewSimSurface creates a simulated image surface.
func NewSimSurface() *SimSurface { return &SimSurface{} }

func (s *SimSurface) ShowImage(uri string) error {
	s.mu.Lock()
	s.last = uri
	s.mu.Unlock()
	return nil
}

func (s *SimSurface) Clear() error {
	s.mu.Lock()
	s.last = ""
	s.mu.Unlock()
	return nil
}

// Showing returns the URI of the image currently on screen, if any.
func (s *SimSurface) Showing() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
