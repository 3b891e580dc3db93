/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache reconciles the on-device media directory against the
// most recently delivered playlist: stale files are evicted, missing
// files are fetched, and the resulting set of locally playable assets
// is reported back in playlist order.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayushbirla71/adupApp/internal/events"
	"github.com/ayushbirla71/adupApp/internal/playlist"
)

// Filesystem abstracts the local media directory. The production
// implementation is backed by the OS filesystem; tests substitute an
// in-memory one.
type Filesystem interface {
	// EnsureDir creates the media directory if it does not exist.
	EnsureDir() error
	// List returns the file names currently present in the directory.
	List() ([]string, error)
	// Remove deletes a file by name. Removing a missing file is not an error.
	Remove(name string) error
	// Exists reports whether a file is present.
	Exists(name string) (bool, error)
	// URI returns the local playback URI for a file name.
	URI(name string) string
}

// Downloader fetches a remote asset into the media directory under the
// given file name.
type Downloader interface {
	Fetch(ctx context.Context, sourceURL, fileName string) error
}

// Error is a structural reconciliation failure: the directory itself
// could not be prepared or enumerated. Per-asset fetch failures are
// absorbed, not wrapped in Error.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("cache %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Result describes the outcome of one reconciliation pass.
type Result struct {
	// Available holds the assets that are present locally after the
	// pass, in playlist order.
	Available []playlist.Asset
	// Evicted counts files removed because no playlist entry claims them.
	Evicted int
	// Fetched counts files downloaded during the pass.
	Fetched int
	// Failed counts assets whose download failed and were skipped.
	Failed int
}

// Reconciler drives the evict-then-fetch pass.
type Reconciler struct {
	fs         Filesystem
	downloader Downloader
	bus        *events.Bus
	logger     zerolog.Logger
}

// New creates a reconciler. The bus may be nil in tests.
func New(fs Filesystem, downloader Downloader, bus *events.Bus, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		fs:         fs,
		downloader: downloader,
		bus:        bus,
		logger:     logger.With().Str("component", "cache").Logger(),
	}
}

// Reconcile brings the media directory in line with the given assets.
//
// Files not named by any asset are deleted concurrently, best effort: a
// failed delete is logged and left behind for the next pass. Missing
// assets are then fetched one at a time, in playlist order; a failed
// fetch skips that asset and continues. A non-nil error is returned
// only for structural failures, in which case the pass is abandoned.
func (r *Reconciler) Reconcile(ctx context.Context, assets []playlist.Asset) (Result, error) {
	var res Result
	start := time.Now()

	if err := r.fs.EnsureDir(); err != nil {
		return res, &Error{Op: "ensure dir", Err: err}
	}

	existing, err := r.fs.List()
	if err != nil {
		return res, &Error{Op: "list", Err: err}
	}

	wanted := make(map[string]bool, len(assets))
	for _, a := range assets {
		wanted[a.FileName] = true
	}

	res.Evicted = r.evictStale(existing, wanted)

	for _, a := range assets {
		if err := ctx.Err(); err != nil {
			return res, &Error{Op: "reconcile", Err: err}
		}

		ok, err := r.fs.Exists(a.FileName)
		if err != nil {
			return res, &Error{Op: "stat", Err: err}
		}
		if ok {
			res.Available = append(res.Available, a)
			continue
		}

		if err := r.fetch(ctx, a); err != nil {
			if ctx.Err() != nil {
				return res, &Error{Op: "fetch", Err: ctx.Err()}
			}
			r.logger.Warn().Err(err).
				Str("file", a.FileName).
				Str("url", a.SourceURL).
				Msg("download failed, skipping asset")
			res.Failed++
			continue
		}
		res.Fetched++
		res.Available = append(res.Available, a)
	}

	r.logger.Info().
		Int("available", len(res.Available)).
		Int("fetched", res.Fetched).
		Int("evicted", res.Evicted).
		Int("failed", res.Failed).
		Msg("reconcile pass complete")

	r.publish(events.EventReconcileDone, events.Payload{
		"available":   len(res.Available),
		"fetched":     res.Fetched,
		"evicted":     res.Evicted,
		"failed":      res.Failed,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return res, nil
}

// evictStale deletes unclaimed files concurrently and returns how many
// were removed.
func (r *Reconciler) evictStale(existing []string, wanted map[string]bool) int {
	var stale []string
	for _, name := range existing {
		if !wanted[name] {
			stale = append(stale, name)
		}
	}
	if len(stale) == 0 {
		return 0
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		evicted int
	)
	for _, name := range stale {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			if err := r.fs.Remove(name); err != nil {
				r.logger.Warn().Err(err).Str("file", name).Msg("failed to evict file")
				return
			}
			mu.Lock()
			evicted++
			mu.Unlock()
			r.publish(events.EventFileEvicted, events.Payload{"file": name})
		}(name)
	}
	wg.Wait()
	return evicted
}

func (r *Reconciler) fetch(ctx context.Context, a playlist.Asset) error {
	r.publish(events.EventDownloadStarted, events.Payload{"file": a.FileName, "url": a.SourceURL})
	if err := r.downloader.Fetch(ctx, a.SourceURL, a.FileName); err != nil {
		r.publish(events.EventDownloadFailed, events.Payload{"file": a.FileName, "error": err.Error()})
		return err
	}
	r.publish(events.EventDownloadCompleted, events.Payload{"file": a.FileName})
	return nil
}

func (r *Reconciler) publish(event events.EventType, payload events.Payload) {
	if r.bus != nil {
		r.bus.Publish(event, payload)
	}
}
