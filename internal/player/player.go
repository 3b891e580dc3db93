/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package player abstracts the device media pipeline. A Handle is one
// hardware (or simulated) video player instance; the Pool owns exactly
// two of them and alternates which one serves the next asset so the
// outgoing and incoming players can overlap.
package player

// Listener receives asynchronous player callbacks. Callbacks are
// invoked from the backend's own goroutine; implementations must not
// block.
type Listener interface {
	// OnBufferingComplete fires once the pipeline has enough data to
	// render. Playback stall detection keys off this.
	OnBufferingComplete()
	// OnStreamCompleted fires when the current asset has played to its end.
	OnStreamCompleted()
	// OnError fires on any unrecoverable pipeline error.
	OnError(err error)
}

// Handle is a single player instance.
type Handle interface {
	// ID identifies the handle within its pool, for logging.
	ID() int
	// Open loads a media URI into the pipeline. It replaces any
	// previously opened media.
	Open(uri string) error
	// SetListener installs the callback sink. Passing nil detaches.
	SetListener(l Listener)
	// PrepareAsync starts buffering. Exactly one of onReady or onError
	// is invoked later, from the backend goroutine.
	PrepareAsync(onReady func(), onError func(error))
	// Play starts rendering prepared media.
	Play() error
	// Stop halts playback and releases the pipeline for reuse.
	Stop() error
	// SetStillFrame freezes the last rendered frame on screen. Used at
	// stream end so the display never goes black between assets.
	SetStillFrame(on bool) error
	// SetDisplayRect positions the video surface.
	SetDisplayRect(x, y, width, height int) error
	// SetRotation rotates the video surface, in degrees.
	SetRotation(degrees int) error
	// Close releases the handle permanently.
	Close() error
}

// Surface renders still images. It is separate from Handle because
// image display needs no pipeline.
type Surface interface {
	// ShowImage displays the image at uri.
	ShowImage(uri string) error
	// Clear removes the currently shown image.
	Clear() error
}
