/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package player

import "sync"

// Pool owns two Handles and alternates between them. The handle
// returned as active serves the incoming asset while the previous one
// may still be rendering the outgoing asset.
type Pool struct {
	mu      sync.Mutex
	handles [2]Handle
	next    int
}

// NewPool builds a pool from exactly two handles.
func NewPool(a, b Handle) *Pool {
	return &Pool{handles: [2]Handle{a, b}}
}

// AcquireNext returns the handle to use for the next asset plus the
// previously active one, then flips the toggle. Successive calls
// strictly alternate.
func (p *Pool) AcquireNext() (active, previous Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	active = p.handles[p.next]
	previous = p.handles[1-p.next]
	p.next = 1 - p.next
	return active, previous
}

// Reset makes the next AcquireNext return the first handle again and
// stops both pipelines. Called when a playback session is torn down.
func (p *Pool) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next = 0
	for _, h := range p.handles {
		if h != nil {
			_ = h.Stop()
		}
	}
}

// Close releases both handles.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var first error
	for _, h := range p.handles {
		if h == nil {
			continue
		}
		if err := h.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
