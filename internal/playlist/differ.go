/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playlist

import "strings"

// Tracker retains the signature of the last accepted playlist and decides
// whether a new delivery requires cache reconciliation and a playback
// restart. One Tracker belongs to one engine instance; it is not shared.
type Tracker struct {
	lastSignature string
}

// NewTracker creates an empty tracker; the first delivery always updates.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Signature joins ordered file names into a comparable signature string.
func Signature(fileNames []string) string {
	return strings.Join(fileNames, ",")
}

// ShouldUpdate reports whether the delivery with the given ordered file
// names must be reconciled. forceRefresh bypasses the signature check for
// deliveries where only placeholder content rotated. On true the retained
// signature is updated immediately, before reconciliation runs, so a
// crashed pass is not retried forever on the same input.
func (t *Tracker) ShouldUpdate(fileNames []string, forceRefresh bool) bool {
	sig := Signature(fileNames)
	if sig == t.lastSignature && !forceRefresh {
		return false
	}
	t.lastSignature = sig
	return true
}

// LastSignature returns the retained signature, for diagnostics.
func (t *Tracker) LastSignature() string {
	return t.lastSignature
}
