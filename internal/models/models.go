/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package models defines the locally persisted records: proof-of-play
// rows awaiting upload and notable device lifecycle events.
package models

import "time"

// PlayRecord accounts for one asset's screen time. Records are written
// as playback ends and uploaded in batches by the syncer.
type PlayRecord struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	ContentID string `gorm:"index"`
	FileName  string
	Kind      string `gorm:"type:varchar(16)"`
	// Reason is how the play ended: completed, error or cancelled.
	Reason     string `gorm:"type:varchar(16)"`
	StartedAt  time.Time
	EndedAt    time.Time
	DurationMs int64
	DeviceID   string `gorm:"index"`
	Synced     bool   `gorm:"index"`
	CreatedAt  time.Time
}

// DeviceEvent records device lifecycle moments worth reporting:
// startup, shutdown, push channel loss, reconcile failures.
type DeviceEvent struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	DeviceID  string `gorm:"index"`
	Event     string `gorm:"type:varchar(32)"`
	Detail    string `gorm:"type:text"`
	Synced    bool   `gorm:"index"`
	CreatedAt time.Time
}
