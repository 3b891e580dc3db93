/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package playlist holds the creative playlist model: entries as delivered
// by the push channel, their resolved local asset names, and change
// detection between consecutive deliveries.
package playlist

import (
	"path"
	"strings"
)

// Kind classifies an asset by its file extension.
type Kind string

const (
	KindImage       Kind = "image"
	KindVideo       Kind = "video"
	KindUnsupported Kind = "unsupported"
)

// Entry is one creative unit as delivered by the push channel. Entries are
// immutable; a new delivery always carries a complete new list.
type Entry struct {
	SourceURL       string
	ContentID       string
	DurationSeconds int
	IsPlaceholder   bool
	// DeliveredAt is the delivery timestamp in unix milliseconds; only
	// meaningful for placeholder entries, where it keys the file name.
	DeliveredAt int64
}

// Asset is a playlist entry resolved to a stable local file name.
type Asset struct {
	FileName string
	Kind     Kind
	Entry
}

var (
	imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true}
	videoExts = map[string]bool{".mp4": true, ".mkv": true, ".avi": true, ".webm": true, ".mov": true}
)

// KindOf derives the asset kind from a file name. Names without a
// recognized extension are unsupported, never an error.
func KindOf(fileName string) Kind {
	ext := strings.ToLower(path.Ext(fileName))
	switch {
	case imageExts[ext]:
		return KindImage
	case videoExts[ext]:
		return KindVideo
	default:
		return KindUnsupported
	}
}

// Resolve maps entries to assets, preserving order.
func Resolve(entries []Entry) []Asset {
	assets := make([]Asset, 0, len(entries))
	for _, entry := range entries {
		name := FileName(entry)
		assets = append(assets, Asset{
			FileName: name,
			Kind:     KindOf(name),
			Entry:    entry,
		})
	}
	return assets
}

// FileNames returns the ordered file names for entries.
func FileNames(entries []Entry) []string {
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, FileName(entry))
	}
	return names
}
