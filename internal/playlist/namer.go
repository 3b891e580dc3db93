/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playlist

import (
	"fmt"
	"strings"
)

// FileName derives the stable local file name for an entry. The base name
// is the final path segment of the source URL with the query stripped.
// A content ID is folded in before the extension so two creatives sharing
// a source file name never collide on disk. Placeholder entries fold in
// the delivery timestamp instead, so a refreshed placeholder is a new file
// rather than a cached duplicate of the previous one.
func FileName(entry Entry) string {
	url := entry.SourceURL
	base := url
	if idx := strings.LastIndex(url, "/"); idx >= 0 {
		base = url[idx+1:]
	}
	if idx := strings.Index(base, "?"); idx >= 0 {
		base = base[:idx]
	}

	suffix := ""
	switch {
	case entry.IsPlaceholder:
		suffix = fmt.Sprintf("_%d", entry.DeliveredAt)
	case entry.ContentID != "":
		suffix = "_" + entry.ContentID
	}
	if suffix == "" {
		return base
	}

	dot := strings.LastIndex(base, ".")
	if dot == -1 {
		return base + suffix
	}
	return base[:dot] + suffix + base[dot:]
}
