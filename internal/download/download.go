/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package download fetches remote media files into the local cache
// directory, writing through a temp file so a torn download never
// leaves a half-written asset behind.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayushbirla71/adupApp/internal/events"
)

const progressInterval = 512 * 1024 // bytes between progress events

// HTTPDownloader fetches assets over HTTP(S).
type HTTPDownloader struct {
	client *http.Client
	dir    string
	bus    *events.Bus
	logger zerolog.Logger
}

// New creates a downloader that writes into dir. The bus may be nil.
func New(dir string, bus *events.Bus, logger zerolog.Logger) *HTTPDownloader {
	return &HTTPDownloader{
		client: &http.Client{Timeout: 5 * time.Minute},
		dir:    dir,
		bus:    bus,
		logger: logger.With().Str("component", "download").Logger(),
	}
}

// Fetch downloads sourceURL to fileName inside the downloader's
// directory. The file appears atomically: it is written to a temp name
// and renamed only on success.
func (d *HTTPDownloader) Fetch(ctx context.Context, sourceURL, fileName string) error {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", sourceURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: unexpected status %d", sourceURL, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(d.dir, "."+fileName+".part-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	written, err := d.copyWithProgress(tmp, resp.Body, fileName, resp.ContentLength)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", fileName, err)
	}

	if err := os.Rename(tmpName, filepath.Join(d.dir, fileName)); err != nil {
		return fmt.Errorf("finalize %s: %w", fileName, err)
	}

	d.logger.Debug().
		Str("file", fileName).
		Int64("bytes", written).
		Dur("elapsed", time.Since(start)).
		Msg("download complete")
	return nil
}

func (d *HTTPDownloader) copyWithProgress(dst io.Writer, src io.Reader, fileName string, total int64) (int64, error) {
	var written, sinceReport int64
	buf := make([]byte, 32*1024)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return written, werr
			}
			written += int64(n)
			sinceReport += int64(n)
			if sinceReport >= progressInterval {
				sinceReport = 0
				d.publishProgress(fileName, written, total)
			}
		}
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return written, err
		}
	}
}

func (d *HTTPDownloader) publishProgress(fileName string, written, total int64) {
	if d.bus == nil {
		return
	}
	d.bus.Publish(events.EventDownloadProgress, events.Payload{
		"file":  fileName,
		"bytes": written,
		"total": total,
	})
}
