/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package cache

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ayushbirla71/adupApp/internal/playlist"
)

// memFS is an in-memory Filesystem for tests.
type memFS struct {
	mu      sync.Mutex
	files   map[string]bool
	listErr error
}

func newMemFS(names ...string) *memFS {
	files := make(map[string]bool, len(names))
	for _, n := range names {
		files[n] = true
	}
	return &memFS{files: files}
}

func (m *memFS) EnsureDir() error { return nil }

func (m *memFS) List() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var names []string
	for n := range m.files {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (m *memFS) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, name)
	return nil
}

func (m *memFS) Exists(name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.files[name], nil
}

func (m *memFS) URI(name string) string { return "mem://" + name }

// fakeDownloader records fetches and can fail selected file names.
type fakeDownloader struct {
	fs      *memFS
	failing map[string]bool
	fetched []string
}

func (d *fakeDownloader) Fetch(_ context.Context, _ string, fileName string) error {
	if d.failing[fileName] {
		return errors.New("simulated network failure")
	}
	d.fetched = append(d.fetched, fileName)
	d.fs.mu.Lock()
	d.fs.files[fileName] = true
	d.fs.mu.Unlock()
	return nil
}

func entryNamed(url string) playlist.Entry {
	return playlist.Entry{SourceURL: url}
}

func assetsFor(t *testing.T, urls ...string) []playlist.Asset {
	t.Helper()
	entries := make([]playlist.Entry, 0, len(urls))
	for _, u := range urls {
		entries = append(entries, entryNamed(u))
	}
	return playlist.Resolve(entries)
}

func TestReconcileFetchesMissingFiles(t *testing.T) {
	fs := newMemFS()
	dl := &fakeDownloader{fs: fs}
	r := New(fs, dl, nil, zerolog.Nop())

	assets := assetsFor(t, "https://cdn.example.com/a.jpg", "https://cdn.example.com/b.mp4")
	res, err := r.Reconcile(context.Background(), assets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Fetched != 2 || len(res.Available) != 2 {
		t.Fatalf("got fetched=%d available=%d, want 2/2", res.Fetched, len(res.Available))
	}
	// Downloads happen sequentially in playlist order.
	if dl.fetched[0] != "a.jpg" || dl.fetched[1] != "b.mp4" {
		t.Fatalf("unexpected fetch order: %v", dl.fetched)
	}
}

func TestReconcileEvictsUnclaimedFiles(t *testing.T) {
	fs := newMemFS("old1.jpg", "old2.mp4", "keep.jpg")
	dl := &fakeDownloader{fs: fs}
	r := New(fs, dl, nil, zerolog.Nop())

	res, err := r.Reconcile(context.Background(), assetsFor(t, "https://cdn.example.com/keep.jpg"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Evicted != 2 {
		t.Fatalf("evicted = %d, want 2", res.Evicted)
	}
	if res.Fetched != 0 {
		t.Fatalf("fetched = %d, want 0 for an already present file", res.Fetched)
	}
	names, _ := fs.List()
	if len(names) != 1 || names[0] != "keep.jpg" {
		t.Fatalf("directory not converged: %v", names)
	}
}

func TestReconcileEmptyPlaylistEmptiesDirectory(t *testing.T) {
	fs := newMemFS("a.jpg", "b.mp4")
	r := New(fs, &fakeDownloader{fs: fs}, nil, zerolog.Nop())

	res, err := r.Reconcile(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Evicted != 2 || len(res.Available) != 0 {
		t.Fatalf("got evicted=%d available=%d, want 2/0", res.Evicted, len(res.Available))
	}
	names, _ := fs.List()
	if len(names) != 0 {
		t.Fatalf("directory not empty: %v", names)
	}
}

func TestReconcileSkipsFailedDownloads(t *testing.T) {
	fs := newMemFS()
	dl := &fakeDownloader{fs: fs, failing: map[string]bool{"b.mp4": true}}
	r := New(fs, dl, nil, zerolog.Nop())

	assets := assetsFor(t,
		"https://cdn.example.com/a.jpg",
		"https://cdn.example.com/b.mp4",
		"https://cdn.example.com/c.jpg",
	)
	res, err := r.Reconcile(context.Background(), assets)
	if err != nil {
		t.Fatalf("per-asset failure must not abort the pass: %v", err)
	}
	if res.Failed != 1 {
		t.Fatalf("failed = %d, want 1", res.Failed)
	}
	if len(res.Available) != 2 {
		t.Fatalf("available = %d, want the two successful assets", len(res.Available))
	}
	if res.Available[0].FileName != "a.jpg" || res.Available[1].FileName != "c.jpg" {
		t.Fatalf("available order wrong: %+v", res.Available)
	}
}

func TestReconcileListFailureIsStructural(t *testing.T) {
	fs := newMemFS()
	fs.listErr = errors.New("disk gone")
	r := New(fs, &fakeDownloader{fs: fs}, nil, zerolog.Nop())

	_, err := r.Reconcile(context.Background(), assetsFor(t, "https://cdn.example.com/a.jpg"))
	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Fatalf("want *Error, got %v", err)
	}
}

func TestReconcileHonorsCancellation(t *testing.T) {
	fs := newMemFS()
	r := New(fs, &fakeDownloader{fs: fs}, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Reconcile(ctx, assetsFor(t, "https://cdn.example.com/a.jpg"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}
