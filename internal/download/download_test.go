/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestFetchWritesFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fake jpeg bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := New(dir, nil, zerolog.Nop())

	if err := d.Fetch(context.Background(), srv.URL+"/banner.jpg", "banner_42.jpg"); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "banner_42.jpg"))
	if err != nil {
		t.Fatalf("file not written: %v", err)
	}
	if string(data) != "fake jpeg bytes" {
		t.Fatalf("unexpected content: %q", data)
	}
}

func TestFetchRejectsNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := New(dir, nil, zerolog.Nop())

	err := d.Fetch(context.Background(), srv.URL+"/gone.mp4", "gone.mp4")
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("want status error, got %v", err)
	}
	if _, serr := os.Stat(filepath.Join(dir, "gone.mp4")); !os.IsNotExist(serr) {
		t.Fatal("failed download must not leave a file behind")
	}
}

func TestFetchLeavesNoPartialFileOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("partial"))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := New(dir, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	go cancel()

	_ = d.Fetch(ctx, srv.URL+"/slow.mp4", "slow.mp4")

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name() == "slow.mp4" {
			t.Fatal("cancelled download must not produce the final file")
		}
	}
}
