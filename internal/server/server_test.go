/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ayushbirla71/adupApp/internal/events"
	"github.com/ayushbirla71/adupApp/internal/logbuffer"
	"github.com/ayushbirla71/adupApp/internal/playlist"
)

type stubNowPlaying struct {
	asset *playlist.Asset
}

func (s *stubNowPlaying) Current() *playlist.Asset { return s.asset }

func newTestServer(nowPlaying NowPlayingSource) *Server {
	return New("127.0.0.1:0", logbuffer.New(100), events.NewBus(), nowPlaying, zerolog.Nop())
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	rec := get(t, newTestServer(nil), "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("security headers missing")
	}
}

func TestNowPlayingIdle(t *testing.T) {
	rec := get(t, newTestServer(&stubNowPlaying{}), "/api/now-playing")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["playing"] != false {
		t.Fatalf("idle device must report playing=false: %v", resp)
	}
}

func TestNowPlayingActive(t *testing.T) {
	src := &stubNowPlaying{asset: &playlist.Asset{
		FileName: "ad_101.mp4",
		Kind:     playlist.KindVideo,
		Entry:    playlist.Entry{ContentID: "101"},
	}}
	rec := get(t, newTestServer(src), "/api/now-playing")

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["playing"] != true || resp["file"] != "ad_101.mp4" || resp["content_id"] != "101" {
		t.Fatalf("now playing wrong: %v", resp)
	}
}

func TestLogsEndpointFiltersAndLimits(t *testing.T) {
	s := newTestServer(nil)
	s.logBuf.Add(logbuffer.LogEntry{Level: "info", Component: "engine", Message: "first"})
	s.logBuf.Add(logbuffer.LogEntry{Level: "error", Component: "playback", Message: "second"})

	rec := get(t, s, "/api/logs?level=error")
	var resp struct {
		Logs []logbuffer.LogEntry `json:"logs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Logs) != 1 || resp.Logs[0].Message != "second" {
		t.Fatalf("filtered logs wrong: %+v", resp.Logs)
	}
}

func TestLogsEndpointRejectsBadLimit(t *testing.T) {
	rec := get(t, newTestServer(nil), "/api/logs?limit=bogus")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestMetricsEndpointServes(t *testing.T) {
	rec := get(t, newTestServer(nil), "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
