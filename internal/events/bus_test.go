/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import "testing"

func TestPublishReachesSubscriber(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe(EventNowPlaying)

	b.Publish(EventNowPlaying, Payload{"file": "a.jpg"})

	p := <-sub
	if p["file"] != "a.jpg" {
		t.Fatalf("payload = %v", p)
	}
}

func TestPublishSkipsOtherEventTypes(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe(EventNowPlaying)

	b.Publish(EventPlaybackErr, Payload{"file": "a.jpg"})

	select {
	case p := <-sub:
		t.Fatalf("subscriber received foreign event: %v", p)
	default:
	}
}

func TestPublishSkipsFullSubscriber(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe(EventNowPlaying)

	// Twice the channel capacity; the overflow is dropped, not blocked on.
	for i := 0; i < 16; i++ {
		b.Publish(EventNowPlaying, Payload{"seq": i})
	}
	if got := len(sub); got != cap(sub) {
		t.Fatalf("buffered = %d, want %d", got, cap(sub))
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe(EventNowPlaying)
	other := b.Subscribe(EventNowPlaying)

	b.Unsubscribe(EventNowPlaying, sub)

	if _, ok := <-sub; ok {
		t.Fatal("unsubscribed channel must be closed")
	}

	// Publishing after removal must not touch the closed channel.
	b.Publish(EventNowPlaying, Payload{"file": "a.jpg"})
	if p := <-other; p["file"] != "a.jpg" {
		t.Fatalf("remaining subscriber payload = %v", p)
	}
}
