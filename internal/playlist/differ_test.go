package playlist

import "testing"

func TestTrackerFirstDeliveryAlwaysUpdates(t *testing.T) {
	tracker := NewTracker()
	if !tracker.ShouldUpdate([]string{"a.jpg", "b.mp4"}, false) {
		t.Fatal("first delivery must trigger an update")
	}
}

func TestTrackerSkipsUnchangedPlaylist(t *testing.T) {
	tracker := NewTracker()
	names := []string{"a.jpg", "b.mp4"}

	if !tracker.ShouldUpdate(names, false) {
		t.Fatal("first delivery must trigger an update")
	}
	if tracker.ShouldUpdate(names, false) {
		t.Fatal("identical delivery must be skipped")
	}
}

func TestTrackerOrderMatters(t *testing.T) {
	tracker := NewTracker()
	tracker.ShouldUpdate([]string{"a.jpg", "b.mp4"}, false)
	if !tracker.ShouldUpdate([]string{"b.mp4", "a.jpg"}, false) {
		t.Fatal("reordered playlist must trigger an update")
	}
}

func TestTrackerForceRefreshOverridesSignature(t *testing.T) {
	tracker := NewTracker()
	names := []string{"a.jpg", "placeholder_1.jpg"}

	tracker.ShouldUpdate(names, false)
	if !tracker.ShouldUpdate(names, true) {
		t.Fatal("forceRefresh must override an unchanged signature")
	}
	// And the signature stays retained afterwards.
	if tracker.ShouldUpdate(names, false) {
		t.Fatal("signature must survive a forced refresh")
	}
}

func TestTrackerUpdatesSignatureBeforeReconciliation(t *testing.T) {
	tracker := NewTracker()
	names := []string{"a.jpg"}

	if !tracker.ShouldUpdate(names, false) {
		t.Fatal("expected update")
	}
	// The retained signature is already the new one, even though the
	// caller has not reconciled yet.
	if tracker.LastSignature() != Signature(names) {
		t.Fatalf("signature not retained eagerly: %q", tracker.LastSignature())
	}
}
