package metrics

import "testing"

func TestSnapshotReflectsIncrements(t *testing.T) {
	m := New("test-snapshot-reflects-increments")
	m.PacketsQueued.Add(3)
	m.DissectErrors.Add(1)

	got := m.Snapshot()
	if got.PacketsQueued != 3 {
		t.Fatalf("expected 3 packets queued, got %d", got.PacketsQueued)
	}
	if got.DissectErrors != 1 {
		t.Fatalf("expected 1 dissect error, got %d", got.DissectErrors)
	}
	if got.PacketsStored != 0 {
		t.Fatalf("expected 0 packets stored, got %d", got.PacketsStored)
	}
}
