package store

import "testing"

func TestSequenceSetInsertAndRange(t *testing.T) {
	s := NewSequenceSet()
	for _, seq := range []uint32{5, 1, 3, 3, 9} {
		s.Insert(seq)
	}
	if s.Size() != 4 {
		t.Fatalf("expected 4 unique entries, got %d", s.Size())
	}
	got := s.Range(1, 9)
	want := []uint32{1, 3, 5}
	if len(got) != len(want) {
		t.Fatalf("unexpected range: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected range: %v", got)
		}
	}
}

func TestSequenceSetHandlerFiresOnceForDuplicate(t *testing.T) {
	s := NewSequenceSet()
	count := 0
	s.AddChangeHandler(func(seq uint32) { count++ })
	s.Insert(1)
	s.Insert(1)
	s.Insert(2)
	if count != 2 {
		t.Fatalf("expected handler to fire twice (once per distinct value), got %d", count)
	}
}

func TestSequenceSetEmptyRange(t *testing.T) {
	s := NewSequenceSet()
	if got := s.Range(0, 100); got != nil {
		t.Fatalf("expected nil range on empty set, got %v", got)
	}
}
