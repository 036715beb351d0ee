package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kaelstrom/packetcore/internal/packet"
)

func TestInsertAssignsDenseSequences(t *testing.T) {
	s := New()
	for i := 1; i <= 5; i++ {
		seq := s.Insert(packet.New(time.Now(), 1, 1))
		if seq != uint32(i) {
			t.Fatalf("expected sequence %d, got %d", i, seq)
		}
	}
	if s.MaxSequence() != 5 {
		t.Fatalf("expected max sequence 5, got %d", s.MaxSequence())
	}
}

func TestInsertSerializesConcurrentWriters(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	const n = 200
	seen := make([]uint32, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			seen[i] = s.Insert(packet.New(time.Now(), 1, 1))
		}(i)
	}
	wg.Wait()

	byVal := make(map[uint32]bool, n)
	for _, seq := range seen {
		if byVal[seq] {
			t.Fatalf("sequence %d assigned twice", seq)
		}
		byVal[seq] = true
	}
	if s.MaxSequence() != uint32(n) {
		t.Fatalf("expected max sequence %d, got %d", n, s.MaxSequence())
	}
}

func TestGetAndRange(t *testing.T) {
	s := New()
	for i := 0; i < 5; i++ {
		s.Insert(packet.New(time.Now(), i, i))
	}
	p, ok := s.Get(3)
	if !ok || p.OriginalLength() != 2 {
		t.Fatalf("expected packet 3 to have original length 2, got %+v ok=%v", p, ok)
	}
	if _, ok := s.Get(0); ok {
		t.Fatalf("sequence 0 is never valid")
	}
	if _, ok := s.Get(999); ok {
		t.Fatalf("out of range sequence must miss")
	}

	r := s.Range(2, 4)
	if len(r) != 2 || r[0].OriginalLength() != 1 || r[1].OriginalLength() != 2 {
		t.Fatalf("unexpected range result: %+v", r)
	}
	if out := s.Range(10, 20); out != nil {
		t.Fatalf("expected nil for out-of-range slice, got %v", out)
	}
}

func TestChangeHandlersFireWithMaxSeq(t *testing.T) {
	s := New()
	var mu sync.Mutex
	var seen []uint32
	s.AddChangeHandler(func(maxSeq uint32) {
		mu.Lock()
		seen = append(seen, maxSeq)
		mu.Unlock()
	})
	for i := 0; i < 3; i++ {
		s.Insert(packet.New(time.Now(), 1, 1))
	}
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 3 || seen[0] != 1 || seen[2] != 3 {
		t.Fatalf("unexpected handler sequence: %v", seen)
	}
}

func TestWaitForChangeWakesOnInsert(t *testing.T) {
	s := New()
	woke := make(chan uint32, 1)
	go func() {
		woke <- s.WaitForChange(context.Background(), 0)
	}()
	time.Sleep(20 * time.Millisecond)
	s.Insert(packet.New(time.Now(), 1, 1))

	select {
	case got := <-woke:
		if got != 1 {
			t.Fatalf("expected wake with maxSeq 1, got %d", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("WaitForChange never woke up")
	}
}

func TestWaitForChangeRespectsContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Millisecond)
	defer cancel()
	start := time.Now()
	got := s.WaitForChange(ctx, 0)
	if got != 0 {
		t.Fatalf("expected no change, got %d", got)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("WaitForChange took too long to respect context deadline")
	}
}
