package pcapsource

import "testing"

func TestSetSnaplenRejectsNonPositive(t *testing.T) {
	s := Live("eth0")
	if err := s.SetSnaplen(0); err == nil {
		t.Fatal("expected error for non-positive snaplen")
	}
	if err := s.SetSnaplen(4096); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.Snaplen(); got != 4096 {
		t.Fatalf("expected snaplen 4096, got %d", got)
	}
}

func TestSetPromiscuousAndInterface(t *testing.T) {
	s := Live("eth0")
	if err := s.SetInterface("eth1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.NetworkInterface(); got != "eth1" {
		t.Fatalf("expected eth1, got %s", got)
	}
	if err := s.SetPromiscuous(true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.Promiscuous() {
		t.Fatal("expected promiscuous to be true")
	}
}

func TestStopWithoutStartIsNoop(t *testing.T) {
	s := Offline("/nonexistent.pcap")
	if err := s.Stop(); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}
