package filter

import (
	"testing"
	"time"

	"github.com/kaelstrom/packetcore/internal/packet"
)

func TestCompileRejectsMissingEquals(t *testing.T) {
	if _, err := Compile("no-equals-here"); err == nil {
		t.Fatal("expected error for malformed expression")
	}
}

func TestCompileMatchesNestedAttribute(t *testing.T) {
	f, err := Compile("n.ip.dst_ip=10.0.0.2")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	root := packet.NewLayer("n", "n", nil)
	ip := packet.NewLayer("n", "n.ip", nil)
	ip.SetAttribute("dst_ip", "10.0.0.2")
	root.AddChild(ip)

	pkt := packet.New(time.Now(), 0, 0)
	pkt.AddRootLayer(root)

	matched, err := f.Match(pkt, &Context{})
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if !matched {
		t.Fatal("expected match")
	}
}

func TestCompileNoMatch(t *testing.T) {
	f, err := Compile("ip.dst_ip=10.0.0.9")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	root := packet.NewLayer("n", "n", nil)
	pkt := packet.New(time.Now(), 0, 0)
	pkt.AddRootLayer(root)

	matched, err := f.Match(pkt, &Context{})
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if matched {
		t.Fatal("expected no match")
	}
}
