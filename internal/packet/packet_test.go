package packet

import (
	"testing"
	"time"
)

func TestLayerTree(t *testing.T) {
	root := NewLayer("n", "n", []byte{0xAA})
	child := NewLayer("n", "n.a", []byte{0x01})
	root.AddChild(child)

	if child.Parent != root {
		t.Fatalf("expected child.Parent to point back at root")
	}
	if len(root.Children) != 1 || root.Children[0] != child {
		t.Fatalf("expected root to list child")
	}
}

func TestPacketSequenceAssignedOnce(t *testing.T) {
	p := New(time.Now(), 64, 64)
	if p.Sequence() != 0 {
		t.Fatalf("expected unassigned packet to have sequence 0, got %d", p.Sequence())
	}
	p.AssignSequence(7)
	if p.Sequence() != 7 {
		t.Fatalf("expected sequence 7, got %d", p.Sequence())
	}
}

func TestLogMessageKeyStable(t *testing.T) {
	a := LogMessage{Domain: "dissect", ResourceName: "http.js", Coords: SourceCoords{LineNumber: 12}, Message: "boom"}
	b := a
	b.Level = LogLevelError
	if a.Key() != b.Key() {
		t.Fatalf("expected identical key regardless of level")
	}

	c := a
	c.Coords.LineNumber = 13
	if a.Key() == c.Key() {
		t.Fatalf("expected different key for different line number")
	}
}

func TestOrderKeyLess(t *testing.T) {
	a := OrderKey{OriginSeq: 1, Index: 1}
	b := OrderKey{OriginSeq: 2, Index: 0}
	if !a.Less(b) {
		t.Fatalf("expected lower origin sequence to sort first")
	}
	c := OrderKey{OriginSeq: 1, Index: 0}
	if !c.Less(a) {
		t.Fatalf("expected lower index within same origin to sort first")
	}
}

func TestScriptHandleUnique(t *testing.T) {
	a := NewScriptHandle()
	b := NewScriptHandle()
	if a == b {
		t.Fatalf("expected distinct handles")
	}
	if a.String() == "" {
		t.Fatalf("expected non-empty string form")
	}
}
