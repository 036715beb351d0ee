package packet

import "testing"

func TestDecodeLayer(t *testing.T) {
	type tcpAttrs struct {
		SrcPort uint16 `mapstructure:"src_port"`
		DstPort uint16 `mapstructure:"dst_port"`
	}

	l := NewLayer("n", "n.eth.ip.transport", nil)
	l.SetAttribute("src_port", uint16(443))
	l.SetAttribute("dst_port", uint16(51000))

	var got tcpAttrs
	if err := DecodeLayer(l, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.SrcPort != 443 || got.DstPort != 51000 {
		t.Fatalf("unexpected decode result: %+v", got)
	}
}
