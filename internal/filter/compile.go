package filter

import (
	"fmt"
	"strings"

	"github.com/kaelstrom/packetcore/internal/packet"
)

// attrFilter matches any packet carrying a layer whose Attributes[key]
// stringifies to value and, when layerName is set, whose Name also
// equals layerName. It is the reference FilterCompiler a Session is wired with when
// no richer expression language is configured.
type attrFilter struct {
	layerName string
	key       string
	value     string
}

// Compile parses a tiny filter expression of the form "key=value" or
// "layer.key=value" into a Filter. It is intentionally minimal: the
// Session's FilterCompiler is a pluggable seam, and this is the
// reference implementation rather than the only legal one.
func Compile(expr string) (Filter, error) {
	k, v, ok := strings.Cut(expr, "=")
	if !ok {
		return nil, fmt.Errorf("filter: invalid expression %q, expected key=value", expr)
	}
	k, v = strings.TrimSpace(k), strings.TrimSpace(v)
	if k == "" {
		return nil, fmt.Errorf("filter: invalid expression %q, missing key", expr)
	}

	var layerName, key string
	if dot := strings.LastIndex(k, "."); dot >= 0 {
		layerName, key = k[:dot], k[dot+1:]
	} else {
		key = k
	}
	return &attrFilter{layerName: layerName, key: key, value: v}, nil
}

func (f *attrFilter) Match(pkt *packet.Packet, ctx *Context) (bool, error) {
	for _, root := range pkt.RootLayers() {
		if f.matchLayer(root) {
			return true, nil
		}
	}
	return false, nil
}

func (f *attrFilter) matchLayer(l *packet.Layer) bool {
	if f.layerName == "" || l.Name == f.layerName {
		if v, ok := l.Attributes[f.key]; ok && fmt.Sprint(v) == f.value {
			return true
		}
	}
	for _, c := range l.Children {
		if f.matchLayer(c) {
			return true
		}
	}
	return false
}
