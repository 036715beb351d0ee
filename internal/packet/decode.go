package packet

import "github.com/mitchellh/mapstructure"

// DecodeLayer decodes a Layer's loosely typed Attributes map into a
// caller-supplied struct, using mapstructure tags the same way
// configuration loading does. This lets a consumer (a filter, the CLI,
// a future live-view client) work with a typed view of a layer's
// attributes instead of type-asserting map values by hand.
func DecodeLayer(l *Layer, out any) error {
	return mapstructure.Decode(l.Attributes, out)
}
