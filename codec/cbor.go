package codec

import (
	"github.com/fxamacker/cbor/v2"
)

// CBORLimits bound what one decoded payload may allocate. Zero fields use
// DefaultCBORLimits.
type CBORLimits struct {
	MaxNestedLevels  int
	MaxArrayElements int
	MaxMapPairs      int
}

// DefaultCBORLimits leave room for a full course of activity points while
// rejecting payloads that claim absurd lengths.
var DefaultCBORLimits = CBORLimits{
	MaxNestedLevels:  16,
	MaxArrayElements: 1 << 16,
	MaxMapPairs:      1 << 10,
}

// CBOR reads API responses served as application/cbor. Struct fields follow
// their `json` tags when no `cbor` tag is present, so payload types need one
// set of tags. Duplicate map keys are rejected instead of silently overwritten.
// Construct with NewCBOR.
type CBOR[V any] struct {
	dec cbor.DecMode
	enc cbor.EncMode
}

var _ Codec[struct{}] = CBOR[struct{}]{}

// NewCBOR builds a codec with limits applied over DefaultCBORLimits.
func NewCBOR[V any](limits CBORLimits) (CBOR[V], error) {
	limits.MaxNestedLevels = orDefault(limits.MaxNestedLevels, DefaultCBORLimits.MaxNestedLevels)
	limits.MaxArrayElements = orDefault(limits.MaxArrayElements, DefaultCBORLimits.MaxArrayElements)
	limits.MaxMapPairs = orDefault(limits.MaxMapPairs, DefaultCBORLimits.MaxMapPairs)

	dm, err := cbor.DecOptions{
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
		MaxNestedLevels:  limits.MaxNestedLevels,
		MaxArrayElements: limits.MaxArrayElements,
		MaxMapPairs:      limits.MaxMapPairs,
	}.DecMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	// fixtures and test servers encode with the same tag rules
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	return CBOR[V]{dec: dm, enc: em}, nil
}

func (c CBOR[V]) Decode(b []byte) (V, error) {
	var v V
	err := c.dec.Unmarshal(b, &v)
	return v, err
}

func (c CBOR[V]) Encode(v V) ([]byte, error) {
	return c.enc.Marshal(v)
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
