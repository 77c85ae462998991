// Package codec decodes monitoring payloads. The REST client picks a codec
// from the response Content-Type; all codecs here share the Codec interface.
package codec

// Codec encodes/decodes values V to []byte.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
