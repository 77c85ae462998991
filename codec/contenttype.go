package codec

import (
	"fmt"
	"mime"
	"strings"
)

const (
	MediaJSON    = "application/json"
	MediaCBOR    = "application/cbor"
	MediaMsgpack = "application/msgpack"
)

// Accept lists every media type ForContentType understands, preferred first.
const Accept = MediaCBOR + ", " + MediaMsgpack + ";q=0.9, " + MediaJSON + ";q=0.8"

// ForContentType returns the codec for a Content-Type header value.
// An empty header is treated as JSON.
func ForContentType[V any](contentType string) (Codec[V], error) {
	if strings.TrimSpace(contentType) == "" {
		return JSON[V]{}, nil
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("parse content type %q: %w", contentType, err)
	}
	switch {
	case mt == MediaJSON, strings.HasSuffix(mt, "+json"):
		return JSON[V]{}, nil
	case mt == MediaCBOR, strings.HasSuffix(mt, "+cbor"):
		return NewCBOR[V](CBORLimits{})
	case mt == MediaMsgpack, mt == "application/x-msgpack", mt == "application/vnd.msgpack":
		return Msgpack[V]{}, nil
	default:
		return nil, fmt.Errorf("unsupported content type %q", mt)
	}
}
