// Package cache provides a persistent, capacity-bounded disk cache for
// HTTP responses, keyed by a deterministic hash of the request URL.
// Entries are serialized through a pluggable codec and evicted in
// insertion order once the configured byte capacity is exceeded.
package cache

import (
	"encoding/json"
	"net/http"
)

// Response holds the response-line metadata cached alongside the body.
type Response struct {
	URL        string      `json:"url"`
	StatusCode int         `json:"status_code"`
	Header     http.Header `json:"header,omitempty"`
}

// Entry is the unit of storage: a response, its body, and optional
// caller-supplied metadata.
type Entry struct {
	Response Response          `json:"response"`
	Body     []byte            `json:"body"`
	UserInfo map[string]string `json:"user_info,omitempty"`
}

// Codec serializes cached values to and from bytes. The cache treats the
// encoded form as opaque; it only measures and stores it.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSONCodec is the default Codec.
type JSONCodec struct{}

// Marshal implements Codec.
func (JSONCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal implements Codec.
func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
