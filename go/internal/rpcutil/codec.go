package rpcutil

import (
	"encoding/json"

	"connectrpc.com/connect"
)

// JSONCodec lets Connect handlers and clients exchange plain Go structs.
// It replaces the default "json" codec, which only accepts protobuf messages.
type JSONCodec struct{}

var _ connect.Codec = JSONCodec{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// WithJSON is the option every handler and client in this repository uses.
func WithJSON() connect.Option {
	return connect.WithCodec(JSONCodec{})
}
