// Package grpcjson exposes the ingest RPC (spec §6) over plain gRPC using a
// JSON wire codec instead of protobuf-generated stubs, so the service can
// be described with a hand-written grpc.ServiceDesc.
package grpcjson

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// Codec implements grpc/encoding.Codec with JSON marshaling. Registering it
// under the "json" content-subtype lets a grpc.ClientConn dial with
// grpc.CallContentSubtype("json") instead of requiring protobuf messages.
type Codec struct{}

func (Codec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (Codec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (Codec) Name() string { return "json" }

func init() {
	encoding.RegisterCodec(Codec{})
}
