package sidecar

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// codecName is the content-subtype the client negotiates with the
// sidecar: application/grpc+json instead of the default
// application/grpc+proto. There is no
// protobuf schema backing this service — the sidecar and worker agree on
// the same JSON-tagged Go/Python structs instead, so this codec is a thin
// adapter letting grpc carry them unmodified.
const codecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return codecName }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("sidecar: marshaling %T: %w", v, err)
	}
	return b, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("sidecar: unmarshaling into %T: %w", v, err)
	}
	return nil
}
