// Package rpccodec carries the Connect codec shared by the practice services.
package rpccodec

import (
	"encoding/json"
	"fmt"

	"connectrpc.com/connect"
)

// Name matches the content-subtype Connect uses for JSON ("application/json").
const Name = "json"

// JSONCodec marshals plain Go structs with encoding/json so services can speak
// Connect without generated protobuf types.
type JSONCodec struct{}

var _ connect.Codec = JSONCodec{}

func (JSONCodec) Name() string { return Name }

func (JSONCodec) Marshal(msg any) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", msg, err)
	}
	return data, nil
}

func (JSONCodec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("unmarshal %T: %w", msg, err)
	}
	return nil
}

// Option registers JSONCodec on a Connect client or handler.
func Option() connect.Option {
	return connect.WithCodec(JSONCodec{})
}
