package transport

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

// codecName is rawCodec's name in grpc's codec registry. Server and Client
// force the codec directly (grpc.ForceServerCodec / grpc.ForceCodec), so
// neither ever touches the protobuf wire format.
const codecName = "atomix-raw"

// rawMessage is what goes over the wire: an opaque byte slice. Server and
// Client handlers marshal/unmarshal their own envelopes into this.
type rawMessage []byte

// rawCodec passes rawMessage through unchanged. It lets pkg/transport run
// over grpc-go without a generated protobuf stub.
type rawCodec struct{}

func (rawCodec) Marshal(v interface{}) ([]byte, error) {
	m, ok := v.(*rawMessage)
	if !ok {
		return nil, fmt.Errorf("transport: codec got %T, want *rawMessage", v)
	}
	return *m, nil
}

func (rawCodec) Unmarshal(data []byte, v interface{}) error {
	m, ok := v.(*rawMessage)
	if !ok {
		return fmt.Errorf("transport: codec got %T, want *rawMessage", v)
	}
	*m = append((*m)[:0], data...)
	return nil
}

func (rawCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(rawCodec{})
}
