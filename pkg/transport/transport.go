package transport

import (
	"context"

	"google.golang.org/grpc"
)

// Handler answers a single inbound Send call with reply bytes. Supplied
// by pkg/comm, which demultiplexes by the envelope embedded in payload.
type Handler interface {
	Send(ctx context.Context, payload []byte) ([]byte, error)
}

// serviceName is the fully qualified name used on the wire; it only has
// to be unique, there being no registry of protobuf services behind it.
const serviceName = "atomix.transport.Transport"

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Handler)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Send", Handler: sendHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pkg/transport/transport.go",
}

func sendHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(rawMessage)
	if err := dec(in); err != nil {
		return nil, err
	}

	h := srv.(Handler)
	if interceptor == nil {
		resp, err := h.Send(ctx, *in)
		if err != nil {
			return nil, err
		}
		out := rawMessage(resp)
		return &out, nil
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Send"}
	wrapped := func(ctx context.Context, req interface{}) (interface{}, error) {
		resp, err := h.Send(ctx, *req.(*rawMessage))
		if err != nil {
			return nil, err
		}
		out := rawMessage(resp)
		return &out, nil
	}
	return interceptor(ctx, in, info, wrapped)
}

// method is the full RPC method path used by Client.Send.
const method = "/" + serviceName + "/Send"
