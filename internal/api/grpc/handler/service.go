package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "soldojo.v1.Ledger"

// Full method names, as seen by interceptors and carried in signed instructions.
const (
	MethodInitProfile      = "/" + ServiceName + "/InitProfile"
	MethodRecordCompletion = "/" + ServiceName + "/RecordCompletion"
	MethodGetProfile       = "/" + ServiceName + "/GetProfile"
	MethodGetCompletion    = "/" + ServiceName + "/GetCompletion"
	MethodGetCertificate   = "/" + ServiceName + "/GetCertificate"
)

// LedgerServer is the server API for the Ledger service.
type LedgerServer interface {
	InitProfile(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RecordCompletion(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetProfile(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetCompletion(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetCertificate(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterLedgerServer registers srv on s.
func RegisterLedgerServer(s grpc.ServiceRegistrar, srv LedgerServer) {
	s.RegisterService(&LedgerServiceDesc, srv)
}

type ledgerMethod func(LedgerServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call ledgerMethod) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LedgerServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(LedgerServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// LedgerServiceDesc describes the Ledger service. Messages travel as google.protobuf.Struct.
var LedgerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LedgerServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "InitProfile",
			Handler:    unaryHandler(MethodInitProfile, LedgerServer.InitProfile),
		},
		{
			MethodName: "RecordCompletion",
			Handler:    unaryHandler(MethodRecordCompletion, LedgerServer.RecordCompletion),
		},
		{
			MethodName: "GetProfile",
			Handler:    unaryHandler(MethodGetProfile, LedgerServer.GetProfile),
		},
		{
			MethodName: "GetCompletion",
			Handler:    unaryHandler(MethodGetCompletion, LedgerServer.GetCompletion),
		},
		{
			MethodName: "GetCertificate",
			Handler:    unaryHandler(MethodGetCertificate, LedgerServer.GetCertificate),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "soldojo/v1/ledger.proto",
}

// LedgerClient is the client API for the Ledger service.
type LedgerClient struct {
	cc grpc.ClientConnInterface
}

func NewLedgerClient(cc grpc.ClientConnInterface) *LedgerClient {
	return &LedgerClient{cc: cc}
}

func (c *LedgerClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerClient) InitProfile(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodInitProfile, in, opts...)
}

func (c *LedgerClient) RecordCompletion(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodRecordCompletion, in, opts...)
}

func (c *LedgerClient) GetProfile(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodGetProfile, in, opts...)
}

func (c *LedgerClient) GetCompletion(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodGetCompletion, in, opts...)
}

func (c *LedgerClient) GetCertificate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodGetCertificate, in, opts...)
}
