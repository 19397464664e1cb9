package renderpb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const serviceName = "mandelmr.Worker"

// WorkerClient is the client API for the Worker service.
type WorkerClient interface {
	// Assign delivers a row range to the worker. The call returns once the worker accepted it.
	Assign(ctx context.Context, in *AssignRequest, opts ...grpc.CallOption) (*AssignResponse, error)

	// Render starts computing the assigned rows and streams the results back.
	// The stream ends when every assigned pixel has been sent.
	Render(ctx context.Context, in *RenderRequest, opts ...grpc.CallOption) (Worker_RenderClient, error)

	// Finish releases the render on the worker.
	Finish(ctx context.Context, in *FinishRequest, opts ...grpc.CallOption) (*Empty, error)
}

type workerClient struct {
	cc grpc.ClientConnInterface
}

// NewWorkerClient creates a client of the Worker service. Calls are encoded with the JSON codec.
func NewWorkerClient(cc grpc.ClientConnInterface) WorkerClient {
	return &workerClient{cc}
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}

func (c *workerClient) Assign(ctx context.Context, in *AssignRequest, opts ...grpc.CallOption) (*AssignResponse, error) {
	out := new(AssignResponse)
	err := c.cc.Invoke(ctx, "/"+serviceName+"/Assign", in, out, withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *workerClient) Render(ctx context.Context, in *RenderRequest, opts ...grpc.CallOption) (Worker_RenderClient, error) {
	stream, err := c.cc.NewStream(ctx, &Worker_ServiceDesc.Streams[0], "/"+serviceName+"/Render", withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	x := &workerRenderClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *workerClient) Finish(ctx context.Context, in *FinishRequest, opts ...grpc.CallOption) (*Empty, error) {
	out := new(Empty)
	err := c.cc.Invoke(ctx, "/"+serviceName+"/Finish", in, out, withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

type Worker_RenderClient interface {
	Recv() (*PixelBatch, error)
	grpc.ClientStream
}

type workerRenderClient struct {
	grpc.ClientStream
}

func (x *workerRenderClient) Recv() (*PixelBatch, error) {
	m := new(PixelBatch)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// WorkerServer is the server API for the Worker service.
type WorkerServer interface {
	Assign(context.Context, *AssignRequest) (*AssignResponse, error)
	Render(*RenderRequest, Worker_RenderServer) error
	Finish(context.Context, *FinishRequest) (*Empty, error)
}

// UnimplementedWorkerServer can be embedded to have forward compatible implementations.
type UnimplementedWorkerServer struct{}

func (UnimplementedWorkerServer) Assign(context.Context, *AssignRequest) (*AssignResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Assign not implemented")
}

func (UnimplementedWorkerServer) Render(*RenderRequest, Worker_RenderServer) error {
	return status.Errorf(codes.Unimplemented, "method Render not implemented")
}

func (UnimplementedWorkerServer) Finish(context.Context, *FinishRequest) (*Empty, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Finish not implemented")
}

func RegisterWorkerServer(s grpc.ServiceRegistrar, srv WorkerServer) {
	s.RegisterService(&Worker_ServiceDesc, srv)
}

func _Worker_Assign_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(AssignRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(WorkerServer).Assign(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + serviceName + "/Assign",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(WorkerServer).Assign(ctx, req.(*AssignRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Worker_Finish_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(FinishRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(WorkerServer).Finish(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + serviceName + "/Finish",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(WorkerServer).Finish(ctx, req.(*FinishRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Worker_Render_Handler(srv interface{}, stream grpc.ServerStream) error {
	m := new(RenderRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(WorkerServer).Render(m, &workerRenderServer{stream})
}

type Worker_RenderServer interface {
	Send(*PixelBatch) error
	grpc.ServerStream
}

type workerRenderServer struct {
	grpc.ServerStream
}

func (x *workerRenderServer) Send(m *PixelBatch) error {
	return x.ServerStream.SendMsg(m)
}

// Worker_ServiceDesc is the grpc.ServiceDesc for the Worker service.
var Worker_ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*WorkerServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Assign",
			Handler:    _Worker_Assign_Handler,
		},
		{
			MethodName: "Finish",
			Handler:    _Worker_Finish_Handler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Render",
			Handler:       _Worker_Render_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "renderpb/service.go",
}
