// ABOUTME: Hand-written service descriptor for the bidirectional AgentService/Run stream
// ABOUTME: Typed client and server stream wrappers over grpc.ClientStream and grpc.ServerStream

package transport

import (
	"context"

	"google.golang.org/grpc"

	"github.com/2389/coven-link/internal/wire"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "agent.v1.AgentService"

// RunMethod is the full method name of the duplex Run stream.
const RunMethod = "/" + ServiceName + "/Run"

// AgentClient is the client API for AgentService.
type AgentClient interface {
	Run(ctx context.Context, opts ...grpc.CallOption) (AgentRunClient, error)
}

// AgentRunClient is the client side of the Run stream.
type AgentRunClient interface {
	Send(*wire.ClientMessage) error
	Recv() (*wire.ServerMessage, error)
	grpc.ClientStream
}

type agentClient struct {
	cc grpc.ClientConnInterface
}

// NewAgentClient creates an AgentClient over cc.
func NewAgentClient(cc grpc.ClientConnInterface) AgentClient {
	return &agentClient{cc}
}

func (c *agentClient) Run(ctx context.Context, opts ...grpc.CallOption) (AgentRunClient, error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	stream, err := c.cc.NewStream(ctx, &serviceDesc.Streams[0], RunMethod, opts...)
	if err != nil {
		return nil, err
	}
	return &agentRunClient{stream}, nil
}

type agentRunClient struct {
	grpc.ClientStream
}

func (x *agentRunClient) Send(m *wire.ClientMessage) error {
	return x.SendMsg(m)
}

func (x *agentRunClient) Recv() (*wire.ServerMessage, error) {
	m := new(wire.ServerMessage)
	if err := x.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// AgentServer is the server API for AgentService.
type AgentServer interface {
	Run(AgentRunServer) error
}

// AgentRunServer is the server side of the Run stream.
type AgentRunServer interface {
	Send(*wire.ServerMessage) error
	Recv() (*wire.ClientMessage, error)
	grpc.ServerStream
}

type agentRunServer struct {
	grpc.ServerStream
}

func (x *agentRunServer) Send(m *wire.ServerMessage) error {
	return x.SendMsg(m)
}

func (x *agentRunServer) Recv() (*wire.ClientMessage, error) {
	m := new(wire.ClientMessage)
	if err := x.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// RegisterAgentServer registers srv with s.
func RegisterAgentServer(s grpc.ServiceRegistrar, srv AgentServer) {
	s.RegisterService(&serviceDesc, srv)
}

func runHandler(srv any, stream grpc.ServerStream) error {
	return srv.(AgentServer).Run(&agentRunServer{stream})
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AgentServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Run",
			Handler:       runHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "agent/v1/agent_service.json",
}
