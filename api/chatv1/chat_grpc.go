package chatv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/and161185/goph-chat/internal/wire"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "chat.v1.Chat"

// Full method names.
const (
	Chat_Register_FullMethodName       = "/chat.v1.Chat/Register"
	Chat_Login_FullMethodName          = "/chat.v1.Chat/Login"
	Chat_Conversation_FullMethodName   = "/chat.v1.Chat/Conversation"
	Chat_ChannelHistory_FullMethodName = "/chat.v1.Chat/ChannelHistory"
	Chat_CreateChannel_FullMethodName  = "/chat.v1.Chat/CreateChannel"
	Chat_ListChannels_FullMethodName   = "/chat.v1.Chat/ListChannels"
	Chat_RequestUpload_FullMethodName  = "/chat.v1.Chat/RequestUpload"
	Chat_Connect_FullMethodName        = "/chat.v1.Chat/Connect"
)

// Chat_ConnectServer is the server side of the live connection stream.
type Chat_ConnectServer = grpc.BidiStreamingServer[wire.Inbound, wire.Event]

// Chat_ConnectClient is the client side of the live connection stream.
type Chat_ConnectClient = grpc.BidiStreamingClient[wire.Inbound, wire.Event]

// ChatServer is the server API for the chat service.
type ChatServer interface {
	Register(context.Context, *RegisterRequest) (*RegisterResponse, error)
	Login(context.Context, *LoginRequest) (*LoginResponse, error)
	Conversation(context.Context, *ConversationRequest) (*HistoryResponse, error)
	ChannelHistory(context.Context, *ChannelHistoryRequest) (*HistoryResponse, error)
	CreateChannel(context.Context, *CreateChannelRequest) (*ChannelResponse, error)
	ListChannels(context.Context, *ListChannelsRequest) (*ListChannelsResponse, error)
	RequestUpload(context.Context, *UploadRequest) (*UploadResponse, error)
	Connect(Chat_ConnectServer) error
}

// UnimplementedChatServer can be embedded to have forward compatible implementations.
type UnimplementedChatServer struct{}

func (UnimplementedChatServer) Register(context.Context, *RegisterRequest) (*RegisterResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Register not implemented")
}
func (UnimplementedChatServer) Login(context.Context, *LoginRequest) (*LoginResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Login not implemented")
}
func (UnimplementedChatServer) Conversation(context.Context, *ConversationRequest) (*HistoryResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Conversation not implemented")
}
func (UnimplementedChatServer) ChannelHistory(context.Context, *ChannelHistoryRequest) (*HistoryResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ChannelHistory not implemented")
}
func (UnimplementedChatServer) CreateChannel(context.Context, *CreateChannelRequest) (*ChannelResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CreateChannel not implemented")
}
func (UnimplementedChatServer) ListChannels(context.Context, *ListChannelsRequest) (*ListChannelsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListChannels not implemented")
}
func (UnimplementedChatServer) RequestUpload(context.Context, *UploadRequest) (*UploadResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RequestUpload not implemented")
}
func (UnimplementedChatServer) Connect(Chat_ConnectServer) error {
	return status.Error(codes.Unimplemented, "method Connect not implemented")
}

// RegisterChatServer registers srv on s.
func RegisterChatServer(s grpc.ServiceRegistrar, srv ChatServer) {
	s.RegisterService(&Chat_ServiceDesc, srv)
}

// unary builds a MethodDesc that decodes Req, runs the interceptor chain and calls fn.
func unary[Req any, Resp any](name string, fn func(ChatServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	full := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return fn(srv.(ChatServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			handler := func(ctx context.Context, req any) (any, error) {
				return fn(srv.(ChatServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func _Chat_Connect_Handler(srv any, stream grpc.ServerStream) error {
	return srv.(ChatServer).Connect(&grpc.GenericServerStream[wire.Inbound, wire.Event]{ServerStream: stream})
}

// Chat_ServiceDesc is the grpc.ServiceDesc for the chat service.
var Chat_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ChatServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Register", ChatServer.Register),
		unary("Login", ChatServer.Login),
		unary("Conversation", ChatServer.Conversation),
		unary("ChannelHistory", ChatServer.ChannelHistory),
		unary("CreateChannel", ChatServer.CreateChannel),
		unary("ListChannels", ChatServer.ListChannels),
		unary("RequestUpload", ChatServer.RequestUpload),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Connect",
			Handler:       _Chat_Connect_Handler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "chat/v1/chat.json",
}

// ChatClient is the client API for the chat service.
type ChatClient interface {
	Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*RegisterResponse, error)
	Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginResponse, error)
	Conversation(ctx context.Context, in *ConversationRequest, opts ...grpc.CallOption) (*HistoryResponse, error)
	ChannelHistory(ctx context.Context, in *ChannelHistoryRequest, opts ...grpc.CallOption) (*HistoryResponse, error)
	CreateChannel(ctx context.Context, in *CreateChannelRequest, opts ...grpc.CallOption) (*ChannelResponse, error)
	ListChannels(ctx context.Context, in *ListChannelsRequest, opts ...grpc.CallOption) (*ListChannelsResponse, error)
	RequestUpload(ctx context.Context, in *UploadRequest, opts ...grpc.CallOption) (*UploadResponse, error)
	Connect(ctx context.Context, opts ...grpc.CallOption) (Chat_ConnectClient, error)
}

type chatClient struct {
	cc grpc.ClientConnInterface
}

// NewChatClient returns a client that always selects the JSON codec.
func NewChatClient(cc grpc.ClientConnInterface) ChatClient {
	return &chatClient{cc: cc}
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}

func invoke[Req any, Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in *Req, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	if err := cc.Invoke(ctx, method, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *chatClient) Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*RegisterResponse, error) {
	return invoke[RegisterRequest, RegisterResponse](ctx, c.cc, Chat_Register_FullMethodName, in, opts)
}

func (c *chatClient) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginResponse, error) {
	return invoke[LoginRequest, LoginResponse](ctx, c.cc, Chat_Login_FullMethodName, in, opts)
}

func (c *chatClient) Conversation(ctx context.Context, in *ConversationRequest, opts ...grpc.CallOption) (*HistoryResponse, error) {
	return invoke[ConversationRequest, HistoryResponse](ctx, c.cc, Chat_Conversation_FullMethodName, in, opts)
}

func (c *chatClient) ChannelHistory(ctx context.Context, in *ChannelHistoryRequest, opts ...grpc.CallOption) (*HistoryResponse, error) {
	return invoke[ChannelHistoryRequest, HistoryResponse](ctx, c.cc, Chat_ChannelHistory_FullMethodName, in, opts)
}

func (c *chatClient) CreateChannel(ctx context.Context, in *CreateChannelRequest, opts ...grpc.CallOption) (*ChannelResponse, error) {
	return invoke[CreateChannelRequest, ChannelResponse](ctx, c.cc, Chat_CreateChannel_FullMethodName, in, opts)
}

func (c *chatClient) ListChannels(ctx context.Context, in *ListChannelsRequest, opts ...grpc.CallOption) (*ListChannelsResponse, error) {
	return invoke[ListChannelsRequest, ListChannelsResponse](ctx, c.cc, Chat_ListChannels_FullMethodName, in, opts)
}

func (c *chatClient) RequestUpload(ctx context.Context, in *UploadRequest, opts ...grpc.CallOption) (*UploadResponse, error) {
	return invoke[UploadRequest, UploadResponse](ctx, c.cc, Chat_RequestUpload_FullMethodName, in, opts)
}

func (c *chatClient) Connect(ctx context.Context, opts ...grpc.CallOption) (Chat_ConnectClient, error) {
	stream, err := c.cc.NewStream(ctx, &Chat_ServiceDesc.Streams[0], Chat_Connect_FullMethodName, withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	return &grpc.GenericClientStream[wire.Inbound, wire.Event]{ClientStream: stream}, nil
}
