package api

import (
	"chat-presence/infrastructure/wire"
	"context"
	"time"

	"google.golang.org/grpc"
)

const (
	ChatService_Session_FullMethodName         = "/presence.v1.ChatService/Session"
	ChatService_SearchMessages_FullMethodName  = "/presence.v1.ChatService/SearchMessages"
	ChatService_GetConversation_FullMethodName = "/presence.v1.ChatService/GetConversation"
)

type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

type SearchHit struct {
	MessageID  string    `json:"message_id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	Score      float64   `json:"score"`
}

type SearchResponse struct {
	Hits []SearchHit `json:"hits"`
}

type ConversationRequest struct {
	CounterpartID string `json:"counterpart_id"`
	Limit         int    `json:"limit,omitempty"`
}

type ConversationResponse struct {
	Messages []*wire.Message `json:"messages"`
}

type ChatService_SessionServer = grpc.BidiStreamingServer[wire.ClientEvent, wire.ServerEvent]
type ChatService_SessionClient = grpc.BidiStreamingClient[wire.ClientEvent, wire.ServerEvent]

// ChatServiceServer is the server API for the chat service.
type ChatServiceServer interface {
	// Session is the live connection of an authenticated user.
	Session(ChatService_SessionServer) error
	SearchMessages(context.Context, *SearchRequest) (*SearchResponse, error)
	// GetConversation returns the latest messages exchanged with a counterpart, oldest first.
	GetConversation(context.Context, *ConversationRequest) (*ConversationResponse, error)
}

func RegisterChatServiceServer(s grpc.ServiceRegistrar, srv ChatServiceServer) {
	s.RegisterService(&ChatService_ServiceDesc, srv)
}

func _ChatService_Session_Handler(srv any, stream grpc.ServerStream) error {
	return srv.(ChatServiceServer).Session(&grpc.GenericServerStream[wire.ClientEvent, wire.ServerEvent]{ServerStream: stream})
}

func _ChatService_SearchMessages_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(SearchRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ChatServiceServer).SearchMessages(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ChatService_SearchMessages_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ChatServiceServer).SearchMessages(ctx, req.(*SearchRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _ChatService_GetConversation_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ConversationRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ChatServiceServer).GetConversation(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ChatService_GetConversation_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ChatServiceServer).GetConversation(ctx, req.(*ConversationRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var ChatService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "presence.v1.ChatService",
	HandlerType: (*ChatServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "SearchMessages",
			Handler:    _ChatService_SearchMessages_Handler,
		},
		{
			MethodName: "GetConversation",
			Handler:    _ChatService_GetConversation_Handler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Session",
			Handler:       _ChatService_Session_Handler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
}

type ChatServiceClient interface {
	Session(ctx context.Context, opts ...grpc.CallOption) (ChatService_SessionClient, error)
	SearchMessages(ctx context.Context, in *SearchRequest, opts ...grpc.CallOption) (*SearchResponse, error)
	GetConversation(ctx context.Context, in *ConversationRequest, opts ...grpc.CallOption) (*ConversationResponse, error)
}

type chatServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewChatServiceClient(cc grpc.ClientConnInterface) ChatServiceClient {
	return &chatServiceClient{cc}
}

func (c *chatServiceClient) Session(ctx context.Context, opts ...grpc.CallOption) (ChatService_SessionClient, error) {
	cOpts := append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	stream, err := c.cc.NewStream(ctx, &ChatService_ServiceDesc.Streams[0], ChatService_Session_FullMethodName, cOpts...)
	if err != nil {
		return nil, err
	}
	return &grpc.GenericClientStream[wire.ClientEvent, wire.ServerEvent]{ClientStream: stream}, nil
}

func (c *chatServiceClient) SearchMessages(ctx context.Context, in *SearchRequest, opts ...grpc.CallOption) (*SearchResponse, error) {
	cOpts := append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	out := new(SearchResponse)
	if err := c.cc.Invoke(ctx, ChatService_SearchMessages_FullMethodName, in, out, cOpts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *chatServiceClient) GetConversation(ctx context.Context, in *ConversationRequest, opts ...grpc.CallOption) (*ConversationResponse, error) {
	cOpts := append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	out := new(ConversationResponse)
	if err := c.cc.Invoke(ctx, ChatService_GetConversation_FullMethodName, in, out, cOpts...); err != nil {
		return nil, err
	}
	return out, nil
}
