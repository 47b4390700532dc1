package server

import (
	"chat-presence/domain/chat"
	"chat-presence/errors"
	"chat-presence/infrastructure/grpc/api"
	"chat-presence/infrastructure/wire"
	"chat-presence/search"
	"chat-presence/services"
	"chat-presence/sink"
	"context"
	stderrors "errors"
	"io"
	"log/slog"

	"github.com/samber/lo"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type ChatServer struct {
	chatService          services.IChatService
	connectionBufferSize int
	searchLimit          int
	historyLimit         int
	log                  *slog.Logger
}

func NewChatServer(log *slog.Logger, chatService services.IChatService,
	connectionBufferSize, searchLimit, historyLimit int) *ChatServer {
	return &ChatServer{
		chatService:          chatService,
		connectionBufferSize: connectionBufferSize,
		searchLimit:          searchLimit,
		historyLimit:         historyLimit,
		log:                  log,
	}
}

// Session serves the live connection of an authenticated user.
// Inbound frames are handled one at a time by a reader goroutine, outbound
// events are drained from the connection sink by this goroutine. The session
// ends when the client closes its side, the stream breaks or the server stops.
func (s *ChatServer) Session(stream api.ChatService_SessionServer) error {
	ctx := stream.Context()
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "unauthenticated stream")
	}

	// 1. Bring the identity online, which also flushes its backlog
	conn := sink.NewConnectionSink(s.connectionBufferSize)
	s.chatService.Connect(ctx, identity, conn)

	// 2. Always go offline through this exact connection, even when ctx is
	// already cancelled, so a newer connection is never torn down by mistake
	defer func() {
		conn.Close()
		s.chatService.Disconnect(context.WithoutCancel(ctx), identity, conn)
	}()

	// 3. Read commands concurrently and write events from here, since a
	// stream allows one reader and one writer at a time
	inbound := make(chan error, 1)
	go func() {
		inbound <- s.readLoop(ctx, identity, conn, stream)
	}()

	for {
		select {
		case <-ctx.Done():
			s.log.Debug("stream context done", "user_id", identity, "connection_id", conn.ID())
			return nil
		case err := <-inbound:
			if err == nil || stderrors.Is(err, io.EOF) {
				return nil
			}
			s.log.Warn("stream receive failed", "user_id", identity, "error", err)
			return err
		case evt := <-conn.Events:
			frame, ok := wire.FromEvent(evt)
			if !ok {
				continue
			}
			if err := stream.Send(&frame); err != nil {
				s.log.Error("failed to push event to stream",
					"user_id", identity,
					"connection_id", conn.ID(),
					"error", err)
				return err
			}
		}
	}
}

func (s *ChatServer) readLoop(ctx context.Context, identity chat.UserID,
	conn *sink.ConnectionSink, stream api.ChatService_SessionServer) error {
	for {
		in, err := stream.Recv()
		if err != nil {
			return err
		}
		s.chatService.Handle(ctx, identity, conn, in.ToCommand())
	}
}

func (s *ChatServer) SearchMessages(ctx context.Context, req *api.SearchRequest) (*api.SearchResponse, error) {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unauthenticated call")
	}
	limit := req.Limit
	if limit <= 0 || limit > s.searchLimit {
		limit = s.searchLimit
	}
	hits, err := s.chatService.Search(ctx, identity, req.Query, limit)
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return &api.SearchResponse{Hits: toSearchHits(hits)}, nil
}

// GetConversation returns the latest messages the caller exchanged with the
// counterpart, oldest first. The limit is capped by the configured history
// limit, which also applies when the client sends none.
func (s *ChatServer) GetConversation(ctx context.Context, req *api.ConversationRequest) (*api.ConversationResponse, error) {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unauthenticated call")
	}
	limit := req.Limit
	if limit <= 0 || limit > s.historyLimit {
		limit = s.historyLimit
	}
	messages, err := s.chatService.Conversation(ctx, identity, chat.UserID(req.CounterpartID), limit)
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return &api.ConversationResponse{Messages: lo.Map(messages, func(m chat.Message, _ int) *wire.Message {
		return wire.FromMessage(m)
	})}, nil
}

func toSearchHits(hits []search.Hit) []api.SearchHit {
	return lo.Map(hits, func(h search.Hit, _ int) api.SearchHit {
		return api.SearchHit{
			MessageID:  h.MessageID.String(),
			SenderID:   string(h.SenderID),
			ReceiverID: string(h.ReceiverID),
			Content:    h.Content,
			Timestamp:  h.CreatedAt,
			Score:      h.Score,
		}
	})
}
