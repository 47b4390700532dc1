package main

import (
	"chat-presence/auth"
	"chat-presence/infrastructure/grpc/api"
	grpcserver "chat-presence/infrastructure/grpc/server"
	"chat-presence/infrastructure/websocket"
	"chat-presence/repositories"
	"chat-presence/runtime"
	"chat-presence/runtime/workers"
	"chat-presence/search"
	"chat-presence/services"
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"google.golang.org/grpc"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and owns the server lifecycle, so that deferred
// cleanups run before the process exits.
func run() error {
	// .env is optional, the environment wins
	_ = godotenv.Load()

	// 1. Configuration & Logger
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Storage (BadgerDB) and search index (Bluge)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	indexWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return fmt.Errorf("search index opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing search index...")
		_ = indexWriter.Close()
	}()

	messageRepository := repositories.NewMessageRepository(db, log, config.StoreTimeout)
	userRepository := repositories.NewUserRepository(db)
	index := search.NewIndex(indexWriter, log)

	// 3. Presence & delivery core
	registry := runtime.NewRegistry()
	indexer := workers.NewIndexer(log, index, config.IndexBufferSize, config.IndexBatchSize, config.IndexFlushInterval)
	dispatcher := runtime.NewDispatcher(log, registry, messageRepository, userRepository, config.MaxContentLength).
		AddListener(indexer)
	sessions := runtime.NewSessionManager(log, registry, userRepository, dispatcher)

	tokens := auth.NewTokenIssuer(config.AuthSecret, config.AuthTokenDuration)
	chatService := services.NewChatService(log, sessions, dispatcher, index)
	authService := services.NewAuthService(userRepository, tokens)

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Background workers
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(indexer, workers.NewHealthMonitor(log, registry, config.HealthInterval))
	supervisorDone := make(chan struct{})
	go func() {
		defer close(supervisorDone)
		sup.Run(ctx)
	}()

	// 6. gRPC Server Setup
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpcserver.AuthInterceptor(tokens)),
		grpc.ChainStreamInterceptor(grpcserver.StreamAuthInterceptor(tokens)),
	)
	api.RegisterChatServiceServer(s, grpcserver.NewChatServer(log, chatService,
		config.ConnectionBufferSize, config.SearchLimit, config.HistoryLimit))
	api.RegisterAuthServiceServer(s, grpcserver.NewAuthServer(authService))

	// 7. WebSocket gateway
	mux := http.NewServeMux()
	mux.Handle("/ws", websocket.NewGateway(log, chatService, tokens, config.ConnectionBufferSize))
	wsServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", config.Host, config.WsPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		// Open WebSocket sessions end with the server context.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errChan := make(chan error, 2)
	go func() {
		log.Info("Starting gRPC server", "address", address, "at", time.Now().UTC())
		if err := s.Serve(listener); err != nil && !stderrors.Is(err, grpc.ErrServerStopped) {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()
	go func() {
		log.Info("Starting WebSocket gateway", "address", wsServer.Addr)
		if err := wsServer.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("websocket gateway error: %w", err)
		}
	}()

	// 8. Wait for Stop or Error
	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case runErr = <-errChan:
		log.Error("Server failed, shutting down", "error", runErr)
	}

	// 9. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("WebSocket gateway shutdown", "error", err)
	}
	stopped := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		log.Warn("Open sessions did not end in time, forcing gRPC stop")
		s.Stop()
	}
	sup.Stop()
	<-supervisorDone
	log.Info("Program stopped cleanly")

	return runErr
}
