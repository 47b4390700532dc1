package main

import (
	"bufio"
	"chat-presence/infrastructure/grpc/api"
	"chat-presence/infrastructure/wire"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	// 1. Configuration
	config, err := LoadConfig()
	if err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)
	printer := newPrinter(config.Colours)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connection
	conn, err := grpc.NewClient(config.ServerAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to server at %s: %w", config.ServerAddr, err)
	}
	defer func() {
		log.Info("Closing connection...")
		_ = conn.Close()
	}()

	// 3. Authentication
	session, err := authenticate(ctx, api.NewAuthServiceClient(conn), config)
	if err != nil {
		return exitRuntime, err
	}
	ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+session.Token)

	// 4. Live session
	client := api.NewChatServiceClient(conn)
	stream, err := client.Session(ctx)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open session: %w", err)
	}
	printer.info(fmt.Sprintf(">>> Connected to %s as %s (Ctrl+C to quit)", config.ServerAddr, session.UserID))

	go readInput(ctx, log, stream, client, printer)

	for {
		frame, err := stream.Recv()
		if stderrors.Is(err, io.EOF) {
			return exitOK, nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return exitOK, nil
			}
			return exitRuntime, fmt.Errorf("session closed: %w", err)
		}
		printer.event(*frame)
	}
}

func authenticate(ctx context.Context, client api.AuthServiceClient, config Config) (*api.AuthResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if config.Username != "" {
		_, err := client.Register(callCtx, &api.RegisterRequest{
			Username: config.Username,
			Email:    config.Email,
			Password: config.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("register failed: %w", err)
		}
	}
	resp, err := client.Login(callCtx, &api.LoginRequest{Email: config.Email, Password: config.Password})
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}
	return resp, nil
}

// readInput forwards typed lines until stdin closes, then half-closes the stream.
func readInput(ctx context.Context, log *slog.Logger, stream api.ChatService_SessionClient,
	client api.ChatServiceClient, printer printer) {
	defer func() {
		_ = stream.CloseSend()
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		frame, query, err := parseLine(scanner.Text())
		if err != nil {
			printer.warn(err.Error())
			continue
		}
		switch query.kind {
		case querySearch:
			resp, err := client.SearchMessages(ctx, &api.SearchRequest{Query: query.arg})
			if err != nil {
				printer.warn(fmt.Sprintf("search failed: %v", err))
				continue
			}
			printer.hits(resp.Hits)
			continue
		case queryHistory:
			resp, err := client.GetConversation(ctx, &api.ConversationRequest{CounterpartID: query.arg})
			if err != nil {
				printer.warn(fmt.Sprintf("history failed: %v", err))
				continue
			}
			printer.history(resp.Messages)
			continue
		}
		if err := stream.Send(frame); err != nil {
			log.Error("Failed to send frame", "error", err)
			return
		}
	}
}

type printer struct {
	colours bool
}

func newPrinter(colours bool) printer {
	return printer{colours: colours}
}

func (p printer) render(style color.Style, s string) string {
	if !p.colours {
		return s
	}
	return style.Render(s)
}

func (p printer) info(s string) {
	fmt.Println(p.render(color.New(color.BgBlack, color.FgGreen), s))
}

func (p printer) warn(s string) {
	fmt.Println(p.render(color.New(color.FgYellow), s))
}

func (p printer) event(frame wire.ServerEvent) {
	switch frame.Type {
	case "receive_message":
		fmt.Printf("%s %s\n", p.render(color.New(color.FgCyan, color.OpBold), "["+frame.Message.SenderID+"]"), frame.Message.Content)
	case "message_sent":
		fmt.Println(p.render(color.New(color.FgGray), fmt.Sprintf("  sent %s (%s)", frame.Message.ID, frame.Message.Status)))
	case "message_delivered":
		fmt.Println(p.render(color.New(color.FgGray), fmt.Sprintf("  delivered %s", frame.MessageID)))
	case "messages_seen":
		fmt.Println(p.render(color.New(color.FgBlue), fmt.Sprintf("  seen by %s", frame.UserID)))
	case "user_online":
		fmt.Println(p.render(color.New(color.FgGreen), fmt.Sprintf("* %s is online", frame.UserID)))
	case "user_offline":
		fmt.Println(p.render(color.New(color.FgGray), fmt.Sprintf("* %s is offline", frame.UserID)))
	case "user_typing":
		if frame.IsTyping {
			fmt.Println(p.render(color.New(color.FgGray), fmt.Sprintf("  %s is typing...", frame.UserID)))
		}
	case "error":
		fmt.Println(p.render(color.New(color.FgRed), "! "+frame.Reason))
	}
}

func (p printer) hits(hits []api.SearchHit) {
	if len(hits) == 0 {
		p.warn("no match")
		return
	}
	for _, hit := range hits {
		fmt.Printf("%s %s -> %s: %s\n",
			p.render(color.New(color.FgGray), hit.Timestamp.Local().Format(time.DateTime)),
			hit.SenderID, hit.ReceiverID, hit.Content)
	}
}

func (p printer) history(messages []*wire.Message) {
	if len(messages) == 0 {
		p.warn("no message yet")
		return
	}
	for _, m := range messages {
		fmt.Printf("%s %s -> %s: %s %s\n",
			p.render(color.New(color.FgGray), m.Timestamp.Local().Format(time.DateTime)),
			m.SenderID, m.ReceiverID, m.Content,
			p.render(color.New(color.FgGray), "("+m.Status+")"))
	}
}
