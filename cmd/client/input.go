package main

import (
	"chat-presence/infrastructure/wire"
	stderrors "errors"
	"strings"
)

var errUsage = stderrors.New("usage: @user message | /typing user | /stop user | /read user | /search text | /history user")

type queryKind string

const (
	querySearch  queryKind = "search"
	queryHistory queryKind = "history"
)

// localQuery is a line answered by a unary call instead of the session stream.
type localQuery struct {
	kind queryKind
	arg  string
}

// parseLine turns a typed line into either an outbound frame or a local query.
//
//	@bob hello there   -> send_message to bob
//	/typing bob        -> typing started
//	/stop bob          -> typing stopped
//	/read bob          -> messages_read for the conversation with bob
//	/search hello      -> message search
//	/history bob       -> latest messages exchanged with bob
func parseLine(line string) (*wire.ClientEvent, localQuery, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, localQuery{}, errUsage
	}

	if strings.HasPrefix(line, "@") {
		receiver, content, ok := strings.Cut(line[1:], " ")
		content = strings.TrimSpace(content)
		if !ok || receiver == "" || content == "" {
			return nil, localQuery{}, errUsage
		}
		return &wire.ClientEvent{Type: "send_message", ReceiverID: receiver, Content: content}, localQuery{}, nil
	}

	command, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return nil, localQuery{}, errUsage
	}
	switch command {
	case "/typing":
		return &wire.ClientEvent{Type: "typing", ReceiverID: arg, IsTyping: true}, localQuery{}, nil
	case "/stop":
		return &wire.ClientEvent{Type: "typing", ReceiverID: arg}, localQuery{}, nil
	case "/read":
		return &wire.ClientEvent{Type: "messages_read", CounterpartID: arg}, localQuery{}, nil
	case "/search":
		return nil, localQuery{kind: querySearch, arg: arg}, nil
	case "/history":
		return nil, localQuery{kind: queryHistory, arg: arg}, nil
	default:
		return nil, localQuery{}, errUsage
	}
}
