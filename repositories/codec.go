package repositories

import (
	"chat-presence/domain/chat"
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"
)

// Records are stored as protobuf wire messages so that fields can be added
// without migrating existing keys.

const (
	messageFieldID protowire.Number = iota + 1
	messageFieldSender
	messageFieldReceiver
	messageFieldContent
	messageFieldStatus
	messageFieldCreatedAt
)

const (
	userFieldID protowire.Number = iota + 1
	userFieldUsername
	userFieldEmail
	userFieldPasswordHash
	_ // 5 and 6 held the presence flag before it moved to "presence:" keys
	_
	userFieldCreatedAt
	userFieldRoles
)

const (
	presenceFieldOnline protowire.Number = iota + 1
	presenceFieldLastSeen
)

type record struct {
	strings map[protowire.Number][]string
	varints map[protowire.Number]uint64
}

func (r record) str(num protowire.Number) string {
	if values := r.strings[num]; len(values) > 0 {
		return values[len(values)-1]
	}
	return ""
}

func (r record) time(num protowire.Number) time.Time {
	v, ok := r.varints[num]
	if !ok {
		return time.Time{}
	}
	return time.Unix(0, int64(v)).UTC()
}

func parseRecord(b []byte) (record, error) {
	r := record{
		strings: make(map[protowire.Number][]string),
		varints: make(map[protowire.Number]uint64),
	}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return record{}, protowire.ParseError(n)
		}
		b = b[n:]
		switch typ {
		case protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return record{}, protowire.ParseError(n)
			}
			r.strings[num] = append(r.strings[num], v)
			b = b[n:]
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return record{}, protowire.ParseError(n)
			}
			r.varints[num] = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return record{}, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return r, nil
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendTime(b []byte, num protowire.Number, t time.Time) []byte {
	if t.IsZero() {
		return b
	}
	return appendVarint(b, num, uint64(t.UnixNano()))
}

func marshalMessage(m chat.Message) []byte {
	var b []byte
	b = appendString(b, messageFieldID, m.ID.String())
	b = appendString(b, messageFieldSender, string(m.SenderID))
	b = appendString(b, messageFieldReceiver, string(m.ReceiverID))
	b = appendString(b, messageFieldContent, m.Content)
	b = appendVarint(b, messageFieldStatus, uint64(m.Status))
	b = appendTime(b, messageFieldCreatedAt, m.CreatedAt)
	return b
}

func unmarshalMessage(b []byte) (chat.Message, error) {
	r, err := parseRecord(b)
	if err != nil {
		return chat.Message{}, err
	}
	id, err := uuid.Parse(r.str(messageFieldID))
	if err != nil {
		return chat.Message{}, fmt.Errorf("invalid message id: %w", err)
	}
	return chat.Message{
		ID:         id,
		SenderID:   chat.UserID(r.str(messageFieldSender)),
		ReceiverID: chat.UserID(r.str(messageFieldReceiver)),
		Content:    r.str(messageFieldContent),
		Status:     chat.Status(r.varints[messageFieldStatus]),
		CreatedAt:  r.time(messageFieldCreatedAt),
	}, nil
}

func marshalUser(u User) []byte {
	var b []byte
	b = appendString(b, userFieldID, u.ID)
	b = appendString(b, userFieldUsername, u.Username)
	b = appendString(b, userFieldEmail, u.Email)
	b = appendString(b, userFieldPasswordHash, u.PasswordHash)
	b = appendTime(b, userFieldCreatedAt, u.CreatedAt)
	for _, role := range u.Roles {
		b = appendString(b, userFieldRoles, role)
	}
	return b
}

func unmarshalUser(b []byte) (User, error) {
	r, err := parseRecord(b)
	if err != nil {
		return User{}, err
	}
	return User{
		ID:           r.str(userFieldID),
		Username:     r.str(userFieldUsername),
		Email:        r.str(userFieldEmail),
		PasswordHash: r.str(userFieldPasswordHash),
		CreatedAt:    r.time(userFieldCreatedAt),
		Roles:        r.strings[userFieldRoles],
	}, nil
}

func marshalPresence(p chat.Presence) []byte {
	var b []byte
	online := uint64(0)
	if p.Online {
		online = 1
	}
	b = appendVarint(b, presenceFieldOnline, online)
	return appendTime(b, presenceFieldLastSeen, p.LastSeen)
}

func unmarshalPresence(b []byte) (chat.Presence, error) {
	r, err := parseRecord(b)
	if err != nil {
		return chat.Presence{}, err
	}
	return chat.Presence{
		Online:   r.varints[presenceFieldOnline] == 1,
		LastSeen: r.time(presenceFieldLastSeen),
	}, nil
}

// DecodeMessage decodes a stored "msg:" value.
func DecodeMessage(b []byte) (chat.Message, error) {
	return unmarshalMessage(b)
}

// DecodeUser decodes a stored "user:" value.
func DecodeUser(b []byte) (User, error) {
	return unmarshalUser(b)
}

// DecodePresence decodes a stored "presence:" value.
func DecodePresence(b []byte) (chat.Presence, error) {
	return unmarshalPresence(b)
}
