package chat

import "fmt"

// Status is the delivery state of a message. It only moves forward:
// Sent -> Delivered -> Seen.
type Status int

const (
	StatusUnknown Status = iota
	StatusSent
	StatusDelivered
	StatusSeen
)

func (s Status) String() string {
	switch s {
	case StatusSent:
		return "sent"
	case StatusDelivered:
		return "delivered"
	case StatusSeen:
		return "seen"
	default:
		return "unknown"
	}
}

func (s Status) Valid() bool {
	return s >= StatusSent && s <= StatusSeen
}

// Terminal reports whether no further transition can apply.
func (s Status) Terminal() bool {
	return s == StatusSeen
}

// Advance returns the status reached when moving s to next.
// Moving to an equal or earlier status is a no-op and reports false.
func (s Status) Advance(next Status) (Status, bool) {
	if !next.Valid() || next <= s {
		return s, false
	}
	return next, true
}

func ParseStatus(str string) (Status, error) {
	switch str {
	case "sent":
		return StatusSent, nil
	case "delivered":
		return StatusDelivered, nil
	case "seen":
		return StatusSeen, nil
	}
	return StatusUnknown, fmt.Errorf("unknown status %q", str)
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
