package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/nfrund/chatline/internal/domain"
)

// Kind identifies a classified frame.
type Kind int

const (
	KindUnknown Kind = iota
	KindMessage
	KindState
	KindProfile
)

func (k Kind) String() string {
	switch k {
	case KindMessage:
		return "message"
	case KindState:
		return "state"
	case KindProfile:
		return "profile"
	default:
		return "unknown"
	}
}

// Frame is a decoded inbound payload. Exactly one of the pointer fields is
// set, matching Kind.
type Frame struct {
	Kind    Kind
	Message *domain.ChatMessage
	State   *domain.UserStateChanged
	Profile *domain.UserProfileChanged
}

var (
	markerContent = []byte("content")
	markerState   = []byte("state")
	markerUserID  = []byte("userid")
)

// Sniff returns the kind a payload would be classified as, without decoding
// it. Markers are matched case-insensitively in the order content, state,
// userid.
func Sniff(raw []byte) Kind {
	lower := bytes.ToLower(raw)
	switch {
	case bytes.Contains(lower, markerContent):
		return KindMessage
	case bytes.Contains(lower, markerState):
		return KindState
	case bytes.Contains(lower, markerUserID):
		return KindProfile
	default:
		return KindUnknown
	}
}

// Classify sniffs and decodes a raw frame. Payloads that are not UTF-8, match
// no marker, or fail to decode as the sniffed envelope return an error and
// should be dropped by the caller.
func Classify(raw []byte) (Frame, error) {
	if !utf8.Valid(raw) {
		return Frame{}, domain.Validation("protocol.Classify", "payload is not valid UTF-8")
	}

	switch kind := Sniff(raw); kind {
	case KindMessage:
		var env MessageEnvelope
		if err := decode(raw, &env); err != nil {
			return Frame{}, err
		}
		return Frame{Kind: kind, Message: &domain.ChatMessage{
			OwnerID:   env.OwnerID,
			Content:   env.Content,
			Timestamp: env.DateTime,
		}}, nil

	case KindState:
		var env StateEnvelope
		if err := decode(raw, &env); err != nil {
			return Frame{}, err
		}
		return Frame{Kind: kind, State: &domain.UserStateChanged{
			UserID: env.UserID,
			State:  domain.UserState(env.State),
		}}, nil

	case KindProfile:
		var env ProfileEnvelope
		if err := decode(raw, &env); err != nil {
			return Frame{}, err
		}
		return Frame{Kind: kind, Profile: &domain.UserProfileChanged{UserID: env.UserID}}, nil

	default:
		return Frame{}, domain.Validation("protocol.Classify", "unrecognized payload")
	}
}

// decode unmarshals an envelope; field names match case-insensitively.
func decode(raw []byte, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return domain.Validation("protocol.Classify", fmt.Sprintf("malformed %T: %v", v, err))
	}
	return nil
}
