// Package protocol defines the JSON envelopes pushed to chat clients and the
// classifier clients use to tell them apart.
//
// Envelopes carry no explicit kind tag. A receiver infers the kind from the
// field names present in the payload, see Classify.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nfrund/chatline/internal/domain"
)

// MessageEnvelope is the wire form of a chat message.
type MessageEnvelope struct {
	OwnerID  int64     `json:"OwnerId"`
	Content  string    `json:"Content"`
	DateTime time.Time `json:"DateTime"`
}

// StateEnvelope is the wire form of a presence change.
type StateEnvelope struct {
	UserID int64 `json:"UserId"`
	State  int   `json:"State"`
}

// ProfileEnvelope asks clients to reload a user's whole profile.
type ProfileEnvelope struct {
	UserID int64 `json:"UserId"`
}

// Rejection codes sent before the server closes an unbindable connection.
const (
	RejectUnknownUser = 1
	RejectNameInUse   = 2
	RejectInternal    = 3
	RejectInvalidName = 4
)

// RejectionEnvelope tells a connecting client why it was refused. It
// contains none of the field names Classify looks for, so receivers drop it.
type RejectionEnvelope struct {
	Error string `json:"Error"`
	Code  int    `json:"Code"`
}

// Encode serializes a domain event into its envelope. Supported events are
// domain.ChatMessage, domain.UserStateChanged, domain.UserProfileChanged and
// RejectionEnvelope (and pointers to them).
func Encode(event any) ([]byte, error) {
	var env any
	switch e := event.(type) {
	case domain.ChatMessage:
		env = MessageEnvelope{OwnerID: e.OwnerID, Content: e.Content, DateTime: e.Timestamp.UTC()}
	case *domain.ChatMessage:
		return Encode(*e)
	case domain.UserStateChanged:
		env = StateEnvelope{UserID: e.UserID, State: int(e.State)}
	case *domain.UserStateChanged:
		return Encode(*e)
	case domain.UserProfileChanged:
		env = ProfileEnvelope{UserID: e.UserID}
	case *domain.UserProfileChanged:
		return Encode(*e)
	case RejectionEnvelope:
		env = e
	default:
		return nil, domain.Errorf(domain.ErrValidation, "protocol.Encode", "unsupported event type %T", event)
	}

	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %T: %w", event, err)
	}
	return data, nil
}

// Rejection builds the rejection envelope matching err.
func Rejection(err error) []byte {
	env := RejectionEnvelope{Error: "internal error", Code: RejectInternal}
	switch domain.KindOf(err) {
	case domain.ErrNotFound:
		env = RejectionEnvelope{Error: "user not found", Code: RejectUnknownUser}
	case domain.ErrConflict:
		env = RejectionEnvelope{Error: "name already connected", Code: RejectNameInUse}
	case domain.ErrValidation:
		env = RejectionEnvelope{Error: "invalid name", Code: RejectInvalidName}
	}
	data, _ := json.Marshal(env)
	return data
}
