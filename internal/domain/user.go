package domain

import (
	"context"
	"fmt"
)

// UserState is the presence state of a chat user. The numeric value is the
// value carried on the wire.
type UserState int

const (
	StateNew UserState = iota
	StateOnline
	StateIdle
	StateOffline
	StateDeleted
	StateWriting
)

var userStateNames = [...]string{"new", "online", "idle", "offline", "deleted", "writing"}

func (s UserState) String() string {
	if s < 0 || int(s) >= len(userStateNames) {
		return fmt.Sprintf("UserState(%d)", int(s))
	}
	return userStateNames[s]
}

// Valid reports whether s is one of the defined states.
func (s UserState) Valid() bool {
	return s >= StateNew && s <= StateWriting
}

// Gone reports whether a transition to s ends the user's live presence.
func (s UserState) Gone() bool {
	return s == StateOffline || s == StateDeleted
}

// UserIdentity is a chat participant as known to the user directory.
type UserIdentity struct {
	// ID is the directory assigned identifier; 0 means unassigned.
	ID          int64     `json:"id" validate:"gte=0"`
	DisplayName string    `json:"displayName" validate:"required,max=64"`
	State       UserState `json:"state"`
}

// Validate checks the struct tags of the identity.
func (u UserIdentity) Validate() error {
	if err := validatorInstance.Struct(u); err != nil {
		return Validation("UserIdentity", err.Error())
	}
	return nil
}

// UserDirectory is the authority for user identity. The connection registry
// and the chat service consult it; they never allocate ids themselves.
type UserDirectory interface {
	FindByName(ctx context.Context, name string) (UserIdentity, error)
	Exists(ctx context.Context, name string) (bool, error)
	SetState(ctx context.Context, id int64, state UserState) error
}
