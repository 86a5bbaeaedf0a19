// Package directory is the authority for chat user identities. The connection
// registry looks users up here; ids are only ever handed out by a directory.
package directory

import (
	"context"

	"github.com/nfrund/chatline/internal/domain"
)

// Directory extends the lookups the notification core needs with the
// mutations used by the chat service.
type Directory interface {
	domain.UserDirectory

	// AddOrUpdate returns the user registered under name, creating it when
	// no user folds to the same name. The bool reports whether a user was created.
	AddOrUpdate(ctx context.Context, name string) (domain.UserIdentity, bool, error)
	// Get returns the user with id.
	Get(ctx context.Context, id int64) (domain.UserIdentity, error)
	// List returns all users ordered by id.
	List(ctx context.Context) ([]domain.UserIdentity, error)
	// Delete removes the user with id.
	Delete(ctx context.Context, id int64) error
}
