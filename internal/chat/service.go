// Package chat implements the chat operations clients invoke over HTTP. It
// records state in the user directory and the history store and announces
// every change on the notification topics; it never talks to connections.
package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/nfrund/chatline/internal/directory"
	"github.com/nfrund/chatline/internal/domain"
	"github.com/nfrund/chatline/internal/history"
	"github.com/nfrund/chatline/internal/pubsub"
)

// Service coordinates history, directory and the notification bus.
type Service struct {
	history   *history.Store
	users     directory.Directory
	publisher pubsub.Publisher
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a chat service.
func NewService(store *history.Store, users directory.Directory, publisher pubsub.Publisher, opts ...Option) *Service {
	s := &Service{
		history:   store,
		users:     users,
		publisher: publisher,
		logger:    slog.Default().With("component", "chat"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SendMessage stores a message from ownerID and pushes it to all clients.
func (s *Service) SendMessage(ctx context.Context, ownerID int64, content string) (domain.ChatMessage, error) {
	if _, err := s.users.Get(ctx, ownerID); err != nil {
		return domain.ChatMessage{}, err
	}

	msg, err := domain.NewChatMessage(ownerID, content)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	if err := s.history.Append(msg); err != nil {
		return domain.ChatMessage{}, err
	}

	if err := pubsub.Publish(ctx, s.publisher, pubsub.MessageCreated, ownerID, msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish message", "owner_id", ownerID, "error", err)
		return msg, domain.Unexpected("chat.SendMessage", err)
	}
	return msg, nil
}

// LoadPreviousMessages returns one page of history at or before cutoff,
// newest first. A zero cutoff means now.
func (s *Service) LoadPreviousMessages(_ context.Context, cutoff time.Time) []domain.ChatMessage {
	if cutoff.IsZero() {
		cutoff = time.Now().UTC()
	}
	return s.history.QueryBefore(cutoff, 0)
}

// StartWrite marks userID as typing.
func (s *Service) StartWrite(ctx context.Context, userID int64) error {
	return s.changeState(ctx, "chat.StartWrite", userID, domain.StateWriting)
}

// CancelWrite returns userID from typing to online.
func (s *Service) CancelWrite(ctx context.Context, userID int64) error {
	return s.changeState(ctx, "chat.CancelWrite", userID, domain.StateOnline)
}

// CloseSession marks userID offline.
func (s *Service) CloseSession(ctx context.Context, userID int64) error {
	return s.changeState(ctx, "chat.CloseSession", userID, domain.StateOffline)
}

// LeaveChat announces userID as deleted and removes it from the directory.
// Live connections of the user are dropped by the broadcaster.
func (s *Service) LeaveChat(ctx context.Context, userID int64) error {
	if err := s.changeState(ctx, "chat.LeaveChat", userID, domain.StateDeleted); err != nil {
		return err
	}
	if err := s.users.Delete(ctx, userID); err != nil {
		s.logger.ErrorContext(ctx, "Failed to delete user", "user_id", userID, "error", err)
		return err
	}
	s.logger.InfoContext(ctx, "User left the chat", "user_id", userID)
	return nil
}

// LoadUsers lists every known user.
func (s *Service) LoadUsers(ctx context.Context) ([]domain.UserIdentity, error) {
	return s.users.List(ctx)
}

// RegisterUser adds name to the directory. Registering a name that already
// exists (ignoring case) returns the existing user and tells clients to
// reload its profile.
func (s *Service) RegisterUser(ctx context.Context, name string) (domain.UserIdentity, bool, error) {
	user, created, err := s.users.AddOrUpdate(ctx, name)
	if err != nil {
		return domain.UserIdentity{}, false, err
	}
	if created {
		s.logger.InfoContext(ctx, "User registered", "user_id", user.ID, "name", user.DisplayName)
		return user, true, nil
	}

	if err := pubsub.Publish(ctx, s.publisher, pubsub.ProfileChanged, user.ID, domain.UserProfileChanged{UserID: user.ID}); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish profile change", "user_id", user.ID, "error", err)
		return user, false, domain.Unexpected("chat.RegisterUser", err)
	}
	return user, false, nil
}

func (s *Service) changeState(ctx context.Context, op string, userID int64, state domain.UserState) error {
	if err := s.users.SetState(ctx, userID, state); err != nil {
		return err
	}
	event := domain.UserStateChanged{UserID: userID, State: state}
	if err := pubsub.Publish(ctx, s.publisher, pubsub.StateChanged, userID, event); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish state change", "user_id", userID, "state", state, "error", err)
		return domain.Unexpected(op, err)
	}
	return nil
}
