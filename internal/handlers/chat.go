package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/nfrund/chatline/internal/chat"
	"github.com/nfrund/chatline/internal/domain"
	"github.com/nfrund/chatline/internal/middleware"
)

// ChatHandler exposes the chat service as a JSON API.
type ChatHandler struct {
	service *chat.Service
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(service *chat.Service) *ChatHandler {
	return &ChatHandler{service: service}
}

// Register mounts the chat routes on g.
func (h *ChatHandler) Register(g *echo.Group) {
	g.GET("/users", h.ListUsers)
	g.POST("/users", h.RegisterUser)
	g.DELETE("/users/:id", h.LeaveChat)
	g.POST("/users/:id/writing", h.StartWrite)
	g.DELETE("/users/:id/writing", h.CancelWrite)
	g.POST("/users/:id/session/close", h.CloseSession)
	g.GET("/messages", h.LoadMessages)
	g.POST("/messages", h.SendMessage)
}

// RegisterUser adds a user, or returns the existing one with the same name.
func (h *ChatHandler) RegisterUser(c echo.Context) error {
	var req RegisterUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format.")
	}
	if err := c.Validate(&req); err != nil {
		return respondError(c, domain.Validation("handlers.RegisterUser", err.Error()))
	}

	user, created, err := h.service.RegisterUser(c.Request().Context(), req.Name)
	if err != nil {
		return respondError(c, err)
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, NewUserResponse(user))
}

// ListUsers returns every known user.
func (h *ChatHandler) ListUsers(c echo.Context) error {
	users, err := h.service.LoadUsers(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, NewUserResponse(u))
	}
	return c.JSON(http.StatusOK, out)
}

// SendMessage posts a chat message.
func (h *ChatHandler) SendMessage(c echo.Context) error {
	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format.")
	}
	if err := c.Validate(&req); err != nil {
		return respondError(c, domain.Validation("handlers.SendMessage", err.Error()))
	}

	msg, err := h.service.SendMessage(c.Request().Context(), req.OwnerID, req.Content)
	if err != nil {
		return respondError(c, err)
	}
	middleware.FromContext(c.Request().Context()).Debug("Message sent", "owner_id", msg.OwnerID)
	return c.JSON(http.StatusCreated, NewMessageResponse(msg))
}

// LoadMessages returns one page of history. The optional "before" query
// parameter (RFC 3339) is the inclusive cutoff; it defaults to now.
func (h *ChatHandler) LoadMessages(c echo.Context) error {
	var cutoff time.Time
	if raw := c.QueryParam("before"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return respondError(c, domain.Validation("handlers.LoadMessages", "before must be an RFC 3339 timestamp"))
		}
		cutoff = parsed
	}

	page := h.service.LoadPreviousMessages(c.Request().Context(), cutoff)
	out := make([]MessageResponse, 0, len(page))
	for _, m := range page {
		out = append(out, NewMessageResponse(m))
	}
	return c.JSON(http.StatusOK, out)
}

// StartWrite marks the user as typing.
func (h *ChatHandler) StartWrite(c echo.Context) error {
	return h.userAction(c, h.service.StartWrite)
}

// CancelWrite marks the user as no longer typing.
func (h *ChatHandler) CancelWrite(c echo.Context) error {
	return h.userAction(c, h.service.CancelWrite)
}

// CloseSession marks the user offline.
func (h *ChatHandler) CloseSession(c echo.Context) error {
	return h.userAction(c, h.service.CloseSession)
}

// LeaveChat removes the user.
func (h *ChatHandler) LeaveChat(c echo.Context) error {
	return h.userAction(c, h.service.LeaveChat)
}

func (h *ChatHandler) userAction(c echo.Context, action func(ctx context.Context, userID int64) error) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return respondError(c, domain.Validation("handlers.userAction", "id must be an integer"))
	}
	if err := action(c.Request().Context(), id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
