package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/nfrund/chatline/internal/domain"
	"github.com/nfrund/chatline/internal/middleware"
)

// ErrorResponse is the standard format for API error responses.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// UserResponse is the DTO for a directory user.
type UserResponse struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"displayName"`
	State       string `json:"state"`
	StateCode   int    `json:"stateCode"`
}

// NewUserResponse creates a UserResponse from a domain.UserIdentity.
func NewUserResponse(u domain.UserIdentity) UserResponse {
	return UserResponse{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		State:       u.State.String(),
		StateCode:   int(u.State),
	}
}

// MessageResponse is the DTO for a stored chat message.
type MessageResponse struct {
	OwnerID   int64     `json:"ownerId"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessageResponse creates a MessageResponse from a domain.ChatMessage.
func NewMessageResponse(m domain.ChatMessage) MessageResponse {
	return MessageResponse{OwnerID: m.OwnerID, Content: m.Content, Timestamp: m.Timestamp}
}

// statusFor maps a domain error kind to an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch domain.KindOf(err) {
	case domain.ErrValidation:
		return http.StatusBadRequest, "validation"
	case domain.ErrNotFound:
		return http.StatusNotFound, "not_found"
	case domain.ErrConflict:
		return http.StatusConflict, "conflict"
	case domain.ErrTransport:
		return http.StatusBadGateway, "transport"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// respondError logs err and writes it as an ErrorResponse.
func respondError(c echo.Context, err error) error {
	status, code := statusFor(err)
	logger := middleware.FromContext(c.Request().Context())
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", "error", err)
	} else {
		logger.Warn("Request rejected", "error", err)
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	return c.JSON(status, ErrorResponse{Code: code, Message: message})
}
