package handlers

import (
	"github.com/go-playground/validator/v10"
)

// CustomValidator wraps the go-playground/validator library to implement Echo's Validator interface.
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a new CustomValidator.
func NewValidator() *CustomValidator {
	return &CustomValidator{validator: validator.New()}
}

// Validate implements the echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// RegisterUserRequest is the body of POST /api/users.
type RegisterUserRequest struct {
	Name string `json:"name" validate:"required,max=64"`
}

// SendMessageRequest is the body of POST /api/messages.
type SendMessageRequest struct {
	OwnerID int64  `json:"ownerId" validate:"gte=0"`
	Content string `json:"content" validate:"required"`
}
