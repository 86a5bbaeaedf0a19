// Package server assembles the echo HTTP server: the WebSocket push channel,
// the chat JSON API and the operational endpoints.
package server

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/nfrund/chatline/internal/chat"
	"github.com/nfrund/chatline/internal/config"
	"github.com/nfrund/chatline/internal/handlers"
	appmiddleware "github.com/nfrund/chatline/internal/middleware"
	"github.com/nfrund/chatline/internal/websocket"
)

// Server holds the dependencies for the HTTP server.
type Server struct {
	E           *echo.Echo
	Cfg         config.Provider
	Hub         *websocket.Hub
	chatHandler *handlers.ChatHandler
	logger      *slog.Logger
}

// New creates a new Server instance. Routes are added by RegisterRoutes.
func New(cfg config.Provider, hub *websocket.Hub, service *chat.Service) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handlers.NewValidator()

	e.Use(middleware.RequestID())
	e.Use(appmiddleware.Logger)
	e.Use(middleware.Recover())
	setupErrorHandling(e)

	return &Server{
		E:           e,
		Cfg:         cfg,
		Hub:         hub,
		chatHandler: handlers.NewChatHandler(service),
		logger:      slog.Default().With("component", "server"),
	}
}
