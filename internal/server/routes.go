package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nfrund/chatline/internal/middleware"
)

const (
	apiRatePerSecond = 20
	apiBurst         = 40
)

// RegisterRoutes sets up all the application routes.
func (s *Server) RegisterRoutes() {
	s.E.GET(s.Cfg.GetWSPath(), s.Hub.Handler())
	s.E.GET("/status", s.Hub.StatusHandler)

	api := s.E.Group("/api", middleware.RateLimiter(apiRatePerSecond, apiBurst))
	s.chatHandler.Register(api)

	s.E.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
}
