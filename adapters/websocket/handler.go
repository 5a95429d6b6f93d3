package websocket

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/satriahrh/cocoa-relay/domain"
)

// Handler serves "/ws". It expects JWT middleware to have stored a
// domain.Caller and blocks until the connection is closed.
func (s *Server) Handler(c echo.Context) error {
	caller, ok := c.Get(domain.CallerContextKey).(domain.Caller)
	if !ok || caller.DeviceID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Missing caller")
	}

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := NewClient(conn, s.broker, caller)
	s.hub.Register(client)
	defer s.hub.Unregister(client)

	client.Run()

	select {
	case <-client.Context().Done():
	case <-c.Request().Context().Done():
	}
	return nil
}
