package websocket

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/satriahrh/cocoa-relay/domain"
)

const Source = "websocket"

// Server upgrades authenticated requests on /ws and owns the Hub that serves
// as the websocket reply sink.
type Server struct {
	upgrader websocket.Upgrader
	broker   domain.MessageBroker
	hub      *Hub
}

func NewServer(broker domain.MessageBroker) *Server {
	return &Server{
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		broker:   broker,
		hub:      NewHub(),
	}
}

func (s *Server) GetHub() *Hub {
	return s.hub
}
