package ws

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"plugmon/internal/hub"
	"plugmon/internal/metrics"
)

const defaultWriteTimeout = 10 * time.Second

// Server upgrades HTTP connections to live telemetry subscriptions.
type Server struct {
	hub      *hub.Hub
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewServer builds ws server.
func NewServer(h *hub.Hub, logger *zap.Logger) *Server {
	return &Server{
		hub:    h,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleWS is the HTTP handler for the /ws endpoint.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	sub := hub.NewSubscriber(conn, defaultWriteTimeout, s.logger, func(id int64) {
		s.hub.Remove(id)
		metrics.ConnectedSubscribers.Set(float64(s.hub.Count()))
	})
	s.hub.Add(sub)
	metrics.ConnectedSubscribers.Set(float64(s.hub.Count()))

	go sub.Start()
	s.logger.Info("subscriber connected", zap.String("remote", r.RemoteAddr))
}
