package hub

import (
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	sendBufferSize = 16
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
)

// Subscriber wraps one live viewer connection.
type Subscriber struct {
	id           int64
	ws           *websocket.Conn
	send         chan []byte
	logger       *zap.Logger
	writeTimeout time.Duration
	onClose      func(id int64)
}

// NewSubscriber builds a subscriber wrapper.
func NewSubscriber(ws *websocket.Conn, writeTimeout time.Duration, logger *zap.Logger, onClose func(int64)) *Subscriber {
	return &Subscriber{
		ws:           ws,
		send:         make(chan []byte, sendBufferSize),
		logger:       logger,
		writeTimeout: writeTimeout,
		onClose:      onClose,
	}
}

// Start launches the write pump and blocks on the read pump until the
// connection closes. Subscribers never send application data; the read pump
// only detects disconnects and answers pings.
func (s *Subscriber) Start() {
	go s.writePump()
	s.readPump()
}

func (s *Subscriber) readPump() {
	defer s.cleanup()
	s.ws.SetReadLimit(512)
	s.ws.SetReadDeadline(time.Now().Add(pongWait))
	s.ws.SetPongHandler(func(string) error {
		s.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := s.ws.ReadMessage(); err != nil {
			s.logger.Debug("subscriber read closed", zap.Int64("subscriber_id", s.id), zap.Error(err))
			return
		}
	}
}

func (s *Subscriber) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-s.send:
			if !ok {
				_ = s.write(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.write(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := s.write(websocket.PingMessage, []byte("ping")); err != nil {
				return
			}
		}
	}
}

// Send enqueues a message without blocking; slow subscribers drop messages and
// closed subscribers are skipped.
func (s *Subscriber) Send(msg []byte) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Debug("attempted to send on closed subscriber", zap.Int64("subscriber_id", s.id))
		}
	}()
	select {
	case s.send <- msg:
	default:
		s.logger.Warn("dropping broadcast, subscriber buffer full", zap.Int64("subscriber_id", s.id))
	}
}

func (s *Subscriber) write(messageType int, data []byte) error {
	s.ws.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	return s.ws.WriteMessage(messageType, data)
}

func (s *Subscriber) cleanup() {
	close(s.send)
	_ = s.ws.Close()
	if s.onClose != nil {
		s.onClose(s.id)
	}
}
