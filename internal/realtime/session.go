package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"service-delivery-tracking/internal/apperr"
	"service-delivery-tracking/internal/broadcast"
	"service-delivery-tracking/internal/domain"
	"service-delivery-tracking/internal/logx"
)

// State is the lifecycle state of a session.
type State int32

// Session states. A session only moves forward.
const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "closed"
	}
}

// Session is one authenticated WebSocket connection. It owns a read loop
// (the serving goroutine) and a write loop draining its outbound queue.
type Session struct {
	id       string
	actor    domain.Actor
	delivery uuid.UUID
	groups   []string

	conn    *websocket.Conn
	queue   *broadcast.Queue
	limiter *rate.Limiter
	opts    Options
	engine  Engine
	logger  logx.Logger

	state      atomic.Int32
	done       chan struct{}
	writerDone chan struct{}
	closeOnce  sync.Once
}

// ID implements broadcast.Member.
func (s *Session) ID() string { return s.id }

// Send implements broadcast.Member.
func (s *Session) Send(msg []byte) bool {
	if s.State() == StateClosed {
		return false
	}
	return s.queue.Push(msg)
}

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// Actor returns the authenticated actor behind the session.
func (s *Session) Actor() domain.Actor { return s.actor }

// Close ends the session; the write loop sends a close frame and drops the connection.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosed))
		s.queue.Close()
		close(s.done)
	})
}

// readLoop processes inbound messages until the connection fails or idles out,
// and returns the reason.
func (s *Session) readLoop(ctx context.Context) error {
	s.conn.SetReadLimit(s.opts.MaxMessageBytes)
	s.extendDeadline()
	s.conn.SetPongHandler(func(string) error {
		s.extendDeadline()
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return err
		}
		s.extendDeadline()
		if err := s.handle(ctx, data); err != nil {
			s.reject(err)
		}
	}
}

func (s *Session) extendDeadline() {
	_ = s.conn.SetReadDeadline(time.Now().Add(s.opts.IdleTimeout))
}

// handle dispatches one inbound message. Engine calls run on ctx, which is
// detached from the connection so accepted work completes if the client leaves.
func (s *Session) handle(ctx context.Context, data []byte) error {
	var in inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return malformed("invalid json")
	}

	id, err := s.target(in.DeliveryID)
	if err != nil {
		return err
	}

	switch in.Type {
	case msgStatusUpdate:
		status, ok := domain.ParseStatus(in.Status)
		if !ok {
			return malformed("unknown status")
		}
		_, err := s.engine.RequestTransition(ctx, id, s.actor, status, in.Note)
		return err

	case msgLocationUpdate:
		if in.Latitude == nil || in.Longitude == nil {
			return malformed("latitude and longitude are required")
		}
		if !s.limiter.Allow() {
			s.logger.Debug("location update throttled", logx.String("delivery_id", id.String()))
			return nil
		}
		_, err := s.engine.RecordLocation(ctx, id, s.actor, *in.Latitude, *in.Longitude, in.Seq)
		return err

	default:
		return malformed("unknown message type")
	}
}

// target resolves the delivery an inbound message refers to.
func (s *Session) target(raw string) (uuid.UUID, error) {
	if raw == "" {
		if s.delivery == uuid.Nil {
			return uuid.Nil, malformed("delivery_id is required")
		}
		return s.delivery, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, malformed("invalid delivery_id")
	}
	if s.delivery != uuid.Nil && id != s.delivery {
		return uuid.Nil, malformed("delivery_id does not match the connection")
	}
	return id, nil
}

func (s *Session) reject(err error) {
	switch {
	case errors.Is(err, apperr.ErrMalformedMessage):
		s.logger.Warn("malformed message", logx.Err(err))
	case apperr.Code(err) == "internal":
		s.logger.Error("message failed", logx.Err(err))
	default:
		s.logger.Debug("message rejected", logx.Err(err))
	}
	s.queue.Push(encodeError(err))
}

// writeLoop is the only writer on the connection.
func (s *Session) writeLoop() {
	defer close(s.writerDone)
	defer s.conn.Close()

	ping := time.NewTicker(s.opts.PingInterval)
	defer ping.Stop()

	for {
		select {
		case <-s.done:
			s.flush()
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			_ = s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		case <-s.queue.Ready():
			if err := s.flush(); err != nil {
				s.logger.Debug("ws write failed", logx.Err(err))
				s.Close()
				return
			}
		case <-ping.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.logger.Debug("ws ping failed", logx.Err(err))
				s.Close()
				return
			}
		}
	}
}

func (s *Session) flush() error {
	for {
		msg, ok := s.queue.Pop()
		if !ok {
			return nil
		}
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
		if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return err
		}
	}
}
