// Package realtime serves delivery tracking over WebSocket connections.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"service-delivery-tracking/internal/apperr"
	"service-delivery-tracking/internal/broadcast"
	"service-delivery-tracking/internal/domain"
	"service-delivery-tracking/internal/identity"
	"service-delivery-tracking/internal/logx"
	"service-delivery-tracking/internal/metrics"
)

// Engine is the part of the transition engine sessions drive.
type Engine interface {
	RequestTransition(ctx context.Context, id uuid.UUID, actor domain.Actor, target domain.Status, note string) (domain.Delivery, error)
	RecordLocation(ctx context.Context, id uuid.UUID, actor domain.Actor, lat, lon float64, seq uint64) (bool, error)
	Snapshot(ctx context.Context, id uuid.UUID) (domain.Delivery, error)
}

// Groups is the broadcast membership registry.
type Groups interface {
	Join(key string, m broadcast.Member)
	Leave(key string, m broadcast.Member)
}

// Options tunes sessions.
type Options struct {
	IdleTimeout     time.Duration
	PingInterval    time.Duration
	WriteTimeout    time.Duration
	SendBuffer      int
	MaxMessageBytes int64
	InboundRate     float64
	InboundBurst    int
}

func (o Options) withDefaults() Options {
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = 60 * time.Second
	}
	if o.PingInterval <= 0 || o.PingInterval >= o.IdleTimeout {
		o.PingInterval = o.IdleTimeout * 5 / 12
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = 4096
	}
	if o.InboundRate <= 0 {
		o.InboundRate = 10
	}
	if o.InboundBurst <= 0 {
		o.InboundBurst = 20
	}
	return o
}

// Manager authenticates, upgrades and tracks sessions.
type Manager struct {
	engine   Engine
	groups   Groups
	auth     identity.Authenticator
	opts     Options
	logger   logx.Logger
	metrics  *metrics.Tracking
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
	drained  chan struct{}
}

// NewManager creates a new Manager.
func NewManager(engine Engine, groups Groups, auth identity.Authenticator, opts Options, logger logx.Logger, m *metrics.Tracking) *Manager {
	if m == nil {
		m = metrics.NewTracking()
	}
	return &Manager{
		engine:  engine,
		groups:  groups,
		auth:    auth,
		opts:    opts.withDefaults(),
		logger:  logger,
		metrics: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// clients authenticate with a token, not cookies
			CheckOrigin: func(*http.Request) bool { return true },
		},
		sessions: make(map[string]*Session),
	}
}

// ServeDelivery opens a session scoped to one delivery.
func (m *Manager) ServeDelivery(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	actor, ok := m.authenticate(w, r)
	if !ok {
		return
	}

	// access check only; the frame sent to the client is read after joining
	d, err := m.engine.Snapshot(r.Context(), id)
	if err != nil {
		m.refuse(w, err)
		return
	}
	if !d.VisibleTo(actor) {
		m.refuse(w, apperr.ErrForbidden)
		return
	}

	m.serve(w, r, actor, id, []string{domain.DeliveryGroup(id)})
}

// ServeNotifications opens a session receiving events of every delivery of the actor.
func (m *Manager) ServeNotifications(w http.ResponseWriter, r *http.Request) {
	actor, ok := m.authenticate(w, r)
	if !ok {
		return
	}
	group, ok := domain.ActorGroup(actor)
	if !ok {
		m.refuse(w, apperr.ErrForbidden)
		return
	}
	m.serve(w, r, actor, uuid.Nil, []string{group})
}

func (m *Manager) authenticate(w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	actor, err := m.auth.Authenticate(r.Context(), identity.TokenFromRequest(r))
	if err != nil {
		m.refuse(w, err)
		return domain.Actor{}, false
	}
	return actor, true
}

func (m *Manager) serve(w http.ResponseWriter, r *http.Request, actor domain.Actor, delivery uuid.UUID, groups []string) {
	s := &Session{
		id:         uuid.NewString(),
		actor:      actor,
		delivery:   delivery,
		groups:     groups,
		limiter:    rate.NewLimiter(rate.Limit(m.opts.InboundRate), m.opts.InboundBurst),
		opts:       m.opts,
		engine:     m.engine,
		done:       make(chan struct{}),
		writerDone: make(chan struct{}),
	}
	s.queue = broadcast.NewQueue(m.opts.SendBuffer, m.metrics.Dropped.Inc)
	s.logger = m.logger.With(
		logx.String("session", s.id),
		logx.String("actor", actor.ID),
		logx.String("role", string(actor.Role)),
	)

	if !m.register(s) {
		m.refuse(w, errShuttingDown)
		return
	}

	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.deregister(s)
		s.logger.Warn("ws upgrade failed", logx.Err(err))
		return
	}
	s.conn = conn

	// Join before reading the snapshot: a transition committed in between is
	// then either in the snapshot or queued behind it.
	for _, g := range groups {
		m.groups.Join(g, s)
	}
	if delivery != uuid.Nil {
		d, err := m.engine.Snapshot(r.Context(), delivery)
		if err != nil {
			s.logger.Warn("ws snapshot failed", logx.String("delivery_id", delivery.String()), logx.Err(err))
		} else {
			pushSnapshot(s, &d)
		}
	}
	s.state.Store(int32(StateOpen))
	m.metrics.Connections.Inc()
	s.logger.Info("ws connected",
		logx.String("event", "ws_connected"),
		logx.Any("groups", groups),
	)

	go s.writeLoop()
	reason := s.readLoop(context.WithoutCancel(r.Context()))

	for _, g := range groups {
		m.groups.Leave(g, s)
	}
	s.Close()
	<-s.writerDone
	m.deregister(s)
	m.metrics.Connections.Dec()
	s.logger.Info("ws disconnected",
		logx.String("event", "ws_disconnected"),
		logx.String("reason", closeReason(reason)),
	)
}

// pushSnapshot puts the current state ahead of any event already queued so a
// new subscriber starts consistent.
func pushSnapshot(s *Session, d *domain.Delivery) {
	var msgs [][]byte
	if msg, err := broadcast.Encode(domain.StatusChanged(d, d.UpdatedAt, "")); err == nil {
		msgs = append(msgs, msg)
	}
	if d.CourierPosition != nil && d.Status.Tracking() {
		at := d.UpdatedAt
		if d.PositionAt != nil {
			at = *d.PositionAt
		}
		if msg, err := broadcast.Encode(domain.LocationChanged(d, *d.CourierPosition, at)); err == nil {
			msgs = append(msgs, msg)
		}
	}
	s.queue.PushFront(msgs...)
}

var errShuttingDown = errors.New("shutting down")

func (m *Manager) register(s *Session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.sessions[s.id] = s
	return true
}

func (m *Manager) deregister(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, s.id)
	if m.closed && len(m.sessions) == 0 && m.drained != nil {
		close(m.drained)
		m.drained = nil
	}
}

// Active returns the number of registered sessions.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Shutdown refuses new sessions, closes the open ones and waits for them to
// finish or for ctx to expire.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	if len(m.sessions) == 0 {
		m.mu.Unlock()
		return nil
	}
	drained := make(chan struct{})
	m.drained = drained
	open := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		open = append(open, s)
	}
	m.mu.Unlock()

	for _, s := range open {
		s.Close()
	}

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// refuse answers a request that was not upgraded.
func (m *Manager) refuse(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperr.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, apperr.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, apperr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errShuttingDown):
		status = http.StatusServiceUnavailable
	default:
		m.logger.Error("ws open failed", logx.Err(err))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": http.StatusText(status)})
}

func closeReason(err error) string {
	var ce *websocket.CloseError
	switch {
	case err == nil:
		return "closed"
	case errors.As(err, &ce):
		return "client closed"
	case errors.Is(err, websocket.ErrReadLimit):
		return "message too large"
	default:
		var ne interface{ Timeout() bool }
		if errors.As(err, &ne) && ne.Timeout() {
			return "idle timeout"
		}
		return err.Error()
	}
}
