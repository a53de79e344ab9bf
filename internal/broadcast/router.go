// Package broadcast fans lifecycle events out to groups of subscribers.
package broadcast

import (
	"context"
	"fmt"
	"sync"

	"service-delivery-tracking/internal/apperr"
	"service-delivery-tracking/internal/domain"
	"service-delivery-tracking/internal/logx"
	"service-delivery-tracking/internal/metrics"
)

// Member is a subscriber of one or more groups.
type Member interface {
	ID() string
	// Send enqueues an encoded frame and reports false if the member is gone.
	Send(msg []byte) bool
}

type group struct {
	mu      sync.Mutex
	members map[string]Member
}

// Router keeps ephemeral named groups and delivers every published frame to
// every member of a group in the same order.
type Router struct {
	mu      sync.RWMutex
	groups  map[string]*group
	logger  logx.Logger
	metrics *metrics.Tracking
}

// NewRouter creates an empty Router.
func NewRouter(logger logx.Logger, m *metrics.Tracking) *Router {
	if m == nil {
		m = metrics.NewTracking()
	}
	return &Router{
		groups:  make(map[string]*group),
		logger:  logger,
		metrics: m,
	}
}

// Join adds m to the group, creating the group on first join. Joining twice is a no-op.
func (r *Router) Join(key string, m Member) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.groups[key]
	if !ok {
		g = &group{members: make(map[string]Member)}
		r.groups[key] = g
		r.metrics.Groups.Inc()
	}
	g.mu.Lock()
	g.members[m.ID()] = m
	g.mu.Unlock()
}

// Leave removes m from the group and drops the group once empty. Leaving a group
// the member is not in is a no-op.
func (r *Router) Leave(key string, m Member) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.groups[key]
	if !ok {
		return
	}
	g.mu.Lock()
	delete(g.members, m.ID())
	empty := len(g.members) == 0
	g.mu.Unlock()
	if empty {
		delete(r.groups, key)
		r.metrics.Groups.Dec()
	}
}

// PublishAll implements tracking.Publisher for the local process. The event is
// encoded once for every group.
func (r *Router) PublishAll(_ context.Context, keys []string, ev domain.Event) error {
	msg, err := Encode(ev)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrTransport, err)
	}
	r.PublishRaw(keys, ev.Type, msg)
	return nil
}

// PublishRaw delivers an already encoded frame to the groups and returns the
// number of members reached.
func (r *Router) PublishRaw(keys []string, typ domain.EventType, msg []byte) int {
	r.metrics.Published.WithLabelValues(string(typ)).Inc()

	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, key := range keys {
		n += r.deliver(key, msg)
	}
	return n
}

// deliver requires r.mu held for reading.
func (r *Router) deliver(key string, msg []byte) int {
	g, ok := r.groups[key]
	if !ok {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, m := range g.members {
		if m.Send(msg) {
			n++
			continue
		}
		r.logger.Debug("member gone", logx.String("group", key), logx.String("member", m.ID()))
	}
	return n
}

// Members returns the number of members in the group.
func (r *Router) Members(key string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.groups[key]
	if !ok {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.members)
}

// Groups returns the number of live groups.
func (r *Router) Groups() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.groups)
}
