package realtime_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"service-delivery-tracking/internal/broadcast"
	"service-delivery-tracking/internal/domain"
	"service-delivery-tracking/internal/identity"
	"service-delivery-tracking/internal/logx"
	"service-delivery-tracking/internal/metrics"
	"service-delivery-tracking/internal/realtime"
	"service-delivery-tracking/internal/repository"
	"service-delivery-tracking/internal/service/tracking"
	testlog "service-delivery-tracking/internal/testutil"
)

var (
	customer = domain.Actor{ID: "cust-1", Role: domain.RoleCustomer}
	stranger = domain.Actor{ID: "cust-2", Role: domain.RoleCustomer}
	courierA = domain.Actor{ID: "courier-a", Role: domain.RoleCourier}
	courierB = domain.Actor{ID: "courier-b", Role: domain.RoleCourier}
	staff    = domain.Actor{ID: "ops", Role: domain.RoleStaff}
)

type harness struct {
	t       *testing.T
	repo    *repository.MemoryRepo
	engine  *tracking.Engine
	router  *broadcast.Router
	auth    *identity.JWTAuthenticator
	manager *realtime.Manager
	logs    *testlog.Recorder
	server  *httptest.Server
}

func newHarness(t *testing.T, opts realtime.Options) *harness {
	t.Helper()
	h := &harness{
		t:    t,
		repo: repository.NewMemoryRepo(),
		auth: identity.NewJWTAuthenticator("test-secret"),
		logs: testlog.New(),
	}
	m := metrics.NewTracking()
	h.router = broadcast.NewRouter(logx.Nop(), m)
	h.engine = tracking.NewEngine(h.repo, tracking.Options{PaymentGate: true}, logx.Nop(), m, h.router)
	h.manager = realtime.NewManager(h.engine, h.router, h.auth, opts, h.logs.Logger(), m)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/notifications", h.manager.ServeNotifications)
	mux.HandleFunc("/ws/deliveries/", func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(strings.TrimPrefix(r.URL.Path, "/ws/deliveries/"))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		h.manager.ServeDelivery(w, r, id)
	})
	h.server = httptest.NewServer(mux)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = h.manager.Shutdown(ctx)
		h.server.Close()
	})
	return h
}

func (h *harness) draft(status domain.Status) uuid.UUID {
	h.t.Helper()
	now := time.Now().UTC()
	d := &domain.Delivery{
		ID:            uuid.New(),
		Status:        status,
		CustomerRef:   customer.ID,
		ItemName:      "parcel",
		PaymentMethod: domain.PaymentCard,
		Paid:          true,
		Pickup:        &domain.Place{Address: "A", Point: domain.Point{Lat: 1, Lon: 1}},
		Dropoff:       &domain.Place{Address: "B", Point: domain.Point{Lat: 1.1, Lon: 1.1}},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(h.t, h.repo.Create(context.Background(), d))
	return d.ID
}

func (h *harness) token(a domain.Actor) string {
	h.t.Helper()
	tok, err := h.auth.Issue(a, time.Hour)
	require.NoError(h.t, err)
	return tok
}

func (h *harness) url(path string) string {
	return "ws" + strings.TrimPrefix(h.server.URL, "http") + path
}

func (h *harness) dial(path string, a domain.Actor) *websocket.Conn {
	h.t.Helper()
	header := http.Header{"Authorization": []string{"Bearer " + h.token(a)}}
	conn, resp, err := websocket.DefaultDialer.Dial(h.url(path), header)
	require.NoError(h.t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	h.t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (h *harness) dialStatus(path, token string) int {
	h.t.Helper()
	u := h.url(path)
	if token != "" {
		u += "?token=" + token
	}
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.Error(h.t, err)
	require.NotNil(h.t, resp)
	_ = resp.Body.Close()
	return resp.StatusCode
}

func (h *harness) waitActive(n int) {
	h.t.Helper()
	require.Eventually(h.t, func() bool { return h.manager.Active() == n }, 2*time.Second, 10*time.Millisecond)
}

type frame map[string]any

func read(t *testing.T, c *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := c.ReadMessage()
	require.NoError(t, err)
	var f frame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func send(t *testing.T, c *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, c.WriteJSON(v))
}

func TestManager_LifecycleOverWebSocket(t *testing.T) {
	h := newHarness(t, realtime.Options{})
	id := h.draft(domain.StatusCreating)
	path := "/ws/deliveries/" + id.String()

	cust := h.dial(path, customer)
	snap := read(t, cust)
	require.Equal(t, "status_changed", snap["type"])
	require.Equal(t, "creating", snap["status"])

	send(t, cust, frame{"type": "status_update", "status": "processing"})
	f := read(t, cust)
	require.Equal(t, "status_changed", f["type"])
	require.Equal(t, "processing", f["status"])
	require.Equal(t, id.String(), f["delivery_id"])
	_, err := time.Parse(time.RFC3339Nano, f["timestamp"].(string))
	require.NoError(t, err)

	cour := h.dial(path, courierA)
	require.Equal(t, "processing", read(t, cour)["status"])

	send(t, cour, frame{"type": "status_update", "status": "pickup_in_progress"})
	require.Equal(t, "pickup_in_progress", read(t, cust)["status"])
	require.Equal(t, "pickup_in_progress", read(t, cour)["status"])

	send(t, cour, frame{"type": "location_update", "latitude": 1.05, "longitude": 1.06, "seq": 1})
	loc := read(t, cust)
	require.Equal(t, "location_changed", loc["type"])
	require.Equal(t, 1.05, loc["latitude"])
	require.Equal(t, 1.06, loc["longitude"])
	require.Equal(t, "location_changed", read(t, cour)["type"])

	h.waitActive(2)
	require.Len(t, h.logs.Find("ws connected"), 2)
}

func TestManager_ErrorsKeepSessionOpen(t *testing.T) {
	h := newHarness(t, realtime.Options{})
	id := h.draft(domain.StatusProcessing)
	cust := h.dial("/ws/deliveries/"+id.String(), customer)
	read(t, cust)

	require.NoError(t, cust.WriteMessage(websocket.TextMessage, []byte("{not json")))
	f := read(t, cust)
	require.Equal(t, "error", f["type"])
	require.Equal(t, "malformed_message", f["code"])

	send(t, cust, frame{"type": "teleport"})
	require.Equal(t, "malformed_message", read(t, cust)["code"])

	send(t, cust, frame{"type": "status_update", "status": "flying"})
	require.Equal(t, "malformed_message", read(t, cust)["code"])

	send(t, cust, frame{"type": "status_update", "status": "delivered"})
	require.Equal(t, "invalid_transition", read(t, cust)["code"])

	send(t, cust, frame{"type": "status_update", "status": "pickup_in_progress"})
	require.Equal(t, "forbidden", read(t, cust)["code"])

	send(t, cust, frame{"type": "status_update", "status": "processing", "delivery_id": uuid.NewString()})
	require.Equal(t, "malformed_message", read(t, cust)["code"])

	send(t, cust, frame{"type": "status_update", "status": "canceled", "note": "no longer needed"})
	require.Equal(t, "canceled", read(t, cust)["status"])

	require.Len(t, h.logs.Find("malformed message"), 4)
}

func TestManager_ClaimRaceOverWebSocket(t *testing.T) {
	h := newHarness(t, realtime.Options{})
	id := h.draft(domain.StatusProcessing)
	path := "/ws/deliveries/" + id.String()

	a := h.dial(path, courierA)
	read(t, a)
	b := h.dial(path, courierB)
	read(t, b)

	send(t, a, frame{"type": "status_update", "status": "pickup_in_progress"})
	require.Equal(t, "pickup_in_progress", read(t, a)["status"])
	require.Equal(t, "pickup_in_progress", read(t, b)["status"])

	send(t, b, frame{"type": "status_update", "status": "pickup_in_progress"})
	require.Equal(t, "already_claimed", read(t, b)["code"])
}

// racingEngine lets a courier claim the delivery right after the first
// snapshot is read, before the session has joined its group.
type racingEngine struct {
	*tracking.Engine
	t     *testing.T
	calls atomic.Int32
}

func (e *racingEngine) Snapshot(ctx context.Context, id uuid.UUID) (domain.Delivery, error) {
	d, err := e.Engine.Snapshot(ctx, id)
	if e.calls.Add(1) == 1 {
		_, claimErr := e.Engine.RequestTransition(ctx, id, courierA, domain.StatusPickupInProgress, "")
		require.NoError(e.t, claimErr)
	}
	return d, err
}

func TestManager_TransitionDuringOpenIsNotLost(t *testing.T) {
	h := newHarness(t, realtime.Options{})
	id := h.draft(domain.StatusProcessing)

	racing := &racingEngine{Engine: h.engine, t: t}
	m := realtime.NewManager(racing, h.router, h.auth, realtime.Options{}, logx.Nop(), metrics.NewTracking())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.ServeDelivery(w, r, id)
	}))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = m.Shutdown(ctx)
		srv.Close()
	})

	header := http.Header{"Authorization": []string{"Bearer " + h.token(customer)}}
	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), header)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })

	f := read(t, conn)
	require.Equal(t, "status_changed", f["type"])
	require.Equal(t, "pickup_in_progress", f["status"])
	require.GreaterOrEqual(t, racing.calls.Load(), int32(2))
}

func TestManager_NotificationsRequireDeliveryID(t *testing.T) {
	h := newHarness(t, realtime.Options{})
	first := h.draft(domain.StatusCreating)

	n := h.dial("/ws/notifications", customer)
	send(t, n, frame{"type": "status_update", "status": "processing"})
	require.Equal(t, "malformed_message", read(t, n)["code"])

	send(t, n, frame{"type": "status_update", "status": "processing", "delivery_id": first.String()})
	f := read(t, n)
	require.Equal(t, "status_changed", f["type"])
	require.Equal(t, first.String(), f["delivery_id"])

	courier := h.dial("/ws/notifications", courierA)
	send(t, courier, frame{"type": "status_update", "status": "pickup_in_progress", "delivery_id": first.String()})
	require.Equal(t, "pickup_in_progress", read(t, courier)["status"])
	require.Equal(t, "pickup_in_progress", read(t, n)["status"])
}

func TestManager_RefusesBeforeUpgrade(t *testing.T) {
	h := newHarness(t, realtime.Options{})
	id := h.draft(domain.StatusCreating)
	path := "/ws/deliveries/" + id.String()

	require.Equal(t, http.StatusUnauthorized, h.dialStatus(path, ""))
	require.Equal(t, http.StatusUnauthorized, h.dialStatus(path, "garbage"))
	require.Equal(t, http.StatusForbidden, h.dialStatus(path, h.token(stranger)))
	require.Equal(t, http.StatusForbidden, h.dialStatus(path, h.token(courierA)), "drafts are not in the pool")
	require.Equal(t, http.StatusNotFound, h.dialStatus("/ws/deliveries/"+uuid.NewString(), h.token(staff)))
	require.Equal(t, http.StatusForbidden, h.dialStatus("/ws/notifications", h.token(staff)))
	require.Zero(t, h.manager.Active())
}

func TestManager_IdleConnectionIsClosed(t *testing.T) {
	h := newHarness(t, realtime.Options{IdleTimeout: 300 * time.Millisecond, PingInterval: time.Hour})
	id := h.draft(domain.StatusProcessing)
	h.dial("/ws/deliveries/"+id.String(), customer)
	h.waitActive(1)

	h.waitActive(0)
	require.Eventually(t, func() bool {
		for _, e := range h.logs.Find("ws disconnected") {
			if v, _ := e.Field("reason"); v == "idle timeout" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	require.Zero(t, h.router.Groups(), "groups are left on disconnect")
}

func TestManager_PingsKeepReadingClientAlive(t *testing.T) {
	h := newHarness(t, realtime.Options{IdleTimeout: 300 * time.Millisecond, PingInterval: 50 * time.Millisecond})
	id := h.draft(domain.StatusProcessing)
	c := h.dial("/ws/deliveries/"+id.String(), customer)
	read(t, c)

	// reading lets the client answer pings with pongs
	go func() {
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()
	time.Sleep(time.Second)
	require.Equal(t, 1, h.manager.Active())
}

func TestManager_ShutdownClosesSessions(t *testing.T) {
	h := newHarness(t, realtime.Options{})
	id := h.draft(domain.StatusProcessing)
	c := h.dial("/ws/deliveries/"+id.String(), customer)
	read(t, c)
	h.waitActive(1)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.manager.Shutdown(ctx))
	require.Zero(t, h.manager.Active())

	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := c.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)

	require.Equal(t, http.StatusServiceUnavailable, h.dialStatus("/ws/deliveries/"+id.String(), h.token(customer)))
}
