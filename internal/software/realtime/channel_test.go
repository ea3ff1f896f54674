package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courier-driver/internal/domain/geo"
	"courier-driver/internal/domain/user"
	"courier-driver/internal/general/contracts"
	"courier-driver/internal/general/jwt"
	"courier-driver/internal/general/logger"
	"courier-driver/internal/general/websocket"
	"courier-driver/internal/general/websocket/wstest"
	"courier-driver/internal/software/session"
)

const wait = 2 * time.Second

type harness struct {
	mgr *jwt.Manager
	srv *wstest.Server
	ch  *Channel

	mu     sync.Mutex
	states []State
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{mgr: jwt.NewManager("test-secret", time.Hour)}
	h.srv = wstest.NewServer(t, h.mgr, user.DriverRoles...)
	h.ch = NewChannel(Config{URL: h.srv.URL(), DialTimeout: time.Second, WriteTimeout: time.Second}, logger.Nop())
	h.ch.Subscribe(Listener{OnState: func(_ context.Context, s State) {
		h.mu.Lock()
		h.states = append(h.states, s)
		h.mu.Unlock()
	}})
	t.Cleanup(func() { h.ch.Close(context.Background()) })
	return h
}

func (h *harness) session(t *testing.T, id string) *session.Session {
	t.Helper()
	tok, _, err := h.mgr.IssueUserToken(id, user.RoleLivreur)
	require.NoError(t, err)
	return &session.Session{Token: tok, Profile: user.Profile{ID: id, Role: user.RoleLivreur}}
}

func (h *harness) open(t *testing.T) {
	t.Helper()
	h.ch.OnSession(context.Background(), h.session(t, "drv-1"))
	require.Eventually(t, func() bool { return h.ch.State() == StateOpen }, wait, 5*time.Millisecond)
	require.True(t, h.srv.WaitFor(wait, func() bool { return h.srv.Connections() == 1 }))
}

func TestNoTokenMeansNoDial(t *testing.T) {
	h := newHarness(t)
	h.ch.OnSession(context.Background(), &session.Session{Profile: user.Profile{ID: "drv-1"}})

	assert.Equal(t, StateClosed, h.ch.State())
	assert.ErrorIs(t, h.ch.Retry(context.Background()), ErrNoSession)
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, h.srv.Handshakes())
}

func TestSessionOpensChannel(t *testing.T) {
	h := newHarness(t)
	h.open(t)

	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Equal(t, []State{StateConnecting, StateOpen}, h.states)
}

func TestOutboundIsDroppedUnlessOpen(t *testing.T) {
	h := newHarness(t)
	sample := geo.Sample{Point: geo.Point{Lat: 14.69, Lng: -17.44}, CapturedAt: time.Now()}

	assert.False(t, h.ch.AnnouncePresence(context.Background(), true))
	assert.False(t, h.ch.ReportLocation(context.Background(), sample))

	h.open(t)
	assert.True(t, h.ch.AnnouncePresence(context.Background(), true))
	assert.True(t, h.ch.ReportLocation(context.Background(), sample))
	require.True(t, h.srv.WaitFor(wait, func() bool { return len(h.srv.Received()) == 2 }))

	online := h.srv.Events(contracts.EventDriverOnline)
	require.Len(t, online, 1)
	loc := h.srv.Events(contracts.EventLocationUpdate)
	require.Len(t, loc, 1)

	var update contracts.LocationUpdate
	require.NoError(t, json.Unmarshal(loc[0].Frame.Data, &update))
	assert.Equal(t, "drv-1", update.DriverID)
	assert.InDelta(t, 14.69, update.Location.Lat, 1e-9)
}

func TestDisconnectClosesWithoutRetry(t *testing.T) {
	h := newHarness(t)
	h.open(t)

	h.srv.DropAll()
	require.Eventually(t, func() bool { return h.ch.State() == StateClosed }, wait, 5*time.Millisecond)

	sample := geo.Sample{Point: geo.Point{Lat: 1, Lng: 1}, CapturedAt: time.Now()}
	assert.False(t, h.ch.ReportLocation(context.Background(), sample))

	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 1, h.srv.Handshakes(), "no automatic reconnection")
	assert.Equal(t, StateClosed, h.ch.State())
	assert.Empty(t, h.srv.Events(contracts.EventLocationUpdate))

	// the explicit retry path still works
	require.NoError(t, h.ch.Retry(context.Background()))
	require.Eventually(t, func() bool { return h.ch.State() == StateOpen }, wait, 5*time.Millisecond)
	assert.Equal(t, 2, h.srv.Handshakes())
}

func TestLogoutClosesIdempotently(t *testing.T) {
	h := newHarness(t)
	h.open(t)

	h.ch.OnSession(context.Background(), nil)
	assert.Equal(t, StateClosed, h.ch.State())
	h.ch.OnSession(context.Background(), nil)
	h.ch.Close(context.Background())
	assert.Equal(t, StateClosed, h.ch.State())

	assert.ErrorIs(t, h.ch.Retry(context.Background()), ErrNoSession)
	require.True(t, h.srv.WaitFor(wait, func() bool { return h.srv.Connections() == 0 }))

	h.mu.Lock()
	closed := 0
	for _, s := range h.states {
		if s == StateClosed {
			closed++
		}
	}
	h.mu.Unlock()
	assert.Equal(t, 1, closed)
}

func TestInboundEventsAreDispatchedOnce(t *testing.T) {
	h := newHarness(t)

	var (
		mu        sync.Mutex
		news      []contracts.NewDeliveryNotice
		assigned  []string
		cancelled []string
		errs      []string
	)
	h.ch.Subscribe(Listener{
		OnNewDelivery: func(_ context.Context, n contracts.NewDeliveryNotice) {
			mu.Lock()
			news = append(news, n)
			mu.Unlock()
		},
		OnDeliveryAssigned: func(_ context.Context, n contracts.DeliveryNotice) {
			mu.Lock()
			assigned = append(assigned, n.ID())
			mu.Unlock()
		},
		OnDeliveryCancelled: func(_ context.Context, n contracts.DeliveryNotice) {
			mu.Lock()
			cancelled = append(cancelled, n.ID())
			mu.Unlock()
		},
		OnError: func(_ context.Context, n contracts.ErrorNotice) {
			mu.Lock()
			errs = append(errs, n.Message)
			mu.Unlock()
		},
	})
	h.open(t)

	h.srv.Push(contracts.EventNewDelivery, map[string]any{
		"_id": "d1", "status": "pending", "distance": 2.4,
		"pickupAddress": map[string]any{"street": "1 rue A", "city": "Dakar"},
	})
	h.srv.Push(contracts.EventDeliveryAssigned, map[string]any{"deliveryId": "d2"})
	h.srv.Push(contracts.EventDeliveryCancelled, map[string]any{"delivery": map[string]any{"_id": "d3", "status": "cancelled"}})
	h.srv.Push(contracts.EventError, map[string]any{"message": "rate limited"})
	h.srv.Push("driver-stats", map[string]any{})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(errs) == 1
	}, wait, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, news, 1)
	assert.Equal(t, "d1", news[0].ID)
	require.NotNil(t, news[0].Distance)
	assert.Equal(t, "Dakar", news[0].PickupAddress.City)
	assert.Equal(t, []string{"d2"}, assigned)
	assert.Equal(t, []string{"d3"}, cancelled)
	assert.Equal(t, []string{"rate limited"}, errs)
}

func TestNewSessionReplacesConnection(t *testing.T) {
	h := newHarness(t)
	h.open(t)

	h.ch.OnSession(context.Background(), h.session(t, "drv-2"))
	require.Eventually(t, func() bool { return h.ch.State() == StateOpen }, wait, 5*time.Millisecond)
	require.True(t, h.srv.WaitFor(wait, func() bool { return h.srv.Handshakes() == 2 && h.srv.Connections() == 1 }))

	assert.True(t, h.ch.AnnouncePresence(context.Background(), false))
	require.True(t, h.srv.WaitFor(wait, func() bool { return len(h.srv.Events(contracts.EventDriverOffline)) == 1 }))
	assert.Equal(t, "drv-2", h.srv.Events(contracts.EventDriverOffline)[0].Subject)
}

func TestSameSessionDoesNotRedial(t *testing.T) {
	h := newHarness(t)
	s := h.session(t, "drv-1")
	h.ch.OnSession(context.Background(), s)
	require.Eventually(t, func() bool { return h.ch.State() == StateOpen }, wait, 5*time.Millisecond)

	h.ch.OnSession(context.Background(), s)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, h.srv.Handshakes())
}

type blockingDial struct {
	release chan struct{}
	conn    *fakeConn
}

type fakeConn struct {
	mu     sync.Mutex
	closed bool
}

func (f *fakeConn) Send(string, any) error { return nil }
func (f *fakeConn) ReadLoop(context.Context, func(contracts.Frame)) error {
	return errors.New("unused")
}
func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestLateDialAfterLogoutIsDiscarded(t *testing.T) {
	bd := &blockingDial{release: make(chan struct{}), conn: &fakeConn{}}
	ch := NewChannel(Config{URL: "ws://unused"}, logger.Nop())
	ch.dial = func(ctx context.Context, _ websocket.DialConfig, _ *logger.Logger) (transport, error) {
		<-bd.release
		return bd.conn, nil
	}

	ch.OnSession(context.Background(), &session.Session{Token: "a.b.c", Profile: user.Profile{ID: "drv-1"}})
	assert.Equal(t, StateConnecting, ch.State())

	ch.OnSession(context.Background(), nil)
	assert.Equal(t, StateClosed, ch.State())

	close(bd.release)
	assert.Eventually(t, func() bool {
		bd.conn.mu.Lock()
		defer bd.conn.mu.Unlock()
		return bd.conn.closed
	}, wait, 5*time.Millisecond)
	assert.Equal(t, StateClosed, ch.State())
}
