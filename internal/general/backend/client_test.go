package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courier-driver/internal/domain/delivery"
	"courier-driver/internal/general/contracts"
	"courier-driver/internal/general/logger"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{BaseURL: srv.URL + "/api/", Timeout: 5 * time.Second}, logger.Nop())
	require.NoError(t, err)
	c.SetTokenSource(TokenFunc(func() string { return "h.p.s" }))
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestLoginSendsCredentialsWithoutBearer(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/auth/login", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		var req contracts.LoginRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "a@b.c", req.Email)

		writeJSON(w, http.StatusOK, map[string]any{
			"token": "x.y.z",
			"user":  map[string]any{"id": "u1", "role": "livreur", "email": "a@b.c"},
		})
	})

	res, err := c.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	assert.Equal(t, "x.y.z", res.Token)
	assert.Equal(t, "u1", res.User.ID)
}

func TestLoginUnauthorizedDoesNotFireHook(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Invalid credentials"})
	})
	var fired atomic.Bool
	c.OnUnauthorized(func(context.Context) { fired.Store(true) })

	_, err := c.Login(context.Background(), "a@b.c", "bad")
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, "Invalid credentials", err.Error())
	assert.False(t, fired.Load())
}

func TestAuthenticatedUnauthorizedFiresHook(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer h.p.s", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "jwt expired"})
	})
	var fired atomic.Int32
	c.OnUnauthorized(func(context.Context) { fired.Add(1) })

	_, err := c.GetStats(context.Background())
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.EqualValues(t, 1, fired.Load())
}

func TestUpdateStatusCarriesProofAndServerMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/livreur/update-status/d1", r.URL.Path)

		var req contracts.StatusUpdateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, delivery.StatusPickedUp, req.Status)
		assert.Equal(t, "XY9Z12", req.PickupCode)
		assert.Empty(t, req.DeliveryCode)

		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Code de retrait invalide"})
	})

	_, err := c.UpdateStatus(context.Background(), "d1", contracts.StatusUpdateRequest{
		Status:     delivery.StatusPickedUp,
		PickupCode: "XY9Z12",
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, StatusOf(err))
	assert.Equal(t, "Code de retrait invalide", Message(err, "fallback"))
}

func TestAcceptDeliveryToleratesEmptyBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/livreur/accept-delivery/d1", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})

	d, err := c.AcceptDelivery(context.Background(), "d1")
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestListMyDeliveriesFiltersByStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tms/deliveries/my-deliveries", r.URL.Path)
		assert.Equal(t, "delivered", r.URL.Query().Get("status"))
		writeJSON(w, http.StatusOK, map[string]any{
			"success":    true,
			"deliveries": []map[string]any{{"_id": "d1", "status": "delivered"}},
		})
	})

	list, err := c.ListMyDeliveries(context.Background(), delivery.StatusDelivered)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, delivery.StatusDelivered, list[0].Status)
}

func TestGetStats(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{
			"today": map[string]any{"deliveries": 4, "earnings": 52.5, "rating": 4.8, "distance": 31.2},
			"total": map[string]any{"deliveries": 120, "earnings": 1800},
		}})
	})

	stats, err := c.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Today.Deliveries)
	assert.InDelta(t, 31.2, stats.Today.Distance, 1e-9)
	assert.Equal(t, 120, stats.Total.Deliveries)
}

func TestTransportFailureIsTyped(t *testing.T) {
	c, err := NewClient(Config{BaseURL: "http://127.0.0.1:1/api", Timeout: time.Second}, logger.Nop())
	require.NoError(t, err)

	_, err = c.ListAvailable(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransport))
	assert.Zero(t, StatusOf(err))
}

func TestWaybillURL(t *testing.T) {
	c, err := NewClient(Config{BaseURL: "https://tms.example.com/api"}, logger.Nop())
	require.NoError(t, err)

	_, err = c.WaybillURL("d1")
	assert.Error(t, err)

	c.SetTokenSource(TokenFunc(func() string { return "a.b.c" }))
	u, err := c.WaybillURL("d1")
	require.NoError(t, err)
	assert.Equal(t, "https://tms.example.com/api/tms/delivery/d1/waybill?token=a.b.c", u)
}
