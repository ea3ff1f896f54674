package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courier-driver/internal/domain/user"
	"courier-driver/internal/general/contracts"
	"courier-driver/internal/general/jwt"
	"courier-driver/internal/general/rabbitmq"
)

func TestParseRoute(t *testing.T) {
	points, err := ParseRoute(" 48.8566,2.3522 ; 48.86, 2.34")
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.InDelta(t, 48.8566, points[0].Lat, 1e-9)
	assert.InDelta(t, 2.34, points[1].Lng, 1e-9)

	points, err = ParseRoute("")
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestParseRouteRejectsBadPoints(t *testing.T) {
	for _, raw := range []string{"48.85", "abc,2.3", "48.85,xyz", "95,2.3", "48.85,2.3;"} {
		_, err := ParseRoute(raw)
		assert.Error(t, err, raw)
	}
}

func TestGenerateUserToken(t *testing.T) {
	token, claims, err := GenerateUserToken("dev-secret", "drv-42", " LIVREUR ", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "drv-42", claims.Subject)
	assert.Equal(t, user.RoleLivreur, claims.Role)

	_, parsed, err := jwt.NewManager("dev-secret", time.Hour).ParseAndValidate(token)
	require.NoError(t, err)
	assert.Equal(t, "drv-42", parsed.Subject)

	_, _, err = GenerateUserToken("dev-secret", "drv-42", "passenger", time.Hour)
	assert.ErrorIs(t, err, user.ErrInvalidRole)
}

func TestTokenCommandPrintsClaims(t *testing.T) {
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"token", "--user-id=drv-7", "--secret=s3cret"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "TOKEN:")
	assert.Contains(t, out.String(), "sub:  drv-7")
	assert.Contains(t, out.String(), "role: driver")
}

func TestPrintJournalEntry(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	var out bytes.Buffer
	require.NoError(t, PrintJournalEntry(&out, rabbitmq.JournalEntry{
		RoutingKey: "delivery.status.picked_up",
		Delivery: &contracts.DeliveryStatusMessage{
			DeliveryID: "d1", DriverID: "drv-1", Status: "picked_up", ProofType: "code", Timestamp: at,
		},
	}))
	line := out.String()
	assert.Contains(t, line, "09:30:00")
	assert.Contains(t, line, "driver=drv-1 status=picked_up")
	assert.Contains(t, line, "delivery=d1")
	assert.Contains(t, line, "proof=code")

	out.Reset()
	require.NoError(t, PrintJournalEntry(&out, rabbitmq.JournalEntry{
		RoutingKey: "driver.status.drv-1",
		Presence:   &contracts.DriverStatusMessage{DriverID: "drv-1", Status: "OFFLINE", Timestamp: at},
	}))
	assert.Contains(t, out.String(), "driver=drv-1 status=OFFLINE")
	assert.NotContains(t, out.String(), "delivery=")

	assert.Error(t, PrintJournalEntry(&out, rabbitmq.JournalEntry{RoutingKey: "x"}))
}
