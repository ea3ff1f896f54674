package confirm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courier-driver/internal/domain/delivery"
	"courier-driver/internal/general/contracts"
	"courier-driver/internal/general/logger"
)

func pickupDelivery() *delivery.Delivery {
	return &delivery.Delivery{ID: "d1", Status: delivery.StatusAssigned, PickupCode: "ABC123", DeliveryCode: "ZZ9"}
}

func TestCodeIsCaseInsensitiveAndTrimmed(t *testing.T) {
	for _, input := range []string{"abc123", " ABC123 ", "ABC123", "\tAbC123\n"} {
		gate := NewGate(logger.Nop())
		s, err := gate.Open(context.Background(), pickupDelivery(), delivery.StagePickup)
		require.NoError(t, err)

		proof, err := s.Submit(context.Background(), CodeAttempt{Value: input})
		require.NoError(t, err, "input %q", input)
		assert.True(t, proof.Matches("d1", delivery.StagePickup))
		assert.Equal(t, MethodCode, proof.Method())
		assert.False(t, gate.Busy())
	}
}

func TestMismatchKeepsGateOpen(t *testing.T) {
	gate := NewGate(logger.Nop())
	s, err := gate.Open(context.Background(), pickupDelivery(), delivery.StagePickup)
	require.NoError(t, err)

	_, err = s.Submit(context.Background(), CodeAttempt{Value: "ABC124"})
	assert.ErrorIs(t, err, ErrIncorrectCode)
	assert.True(t, gate.Busy())

	_, err = s.Submit(context.Background(), CodeAttempt{Value: "  "})
	assert.ErrorIs(t, err, ErrEmptyCode)
	assert.True(t, gate.Busy())

	for range 20 {
		_, err = s.Submit(context.Background(), CodeAttempt{Value: "nope"})
		assert.ErrorIs(t, err, ErrIncorrectCode)
	}

	proof, err := s.Submit(context.Background(), CodeAttempt{Value: "abc123"})
	require.NoError(t, err)
	assert.True(t, proof.Valid())

	_, err = s.Submit(context.Background(), CodeAttempt{Value: "abc123"})
	assert.ErrorIs(t, err, ErrGateClosed)
}

func TestSecondOpenIsRejectedWhilePending(t *testing.T) {
	gate := NewGate(logger.Nop())
	s, err := gate.Open(context.Background(), pickupDelivery(), delivery.StagePickup)
	require.NoError(t, err)

	_, err = gate.Open(context.Background(), pickupDelivery(), delivery.StageDelivery)
	assert.ErrorIs(t, err, ErrGateBusy)

	s.Cancel()
	s.Cancel()
	assert.False(t, gate.Busy())

	_, err = gate.Open(context.Background(), pickupDelivery(), delivery.StageDelivery)
	assert.NoError(t, err)
}

func TestReopenStartsFresh(t *testing.T) {
	gate := NewGate(logger.Nop())
	d := pickupDelivery()

	s, err := gate.Open(context.Background(), d, delivery.StagePickup)
	require.NoError(t, err)
	_, err = s.Submit(context.Background(), CodeAttempt{Value: "bad"})
	require.ErrorIs(t, err, ErrIncorrectCode)
	s.Cancel()

	_, err = s.Submit(context.Background(), CodeAttempt{Value: "ABC123"})
	assert.ErrorIs(t, err, ErrGateClosed)

	s2, err := gate.Open(context.Background(), d, delivery.StagePickup)
	require.NoError(t, err)
	_, err = s2.Submit(context.Background(), CodeAttempt{Value: "ABC123"})
	assert.NoError(t, err)
}

func TestSignatureAcceptsAnyNonEmptyPayload(t *testing.T) {
	gate := NewGate(logger.Nop())
	d := &delivery.Delivery{ID: "d1", Status: delivery.StatusInTransit}

	s, err := gate.Open(context.Background(), d, delivery.StageDelivery)
	require.NoError(t, err)

	_, err = s.Submit(context.Background(), SignatureAttempt{})
	assert.ErrorIs(t, err, ErrEmptySignature)

	proof, err := s.Submit(context.Background(), SignatureAttempt{Payload: "data:image/png;base64,iVBORw0"})
	require.NoError(t, err)
	assert.Equal(t, MethodSignature, proof.Method())

	var req contracts.StatusUpdateRequest
	proof.Attach(&req)
	assert.Equal(t, "data:image/png;base64,iVBORw0", req.DeliverySignature)
	assert.Empty(t, req.DeliveryCode)
	assert.Empty(t, req.PickupSignature)
}

func TestCodeWithoutExpectedValue(t *testing.T) {
	gate := NewGate(logger.Nop())
	d := &delivery.Delivery{ID: "d1", Status: delivery.StatusInTransit}

	s, err := gate.Open(context.Background(), d, delivery.StageDelivery)
	require.NoError(t, err)
	_, err = s.Submit(context.Background(), CodeAttempt{Value: "ANY"})
	assert.ErrorIs(t, err, delivery.ErrNoExpectedCode)
	assert.True(t, gate.Busy())
}

func TestAttachUsesNormalizedCode(t *testing.T) {
	gate := NewGate(logger.Nop())
	s, err := gate.Open(context.Background(), pickupDelivery(), delivery.StagePickup)
	require.NoError(t, err)
	proof, err := s.Submit(context.Background(), CodeAttempt{Value: " abc123"})
	require.NoError(t, err)

	req := contracts.StatusUpdateRequest{Status: delivery.StatusPickedUp}
	proof.Attach(&req)
	assert.Equal(t, "ABC123", req.PickupCode)
	assert.Empty(t, req.PickupSignature)
}

func TestZeroProofIsInvalid(t *testing.T) {
	var p Proof
	assert.False(t, p.Valid())
	assert.False(t, p.Matches("d1", delivery.StagePickup))
}

func TestResetDiscardsOpenConfirmation(t *testing.T) {
	gate := NewGate(logger.Nop())
	ctx := context.Background()
	gate.Reset(ctx)

	s, err := gate.Open(ctx, pickupDelivery(), delivery.StagePickup)
	require.NoError(t, err)

	gate.Reset(ctx)
	assert.False(t, gate.Busy())

	_, err = s.Submit(ctx, CodeAttempt{Value: "ABC123"})
	assert.ErrorIs(t, err, ErrGateClosed)

	next, err := gate.Open(ctx, pickupDelivery(), delivery.StageDelivery)
	require.NoError(t, err)
	s.Cancel()
	assert.True(t, gate.Busy())
	next.Cancel()
	assert.False(t, gate.Busy())
}
