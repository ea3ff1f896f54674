package confirm

import (
	"courier-driver/internal/domain/delivery"
	"courier-driver/internal/general/contracts"
)

// Proof is a successful gate outcome. Only the gate can mint one, so holding a
// valid Proof means a handoff was confirmed for that delivery and stage.
type Proof struct {
	deliveryID string
	stage      delivery.Stage
	method     Method
	value      string
}

func (p Proof) DeliveryID() string    { return p.deliveryID }
func (p Proof) Stage() delivery.Stage { return p.stage }
func (p Proof) Method() Method        { return p.method }
func (p Proof) Valid() bool           { return p.deliveryID != "" && p.method != "" && p.value != "" }
func (p Proof) Matches(id string, stage delivery.Stage) bool {
	return p.Valid() && p.deliveryID == id && p.stage == stage
}

// Attach writes the proof into the status-update request field for its stage
// and method.
func (p Proof) Attach(req *contracts.StatusUpdateRequest) {
	switch {
	case p.stage == delivery.StagePickup && p.method == MethodCode:
		req.PickupCode = p.value
	case p.stage == delivery.StagePickup && p.method == MethodSignature:
		req.PickupSignature = p.value
	case p.stage == delivery.StageDelivery && p.method == MethodCode:
		req.DeliveryCode = p.value
	case p.stage == delivery.StageDelivery && p.method == MethodSignature:
		req.DeliverySignature = p.value
	}
}
