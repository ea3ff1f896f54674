package jwt

import (
	"encoding/json"
	"errors"
	"slices"
	"strings"

	"courier-driver/internal/domain/user"
)

var (
	ErrBadAuthMsg    = errors.New("invalid auth message")
	ErrBadTokenWrap  = errors.New("token must be 'Bearer <token>'")
	ErrRoleForbidden = errors.New("role not allowed")
)

// ClientAuthMessage is the first frame a client sends over the realtime socket:
// { "type":"auth", "token":"Bearer <jwt>" }
type ClientAuthMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// NewAuthMessage builds the handshake frame for raw.
func NewAuthMessage(raw string) ClientAuthMessage {
	return ClientAuthMessage{Type: "auth", Token: BearerHeader(raw)}
}

type Result struct {
	Claims *Claims
	Raw    string
}

// ValidateWSAuth parses the first auth frame, validates the JWT, and enforces RBAC.
// The realtime test server uses it to mirror the backend handshake.
func ValidateWSAuth(frame []byte, mgr *Manager, allowedRoles ...user.Role) (*Result, error) {
	// parse auth message
	var msg ClientAuthMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		return nil, ErrBadAuthMsg
	}

	// validate message type and token format
	if strings.ToLower(strings.TrimSpace(msg.Type)) != "auth" {
		return nil, ErrBadAuthMsg
	}

	// expect "Bearer <token>" wrapping
	parts := strings.SplitN(msg.Token, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, ErrBadTokenWrap
	}

	// parse and validate token
	raw := strings.TrimSpace(parts[1])
	_, claims, err := mgr.ParseAndValidate(raw)
	if err != nil {
		return nil, err
	}

	// enforce role-based access control (RBAC)
	if len(allowedRoles) > 0 && !slices.Contains(allowedRoles, claims.Role) {
		return nil, ErrRoleForbidden
	}

	return &Result{Claims: claims, Raw: raw}, nil
}
