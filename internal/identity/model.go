package identity

import (
	"errors"
	"time"

	"github.com/congo-pay/multisig/internal/principal"
)

var (
	ErrUserExists     = errors.New("user exists")
	ErrUserNotFound   = errors.New("user not found")
	ErrInvalidPIN     = errors.New("invalid PIN")
	ErrPINTooShort    = errors.New("PIN must be at least 4 digits")
	ErrPhoneRequired  = errors.New("phone is required")
	ErrDeviceRequired = errors.New("device binding required")
	ErrDeviceMismatch = errors.New("device mismatch")
)

// User is a registered principal. Address is the identity it signs with on
// multisig wallets.
type User struct {
	ID           string
	Address      principal.Address
	Phone        string
	Tier         string
	PINHash      []byte
	DeviceID     string
	TokenVersion int
	CreatedAt    time.Time
}

// Credentials request structure.
type Credentials struct {
	Phone    string
	PIN      string
	DeviceID string
}
