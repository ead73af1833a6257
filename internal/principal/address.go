package principal

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Size is the length in bytes of every Address.
const Size = 32

const walletDomain = "multisig"

// ErrInvalidAddress is returned when a textual or binary address cannot be decoded.
var ErrInvalidAddress = errors.New("invalid address")

// Address is an opaque fixed-size identity. Owners, creators, destinations and
// wallets are all addressed the same way.
type Address [Size]byte

// Zero is the empty address. It never identifies a principal.
var Zero Address

// New returns a random address.
func New() (Address, error) {
	var a Address
	if _, err := rand.Read(a[:]); err != nil {
		return Zero, fmt.Errorf("generate address: %w", err)
	}
	return a, nil
}

// Parse decodes the hex form produced by String.
func Parse(s string) (Address, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Zero, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return FromBytes(raw)
}

// FromBytes copies raw into an Address.
func FromBytes(raw []byte) (Address, error) {
	if len(raw) != Size {
		return Zero, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidAddress, Size, len(raw))
	}
	var a Address
	copy(a[:], raw)
	return a, nil
}

// DeriveWallet computes the deterministic address of the wallet created by
// creator with the given nonce.
func DeriveWallet(creator Address, nonce uint64) Address {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], nonce)

	buf := make([]byte, 0, len(walletDomain)+Size+len(n))
	buf = append(buf, walletDomain...)
	buf = append(buf, creator[:]...)
	buf = append(buf, n[:]...)
	return Address(blake2b.Sum256(buf))
}

// IsZero reports whether a is the zero address.
func (a Address) IsZero() bool {
	return a == Zero
}

// Bytes returns a copy of the raw address.
func (a Address) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, a[:])
	return out
}

func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
