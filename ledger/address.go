package ledger

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"
)

// AddressLength is the size in bytes of every ledger identity.
const AddressLength = 32

// Address identifies a wallet, a program or a program-owned record.
type Address [AddressLength]byte

// Zero is the "no identity" address.
var Zero Address

// Well-known program identities.
var (
	SystemProgram     = ProgramAddress("system")
	DelegationProgram = ProgramAddress("delegation")
)

// ProgramAddress returns the fixed identity of a named program.
func ProgramAddress(name string) Address {
	return Address(sha256.Sum256([]byte("program:" + name)))
}

// ParseAddress decodes a base58 address.
func ParseAddress(s string) (Address, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return Zero, fmt.Errorf("decode address %q: %w", s, err)
	}
	if len(raw) != AddressLength {
		return Zero, fmt.Errorf("invalid address length: expected %d bytes, got %d", AddressLength, len(raw))
	}
	var a Address
	copy(a[:], raw)
	return a, nil
}

// AddressFromBytes copies b into an Address. b must be exactly 32 bytes.
func AddressFromBytes(b []byte) (Address, error) {
	if len(b) != AddressLength {
		return Zero, fmt.Errorf("invalid address length: expected %d bytes, got %d", AddressLength, len(b))
	}
	var a Address
	copy(a[:], b)
	return a, nil
}

func (a Address) String() string {
	return base58.Encode(a[:])
}

// IsZero reports whether a is the "no identity" address.
func (a Address) IsZero() bool {
	return a == Zero
}

// Bytes returns a copy of the raw address bytes.
func (a Address) Bytes() []byte {
	b := make([]byte, AddressLength)
	copy(b, a[:])
	return b
}

// Less orders addresses bytewise.
func (a Address) Less(b Address) bool {
	return bytes.Compare(a[:], b[:]) < 0
}

// MarshalText renders the address as base58 in JSON and config files.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalBinary lets record codecs store the address as a byte string.
func (a Address) MarshalBinary() ([]byte, error) {
	return a.Bytes(), nil
}

func (a *Address) UnmarshalBinary(data []byte) error {
	parsed, err := AddressFromBytes(data)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
