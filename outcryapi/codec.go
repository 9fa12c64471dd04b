package outcryapi

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// RecordVersion is the layout version written by this package.
const RecordVersion uint8 = 1

const (
	discriminatorLen = 8
	headerLen        = discriminatorLen + 1
)

// Allocated data capacity per record kind.
const (
	AuctionStateSpace     = 320
	AuctionVaultSpace     = 64
	BidderDepositSpace    = 128
	SessionTokenSpace     = 160
	DelegationRecordSpace = 128
	MintSpace             = 96
	TokenAccountSpace     = 128
)

// ErrInvalidAccountData is returned when a blob cannot be decoded as the
// requested record.
var ErrInvalidAccountData = errors.New("invalid account data")

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("cbor encoder: %v", err))
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("cbor decoder: %v", err))
	}
}

// Record is implemented by every persisted record type.
type Record interface {
	RecordName() string
}

func (AuctionState) RecordName() string     { return "AuctionState" }
func (AuctionVault) RecordName() string     { return "AuctionVault" }
func (BidderDeposit) RecordName() string    { return "BidderDeposit" }
func (SessionToken) RecordName() string     { return "SessionToken" }
func (DelegationRecord) RecordName() string { return "DelegationRecord" }
func (Mint) RecordName() string             { return "Mint" }
func (TokenAccount) RecordName() string     { return "TokenAccount" }

// Discriminator is the 8-byte type tag that prefixes a record's blob.
func Discriminator(r Record) [8]byte {
	sum := sha256.Sum256([]byte("account:" + r.RecordName()))
	var d [8]byte
	copy(d[:], sum[:discriminatorLen])
	return d
}

// Encode serializes r as discriminator || version || CBOR(r).
func Encode(r Record) ([]byte, error) {
	body, err := encMode.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", r.RecordName(), err)
	}
	d := Discriminator(r)
	out := make([]byte, 0, headerLen+len(body))
	out = append(out, d[:]...)
	out = append(out, RecordVersion)
	return append(out, body...), nil
}

// Decode parses data into out, which must be a pointer to a record type. It
// fails if the blob is truncated, tagged for another record kind, or written
// with an unknown layout version.
func Decode(data []byte, out Record) error {
	if len(data) < headerLen {
		return fmt.Errorf("%s: blob too short (%d bytes): %w", out.RecordName(), len(data), ErrInvalidAccountData)
	}
	d := Discriminator(out)
	if !bytes.Equal(data[:discriminatorLen], d[:]) {
		return fmt.Errorf("%s: discriminator mismatch: %w", out.RecordName(), ErrInvalidAccountData)
	}
	if v := data[discriminatorLen]; v != RecordVersion {
		return fmt.Errorf("%s: unsupported version %d: %w", out.RecordName(), v, ErrInvalidAccountData)
	}
	if err := decMode.Unmarshal(data[headerLen:], out); err != nil {
		return fmt.Errorf("%s: %v: %w", out.RecordName(), err, ErrInvalidAccountData)
	}
	return nil
}

// IsRecord reports whether data carries r's discriminator.
func IsRecord(data []byte, r Record) bool {
	d := Discriminator(r)
	return len(data) >= headerLen && bytes.Equal(data[:discriminatorLen], d[:])
}
