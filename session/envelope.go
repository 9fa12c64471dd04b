package session

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/veraison/go-cose"

	"github.com/cloudx-io/outcry/ledger"
)

// ErrInvalidEnvelope is returned for any envelope that fails to decode or verify.
var ErrInvalidEnvelope = errors.New("invalid bid envelope")

// Bid is the payload a session key signs to place a bid.
type Bid struct {
	Auction ledger.Address `cbor:"1,keyasint"`
	Bidder  ledger.Address `cbor:"2,keyasint"`
	Amount  uint64         `cbor:"3,keyasint"`
	// Nonce distinguishes otherwise identical bids
	Nonce uuid.UUID `cbor:"4,keyasint"`
}

var payloadDecMode cbor.DecMode

func init() {
	var err error
	payloadDecMode, err = cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// SignBid wraps bid in a COSE_Sign1 envelope signed by key.
// The key ID header carries the signer's public key.
func SignBid(key *Key, bid Bid) ([]byte, error) {
	if bid.Nonce == uuid.Nil {
		bid.Nonce = uuid.New()
	}
	payload, err := cbor.Marshal(bid)
	if err != nil {
		return nil, fmt.Errorf("marshal bid payload: %w", err)
	}

	signer, err := cose.NewSigner(cose.AlgorithmEdDSA, key.privateKey)
	if err != nil {
		return nil, fmt.Errorf("create signer: %w", err)
	}

	msg := cose.NewSign1Message()
	msg.Headers.Protected.SetAlgorithm(cose.AlgorithmEdDSA)
	msg.Headers.Protected[cose.HeaderLabelKeyID] = []byte(key.PublicKey)
	msg.Payload = payload

	if err := msg.Sign(rand.Reader, nil, signer); err != nil {
		return nil, fmt.Errorf("sign bid: %w", err)
	}

	envelope, err := msg.MarshalCBOR()
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return envelope, nil
}

// VerifyBid decodes and verifies a COSE_Sign1 bid envelope and returns the
// bid together with the session signer that produced it.
func VerifyBid(envelope []byte) (Bid, ledger.Address, error) {
	var msg cose.Sign1Message
	if err := msg.UnmarshalCBOR(envelope); err != nil {
		return Bid{}, ledger.Zero, fmt.Errorf("parse COSE_Sign1: %w: %w", ErrInvalidEnvelope, err)
	}

	alg, err := msg.Headers.Protected.Algorithm()
	if err != nil {
		return Bid{}, ledger.Zero, fmt.Errorf("read algorithm: %w: %w", ErrInvalidEnvelope, err)
	}
	if alg != cose.AlgorithmEdDSA {
		return Bid{}, ledger.Zero, fmt.Errorf("unsupported algorithm %v: %w", alg, ErrInvalidEnvelope)
	}

	kid, ok := msg.Headers.Protected[cose.HeaderLabelKeyID].([]byte)
	if !ok || len(kid) != ed25519.PublicKeySize {
		return Bid{}, ledger.Zero, fmt.Errorf("invalid key id: %w", ErrInvalidEnvelope)
	}

	verifier, err := cose.NewVerifier(cose.AlgorithmEdDSA, ed25519.PublicKey(kid))
	if err != nil {
		return Bid{}, ledger.Zero, fmt.Errorf("create verifier: %w: %w", ErrInvalidEnvelope, err)
	}
	if err := msg.Verify(nil, verifier); err != nil {
		return Bid{}, ledger.Zero, fmt.Errorf("COSE signature verification failed: %w: %w", ErrInvalidEnvelope, err)
	}

	var bid Bid
	if err := payloadDecMode.Unmarshal(msg.Payload, &bid); err != nil {
		return Bid{}, ledger.Zero, fmt.Errorf("decode bid payload: %w: %w", ErrInvalidEnvelope, err)
	}

	signer, err := ledger.AddressFromBytes(kid)
	if err != nil {
		return Bid{}, ledger.Zero, fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
	}
	return bid, signer, nil
}
