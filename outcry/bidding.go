package outcry

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/cloudx-io/outcry/core"
	"github.com/cloudx-io/outcry/ledger"
	"github.com/cloudx-io/outcry/outcryapi"
)

// BidderResolver yields the effective bidder identity for a bid transaction.
type BidderResolver interface {
	ResolveBidder(tx *ledger.Txn, auction ledger.Address) (ledger.Address, error)
}

// DirectSigner resolves to the transaction's own signer.
type DirectSigner struct {
	Bidder ledger.Address
}

func (d DirectSigner) ResolveBidder(tx *ledger.Txn, _ ledger.Address) (ledger.Address, error) {
	if err := requireSigner(tx, d.Bidder); err != nil {
		return ledger.Zero, err
	}
	return d.Bidder, nil
}

// SessionDelegation resolves to the real bidder behind a registered session
// token, provided the token's ephemeral signer signed the transaction.
type SessionDelegation struct {
	Bidder ledger.Address
}

func (s SessionDelegation) ResolveBidder(tx *ledger.Txn, auction ledger.Address) (ledger.Address, error) {
	tok, err := loadSession(tx, auction, s.Bidder)
	if err != nil {
		return ledger.Zero, err
	}
	if !tx.IsSigner(tok.SessionSigner) {
		return ledger.Zero, fmt.Errorf("session for %s: %w", s.Bidder, core.ErrSessionSignerMismatch)
	}
	if tok.Auction != auction {
		return ledger.Zero, fmt.Errorf("session for %s bound to %s: %w", s.Bidder, tok.Auction, core.ErrSessionBidderMismatch)
	}
	return tok.Bidder, nil
}

func loadSession(tx *ledger.Txn, auction, bidder ledger.Address) (*outcryapi.SessionToken, error) {
	addr, _ := SessionAddress(auction, bidder)
	acct, ok := tx.Account(addr)
	if !ok {
		return nil, fmt.Errorf("session for %s: %w", bidder, core.ErrSessionNotFound)
	}
	if acct.Owner != ProgramID {
		return nil, fmt.Errorf("session owned by %s: %w", acct.Owner, core.ErrInvalidSessionAccount)
	}
	var tok outcryapi.SessionToken
	if err := outcryapi.Decode(acct.Data, &tok); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidSessionAccount, err)
	}
	return &tok, nil
}

// PlaceBid places a bid signed by the bidder's own key.
func (p *Program) PlaceBid(tx *ledger.Txn, auction, bidder ledger.Address, amount uint64) (outcryapi.BidPlaced, error) {
	return p.PlaceBidAs(tx, auction, DirectSigner{Bidder: bidder}, amount)
}

// PlaceBidSession places a bid on behalf of bidder, authorized by the
// ephemeral signer registered in bidder's session token.
func (p *Program) PlaceBidSession(tx *ledger.Txn, auction, bidder ledger.Address, amount uint64) (outcryapi.BidPlaced, error) {
	return p.PlaceBidAs(tx, auction, SessionDelegation{Bidder: bidder}, amount)
}

// PlaceBidAs runs the bidding rules for whichever identity resolver yields.
func (p *Program) PlaceBidAs(tx *ledger.Txn, auction ledger.Address, resolver BidderResolver, amount uint64) (outcryapi.BidPlaced, error) {
	st, err := loadAuction(tx, auction)
	if err != nil {
		return outcryapi.BidPlaced{}, err
	}
	switch st.Status {
	case outcryapi.StatusActive:
	case outcryapi.StatusCreated:
		return outcryapi.BidPlaced{}, core.ErrAuctionNotStarted
	default:
		return outcryapi.BidPlaced{}, fmt.Errorf("bid while %s: %w", st.Status, core.ErrInvalidAuctionStatus)
	}

	bidder, err := resolver.ResolveBidder(tx, auction)
	if err != nil {
		return outcryapi.BidPlaced{}, err
	}
	if bidder == st.Seller {
		return outcryapi.BidPlaced{}, core.ErrSellerCannotBid
	}

	bs := core.BidStateOf(*st)
	res, err := core.ApplyBid(&bs, amount, tx.Now(), p.cfg.MaxExtension)
	if err != nil {
		log.Debug().
			Str("auction", auction.String()).
			Str("bidder", bidder.String()).
			Uint64("amount", amount).
			Err(err).
			Msg("bid rejected")
		return outcryapi.BidPlaced{}, err
	}
	bs.Apply(st)
	st.HighestBidder = bidder
	if err := storeAuction(tx, auction, st); err != nil {
		return outcryapi.BidPlaced{}, err
	}

	ev := outcryapi.BidPlaced{
		Auction:     auction,
		Bidder:      bidder,
		Amount:      amount,
		PreviousBid: res.PreviousBid,
		BidCount:    st.BidCount,
		NewEndTime:  st.EndTime,
	}
	tx.Emit(outcryapi.EventBidPlaced, ev)
	log.Info().
		Str("auction", auction.String()).
		Str("bidder", bidder.String()).
		Str("tier", tx.Tier()).
		Uint64("amount", amount).
		Bool("extended", res.Extended).
		Msg("bid placed")
	return ev, nil
}

// CreateSession registers sessionSigner as an ephemeral key allowed to bid
// for bidder on auction. Sessions are written only on the durable tier.
func (p *Program) CreateSession(tx *ledger.Txn, auction, bidder, sessionSigner ledger.Address) (ledger.Address, error) {
	if err := requireSigner(tx, bidder); err != nil {
		return ledger.Zero, err
	}
	if sessionSigner.IsZero() || sessionSigner == bidder {
		return ledger.Zero, fmt.Errorf("session signer %s: %w", sessionSigner, core.ErrSessionSignerMismatch)
	}

	st, err := loadAuction(tx, auction)
	switch {
	case err == nil:
		if st.Seller == bidder {
			return ledger.Zero, core.ErrSellerCannotBid
		}
		if st.Status != outcryapi.StatusCreated && st.Status != outcryapi.StatusActive {
			return ledger.Zero, fmt.Errorf("session while %s: %w", st.Status, core.ErrInvalidAuctionStatus)
		}
	case isDelegated(err) && tx.Exists(DelegationAddress(auction)):
		// Delegated auctions are Active; seller is checked when the bid resolves.
	default:
		return ledger.Zero, err
	}

	addr, bump := SessionAddress(auction, bidder)
	if tx.Exists(addr) {
		return ledger.Zero, core.ErrSessionExists
	}
	tok := outcryapi.SessionToken{
		Auction:       auction,
		Bidder:        bidder,
		SessionSigner: sessionSigner,
		CreatedAt:     tx.Now(),
		Bump:          bump,
	}
	if err := createRecord(tx, bidder, addr, tok, outcryapi.SessionTokenSpace); err != nil {
		return ledger.Zero, fmt.Errorf("create session: %w", err)
	}

	tx.Emit(outcryapi.EventSessionCreated, outcryapi.SessionCreated{Auction: auction, Bidder: bidder, SessionSigner: sessionSigner})
	log.Info().
		Str("auction", auction.String()).
		Str("bidder", bidder.String()).
		Str("signer", sessionSigner.String()).
		Msg("session created")
	return addr, nil
}
