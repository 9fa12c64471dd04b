package outcry

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/cloudx-io/outcry/core"
	"github.com/cloudx-io/outcry/ledger"
	"github.com/cloudx-io/outcry/outcryapi"
)

// CreateAuctionParams are the seller-chosen terms of an auction.
type CreateAuctionParams struct {
	ReservePrice     uint64
	DurationSeconds  uint64
	ExtensionSeconds uint32
	ExtensionWindow  uint32
	MinBidIncrement  uint64
}

func (p *Program) validateParams(params CreateAuctionParams) error {
	if params.ReservePrice == 0 {
		return core.ErrInvalidReservePrice
	}
	if params.DurationSeconds < p.cfg.MinDuration || params.DurationSeconds > p.cfg.MaxDuration {
		return fmt.Errorf("duration %ds outside [%d, %d]: %w",
			params.DurationSeconds, p.cfg.MinDuration, p.cfg.MaxDuration, core.ErrInvalidDuration)
	}
	if params.MinBidIncrement == 0 {
		return core.ErrInvalidBidIncrement
	}
	return nil
}

// CreateAuction escrows seller's unique asset and initializes the auction
// record and its vault. It returns the auction address.
func (p *Program) CreateAuction(tx *ledger.Txn, seller, mint ledger.Address, params CreateAuctionParams) (ledger.Address, error) {
	if err := requireSigner(tx, seller); err != nil {
		return ledger.Zero, err
	}
	if err := p.validateParams(params); err != nil {
		return ledger.Zero, err
	}

	m, err := loadMint(tx, mint)
	if err != nil {
		return ledger.Zero, err
	}
	if m.Decimals != 0 || m.Supply != 1 {
		return ledger.Zero, fmt.Errorf("mint %s decimals=%d supply=%d: %w", mint, m.Decimals, m.Supply, core.ErrInvalidAsset)
	}
	if held := TokenBalance(tx, seller, mint); held != 1 {
		return ledger.Zero, fmt.Errorf("seller holds %d units: %w", held, core.ErrInvalidAsset)
	}

	auction, bump := AuctionAddress(seller, mint)
	st := &outcryapi.AuctionState{
		Seller:           seller,
		AssetMint:        mint,
		ReservePrice:     params.ReservePrice,
		DurationSeconds:  params.DurationSeconds,
		ExtensionSeconds: params.ExtensionSeconds,
		ExtensionWindow:  params.ExtensionWindow,
		MinBidIncrement:  params.MinBidIncrement,
		Status:           outcryapi.StatusCreated,
		Bump:             bump,
	}
	if err := createRecord(tx, seller, auction, st, outcryapi.AuctionStateSpace); err != nil {
		return ledger.Zero, fmt.Errorf("create auction record: %w", err)
	}

	vault, vaultBump := VaultAddress(auction)
	if err := createRecord(tx, seller, vault, outcryapi.AuctionVault{Auction: auction, Bump: vaultBump}, outcryapi.AuctionVaultSpace); err != nil {
		return ledger.Zero, fmt.Errorf("create vault: %w", err)
	}

	if err := moveAsset(tx, mint, seller, auction, seller, 1); err != nil {
		return ledger.Zero, fmt.Errorf("escrow asset: %w", err)
	}

	tx.Emit(outcryapi.EventAuctionCreated, outcryapi.AuctionCreated{
		Auction:         auction,
		Seller:          seller,
		AssetMint:       mint,
		ReservePrice:    params.ReservePrice,
		DurationSeconds: params.DurationSeconds,
	})
	log.Info().
		Str("auction", auction.String()).
		Str("seller", seller.String()).
		Uint64("reserve", params.ReservePrice).
		Uint64("duration", params.DurationSeconds).
		Msg("auction created")
	return auction, nil
}

// StartAuction moves a Created auction to Active and fixes its end time.
func (p *Program) StartAuction(tx *ledger.Txn, auction, seller ledger.Address) error {
	st, err := p.sellerAuction(tx, auction, seller)
	if err != nil {
		return err
	}
	next, err := core.Transition(st.Status, core.TriggerStart)
	if err != nil {
		return err
	}

	now := tx.Now()
	duration, err := durationSeconds(st.DurationSeconds)
	if err != nil {
		return err
	}
	end, err := core.CheckedAddInt64(now, duration)
	if err != nil {
		return err
	}
	st.Status = next
	st.StartTime = now
	st.EndTime = end
	if err := storeAuction(tx, auction, st); err != nil {
		return err
	}

	tx.Emit(outcryapi.EventAuctionStarted, outcryapi.AuctionStarted{Auction: auction, StartTime: now, EndTime: end})
	log.Info().Str("auction", auction.String()).Int64("end_time", end).Msg("auction started")
	return nil
}

// EndAuction closes bidding once the end time has passed. Anyone may call it.
func (p *Program) EndAuction(tx *ledger.Txn, auction ledger.Address) error {
	st, err := loadAuction(tx, auction)
	if err != nil {
		return err
	}
	next, err := core.Transition(st.Status, core.TriggerEnd)
	if err != nil {
		return err
	}
	if tx.Now() < st.EndTime {
		return fmt.Errorf("%ds remaining: %w", st.EndTime-tx.Now(), core.ErrAuctionStillActive)
	}
	st.Status = next
	if err := storeAuction(tx, auction, st); err != nil {
		return err
	}

	tx.Emit(outcryapi.EventAuctionEnded, outcryapi.AuctionEnded{
		Auction:    auction,
		Winner:     st.HighestBidder,
		WinningBid: st.CurrentBid,
		TotalBids:  st.BidCount,
	})
	log.Info().
		Str("auction", auction.String()).
		Str("tier", tx.Tier()).
		Uint64("winning_bid", st.CurrentBid).
		Uint32("bids", st.BidCount).
		Msg("auction ended")
	return nil
}

// CancelAuction returns the asset to the seller. Allowed before start, or
// after an end with no bids.
func (p *Program) CancelAuction(tx *ledger.Txn, auction, seller ledger.Address) error {
	st, err := p.sellerAuction(tx, auction, seller)
	if err != nil {
		return err
	}
	if err := core.CheckCancel(*st); err != nil {
		return err
	}
	st.Status = outcryapi.StatusCancelled
	if err := storeAuction(tx, auction, st); err != nil {
		return err
	}
	if err := moveAsset(tx, st.AssetMint, auction, seller, seller, 1); err != nil {
		return fmt.Errorf("return asset: %w", err)
	}

	tx.Emit(outcryapi.EventAuctionCancelled, outcryapi.AuctionCancelled{Auction: auction, Seller: seller})
	log.Info().Str("auction", auction.String()).Msg("auction cancelled")
	return nil
}

// sellerAuction loads an auction and checks that seller signed and owns it.
func (p *Program) sellerAuction(tx *ledger.Txn, auction, seller ledger.Address) (*outcryapi.AuctionState, error) {
	if err := requireSigner(tx, seller); err != nil {
		return nil, err
	}
	st, err := loadAuction(tx, auction)
	if err != nil {
		return nil, err
	}
	if st.Seller != seller {
		return nil, fmt.Errorf("%s is not the seller: %w", seller, core.ErrUnauthorizedSeller)
	}
	return st, nil
}

func durationSeconds(d uint64) (int64, error) {
	if d > 1<<62 {
		return 0, core.ErrArithmeticOverflow
	}
	return int64(d), nil
}
