package outcry

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/cloudx-io/outcry/core"
	"github.com/cloudx-io/outcry/ledger"
	"github.com/cloudx-io/outcry/outcryapi"
	"github.com/cloudx-io/outcry/outcryapi/parsing"
)

// SettleParams carries the accounts settlement needs beyond the auction.
type SettleParams struct {
	// Payer funds the winner's holding account if it does not exist yet
	Payer ledger.Address
	// Creators must list every royalty recipient with a non-zero share
	Creators []ledger.Address
	// Treasury receives the protocol fee when one is configured
	Treasury ledger.Address
}

// SettleAuction pays out a solvent winner's bid and delivers the asset.
//
// Processing flow:
//  1. Check Ended, at least one bid, winner deposit >= winning bid
//  2. Commit status Settled before anything else moves
//  3. Deduct the bid from the winner's deposit entry
//  4. Pay royalties, the protocol fee and the seller from the vault
//  5. Move the asset from custody to the winner
func (p *Program) SettleAuction(tx *ledger.Txn, auction ledger.Address, params SettleParams) (outcryapi.AuctionSettled, error) {
	if err := requireSigner(tx, params.Payer); err != nil {
		return outcryapi.AuctionSettled{}, err
	}
	st, err := loadAuction(tx, auction)
	if err != nil {
		return outcryapi.AuctionSettled{}, err
	}
	if err := core.CheckCrank(*st, core.TriggerSettle); err != nil {
		return outcryapi.AuctionSettled{}, err
	}

	winner := st.HighestBidder
	bid := st.CurrentBid
	depAddr, _ := DepositAddress(auction, winner)
	dep, _, err := loadDeposit(tx, depAddr)
	if err != nil {
		return outcryapi.AuctionSettled{}, err
	}
	if dep.Amount < bid {
		return outcryapi.AuctionSettled{}, fmt.Errorf("deposit %d below bid %d: %w", dep.Amount, bid, core.ErrInsufficientDeposit)
	}

	st.Status = outcryapi.StatusSettled
	if err := storeAuction(tx, auction, st); err != nil {
		return outcryapi.AuctionSettled{}, err
	}

	if err := deductDeposit(tx, depAddr, dep, bid); err != nil {
		return outcryapi.AuctionSettled{}, err
	}

	md, err := loadRoyalties(tx, st.AssetMint)
	if err != nil {
		return outcryapi.AuctionSettled{}, err
	}
	shares := make([]core.Share, 0, len(md.Creators))
	for _, c := range md.Creators {
		shares = append(shares, core.Share{Recipient: c.Address, Percent: c.Share})
	}
	proceeds, err := core.SplitProceeds(bid, md.RoyaltyBps, shares, p.cfg.ProtocolFeeBps)
	if err != nil {
		return outcryapi.AuctionSettled{}, err
	}

	vault, _ := VaultAddress(auction)
	for _, payout := range proceeds.Payouts {
		creator := ledger.Address(payout.Recipient)
		if !containsAddress(params.Creators, creator) {
			return outcryapi.AuctionSettled{}, fmt.Errorf("creator %s: %w", creator, core.ErrMissingCreatorAccount)
		}
		if err := payFromVault(tx, vault, creator, payout.Amount); err != nil {
			return outcryapi.AuctionSettled{}, fmt.Errorf("pay royalty: %w", err)
		}
	}
	if proceeds.ProtocolFee > 0 {
		if params.Treasury.IsZero() || params.Treasury != p.cfg.Treasury {
			return outcryapi.AuctionSettled{}, fmt.Errorf("treasury %s: %w", params.Treasury, core.ErrInvalidTreasury)
		}
		if err := payFromVault(tx, vault, params.Treasury, proceeds.ProtocolFee); err != nil {
			return outcryapi.AuctionSettled{}, fmt.Errorf("pay protocol fee: %w", err)
		}
	}
	if err := payFromVault(tx, vault, st.Seller, proceeds.SellerReceives); err != nil {
		return outcryapi.AuctionSettled{}, fmt.Errorf("pay seller: %w", err)
	}

	if err := moveAsset(tx, st.AssetMint, auction, winner, params.Payer, 1); err != nil {
		return outcryapi.AuctionSettled{}, fmt.Errorf("deliver asset: %w", err)
	}

	ev := outcryapi.AuctionSettled{
		Auction:        auction,
		Winner:         winner,
		FinalPrice:     bid,
		SellerReceived: proceeds.SellerReceives,
		RoyaltiesPaid:  proceeds.RoyaltiesPaid,
		ProtocolFee:    proceeds.ProtocolFee,
	}
	tx.Emit(outcryapi.EventAuctionSettled, ev)
	log.Info().
		Str("auction", auction.String()).
		Str("winner", winner.String()).
		Uint64("price", bid).
		Uint64("royalties", proceeds.RoyaltiesPaid).
		Uint64("seller_received", proceeds.SellerReceives).
		Msg("auction settled")
	return ev, nil
}

// ForfeitAuction handles a winner whose deposit does not cover the winning
// bid: whatever the winner deposited goes to the seller as a penalty and the
// asset returns to the seller. Anyone may call it.
func (p *Program) ForfeitAuction(tx *ledger.Txn, auction, payer ledger.Address) (outcryapi.AuctionSettled, error) {
	if err := requireSigner(tx, payer); err != nil {
		return outcryapi.AuctionSettled{}, err
	}
	st, err := loadAuction(tx, auction)
	if err != nil {
		return outcryapi.AuctionSettled{}, err
	}
	if err := core.CheckCrank(*st, core.TriggerForfeit); err != nil {
		return outcryapi.AuctionSettled{}, err
	}

	winner := st.HighestBidder
	depAddr, _ := DepositAddress(auction, winner)
	dep, exists, err := loadDeposit(tx, depAddr)
	if err != nil {
		return outcryapi.AuctionSettled{}, err
	}
	if dep.Amount >= st.CurrentBid {
		return outcryapi.AuctionSettled{}, core.ErrForfeitNotNeeded
	}

	st.Status = outcryapi.StatusSettled
	if err := storeAuction(tx, auction, st); err != nil {
		return outcryapi.AuctionSettled{}, err
	}

	penalty := dep.Amount
	if exists {
		if _, err := tx.CloseAccount(depAddr, winner); err != nil {
			return outcryapi.AuctionSettled{}, fmt.Errorf("reclaim deposit entry: %w", err)
		}
	}
	if penalty > 0 {
		vault, _ := VaultAddress(auction)
		if err := payFromVault(tx, vault, st.Seller, penalty); err != nil {
			return outcryapi.AuctionSettled{}, fmt.Errorf("pay penalty: %w", err)
		}
	}
	if err := moveAsset(tx, st.AssetMint, auction, st.Seller, payer, 1); err != nil {
		return outcryapi.AuctionSettled{}, fmt.Errorf("return asset: %w", err)
	}

	ev := outcryapi.AuctionSettled{
		Auction:        auction,
		Winner:         winner,
		SellerReceived: penalty,
		Forfeited:      true,
	}
	tx.Emit(outcryapi.EventAuctionSettled, ev)
	log.Warn().
		Str("auction", auction.String()).
		Str("winner", winner.String()).
		Uint64("bid", st.CurrentBid).
		Uint64("penalty", penalty).
		Msg("auction forfeited")
	return ev, nil
}

// deductDeposit removes amount from a deposit entry, reclaiming the entry
// to its bidder once it reaches zero.
func deductDeposit(tx *ledger.Txn, addr ledger.Address, dep *outcryapi.BidderDeposit, amount uint64) error {
	remaining, err := core.CheckedSub(dep.Amount, amount)
	if err != nil {
		return err
	}
	if remaining == 0 {
		if _, err := tx.CloseAccount(addr, dep.Bidder); err != nil {
			return fmt.Errorf("reclaim deposit entry: %w", err)
		}
		return nil
	}
	dep.Amount = remaining
	return storeRecord(tx, addr, dep)
}

// loadRoyalties reads the royalty descriptor of mint. A mint without a
// metadata record pays no royalties.
func loadRoyalties(tx *ledger.Txn, mint ledger.Address) (*parsing.AssetMetadata, error) {
	acct, ok := tx.Account(MetadataAddress(mint))
	if !ok {
		return &parsing.AssetMetadata{Mint: mint}, nil
	}
	if acct.Owner != MetadataProgram {
		return nil, fmt.Errorf("metadata owned by %s: %w", acct.Owner, core.ErrInvalidMetadata)
	}
	md, err := parsing.ParseMetadata(acct.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidMetadata, err)
	}
	if md.Mint != mint {
		return nil, fmt.Errorf("metadata describes %s: %w", md.Mint, core.ErrInvalidMetadata)
	}
	return md, nil
}

func containsAddress(list []ledger.Address, a ledger.Address) bool {
	for _, x := range list {
		if x == a {
			return true
		}
	}
	return false
}
