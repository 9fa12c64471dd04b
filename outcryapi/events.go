package outcryapi

import "github.com/cloudx-io/outcry/ledger"

// Event names as published on the ledger event log.
const (
	EventAuctionCreated     = "AuctionCreated"
	EventAuctionStarted     = "AuctionStarted"
	EventSessionCreated     = "SessionCreated"
	EventAuctionDelegated   = "AuctionDelegated"
	EventBidPlaced          = "BidPlaced"
	EventAuctionEnded       = "AuctionEnded"
	EventAuctionUndelegated = "AuctionUndelegated"
	EventAuctionSettled     = "AuctionSettled"
	EventDepositMade        = "DepositMade"
	EventRefundClaimed      = "RefundClaimed"
	EventAuctionCancelled   = "AuctionCancelled"
	EventAuctionClosed      = "AuctionClosed"
	EventAuctionForceClosed = "AuctionForceClosed"
)

type AuctionCreated struct {
	Auction         ledger.Address `json:"auction"`
	Seller          ledger.Address `json:"seller"`
	AssetMint       ledger.Address `json:"asset_mint"`
	ReservePrice    uint64         `json:"reserve_price"`
	DurationSeconds uint64         `json:"duration_seconds"`
}

type AuctionStarted struct {
	Auction   ledger.Address `json:"auction"`
	StartTime int64          `json:"start_time"`
	EndTime   int64          `json:"end_time"`
}

type SessionCreated struct {
	Auction       ledger.Address `json:"auction"`
	Bidder        ledger.Address `json:"bidder"`
	SessionSigner ledger.Address `json:"session_signer"`
}

type AuctionDelegated struct {
	Auction ledger.Address `json:"auction"`
	Tier    string         `json:"tier"`
}

// BidPlaced always names the real bidder, also for session bids.
type BidPlaced struct {
	Auction     ledger.Address `json:"auction"`
	Bidder      ledger.Address `json:"bidder"`
	Amount      uint64         `json:"amount"`
	PreviousBid uint64         `json:"previous_bid"`
	BidCount    uint32         `json:"bid_count"`
	NewEndTime  int64          `json:"new_end_time"`
}

type AuctionEnded struct {
	Auction    ledger.Address `json:"auction"`
	Winner     ledger.Address `json:"winner"`
	WinningBid uint64         `json:"winning_bid"`
	TotalBids  uint32         `json:"total_bids"`
}

type AuctionUndelegated struct {
	Auction ledger.Address `json:"auction"`
}

// AuctionSettled is emitted by both settlement and forfeiture. A forfeiture
// reports FinalPrice 0 and the forfeited penalty as SellerReceived.
type AuctionSettled struct {
	Auction        ledger.Address `json:"auction"`
	Winner         ledger.Address `json:"winner"`
	FinalPrice     uint64         `json:"final_price"`
	SellerReceived uint64         `json:"seller_received"`
	RoyaltiesPaid  uint64         `json:"royalties_paid"`
	ProtocolFee    uint64         `json:"protocol_fee"`
	Forfeited      bool           `json:"forfeited"`
}

type DepositMade struct {
	Auction      ledger.Address `json:"auction"`
	Bidder       ledger.Address `json:"bidder"`
	Amount       uint64         `json:"amount"`
	TotalDeposit uint64         `json:"total_deposit"`
}

type RefundClaimed struct {
	Auction ledger.Address `json:"auction"`
	Bidder  ledger.Address `json:"bidder"`
	Amount  uint64         `json:"amount"`
	Payer   ledger.Address `json:"payer"`
}

type AuctionCancelled struct {
	Auction ledger.Address `json:"auction"`
	Seller  ledger.Address `json:"seller"`
}

type AuctionClosed struct {
	Auction   ledger.Address `json:"auction"`
	Seller    ledger.Address `json:"seller"`
	Reclaimed uint64         `json:"reclaimed"`
}

type AuctionForceClosed struct {
	Auction         ledger.Address `json:"auction"`
	Seller          ledger.Address `json:"seller"`
	DrainedLamports uint64         `json:"drained_lamports"`
}
