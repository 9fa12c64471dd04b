package core

// BidState is the part of an auction record the bidding rules read and write.
type BidState struct {
	ReservePrice     uint64
	MinBidIncrement  uint64
	CurrentBid       uint64
	BidCount         uint32
	DurationSeconds  uint64
	StartTime        int64
	EndTime          int64
	ExtensionSeconds uint32
	ExtensionWindow  uint32
}

// BidResult describes an accepted bid.
type BidResult struct {
	// PreviousBid is the current bid before this one (0 for the first bid)
	PreviousBid uint64
	// NewEndTime is the end time after any anti-snipe extension
	NewEndTime int64
	// Extended is true if the bid arrived inside the extension window
	Extended bool
}

// Share is one royalty recipient's percentage of the total royalty.
type Share struct {
	Recipient [32]byte
	Percent   uint8
}

// Payout is an amount owed to one royalty recipient.
type Payout struct {
	Recipient [32]byte
	Amount    uint64
}

// Proceeds splits a winning bid between royalty recipients, the protocol
// treasury and the seller. RoyaltiesPaid + ProtocolFee + SellerReceives == Bid.
type Proceeds struct {
	Bid            uint64
	TotalRoyalty   uint64
	Payouts        []Payout
	RoyaltiesPaid  uint64
	ProtocolFee    uint64
	SellerReceives uint64
}
