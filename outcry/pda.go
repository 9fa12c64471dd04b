package outcry

import (
	"github.com/cloudx-io/outcry/core"
	"github.com/cloudx-io/outcry/ledger"
)

// Well-known program identities.
var (
	ProgramID       = ledger.ProgramAddress("outcry")
	TokenProgram    = ledger.ProgramAddress("token")
	MetadataProgram = ledger.ProgramAddress("metadata")
)

// Address namespace tags.
const (
	AuctionSeed    = "auction"
	VaultSeed      = "vault"
	DepositSeed    = "deposit"
	SessionSeed    = "session"
	DelegationSeed = "delegation"
	TokenSeed      = "token"
	MetadataSeed   = "metadata"
)

func reserved(a [32]byte) bool {
	switch ledger.Address(a) {
	case ledger.Zero, ledger.SystemProgram, ledger.DelegationProgram, ProgramID, TokenProgram, MetadataProgram:
		return true
	}
	return false
}

func derive(program ledger.Address, tag string, seeds ...ledger.Address) (ledger.Address, uint8) {
	raw := make([][]byte, len(seeds))
	for i, s := range seeds {
		raw[i] = s.Bytes()
	}
	addr, bump, ok := core.FindSeedHash(program, tag, raw, func(a [32]byte) bool { return !reserved(a) })
	if !ok {
		// 256 consecutive sha256 outputs landing on reserved addresses
		panic("no valid derivation bump")
	}
	return ledger.Address(addr), bump
}

// AuctionAddress locates the auction record for seller's asset.
func AuctionAddress(seller, mint ledger.Address) (ledger.Address, uint8) {
	return derive(ProgramID, AuctionSeed, seller, mint)
}

// VaultAddress locates the collateral vault of an auction.
func VaultAddress(auction ledger.Address) (ledger.Address, uint8) {
	return derive(ProgramID, VaultSeed, auction)
}

// DepositAddress locates bidder's deposit entry for an auction.
func DepositAddress(auction, bidder ledger.Address) (ledger.Address, uint8) {
	return derive(ProgramID, DepositSeed, auction, bidder)
}

// SessionAddress locates bidder's session token for an auction.
func SessionAddress(auction, bidder ledger.Address) (ledger.Address, uint8) {
	return derive(ProgramID, SessionSeed, auction, bidder)
}

// DelegationAddress locates the durable-tier delegation record of an auction.
func DelegationAddress(auction ledger.Address) ledger.Address {
	addr, _ := derive(ProgramID, DelegationSeed, auction)
	return addr
}

// TokenAddress locates owner's holding account for mint.
func TokenAddress(owner, mint ledger.Address) ledger.Address {
	addr, _ := derive(TokenProgram, TokenSeed, owner, mint)
	return addr
}

// CustodyAddress is the escrow holding account owned by the auction itself.
func CustodyAddress(auction, mint ledger.Address) ledger.Address {
	return TokenAddress(auction, mint)
}

// MetadataAddress locates the royalty metadata record of mint.
func MetadataAddress(mint ledger.Address) ledger.Address {
	addr, _ := derive(MetadataProgram, MetadataSeed, mint)
	return addr
}
