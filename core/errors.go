package core

import "errors"

// Kind groups program errors by the failure class the caller has to handle.
type Kind uint8

const (
	KindValidation Kind = iota + 1
	KindState
	KindAuthorization
	KindArithmetic
	KindExternalData
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindState:
		return "state"
	case KindAuthorization:
		return "authorization"
	case KindArithmetic:
		return "arithmetic"
	case KindExternalData:
		return "external_data"
	default:
		return "unknown"
	}
}

// ProgramError aborts a transaction. Sentinels are compared with errors.Is.
type ProgramError struct {
	Code uint32
	Kind Kind
	Msg  string
}

func (e *ProgramError) Error() string { return e.Msg }

func newError(code uint32, kind Kind, msg string) *ProgramError {
	return &ProgramError{Code: code, Kind: kind, Msg: msg}
}

// Validation errors
var (
	ErrInvalidReservePrice  = newError(6000, KindValidation, "reserve price must be greater than zero")
	ErrInvalidDuration      = newError(6001, KindValidation, "auction duration is out of valid range")
	ErrInvalidBidIncrement  = newError(6002, KindValidation, "minimum bid increment must be greater than zero")
	ErrInvalidDepositAmount = newError(6003, KindValidation, "deposit amount must be greater than zero")
	ErrInvalidAsset         = newError(6004, KindValidation, "asset must be a single unit of a zero-decimal mint")
	ErrBelowReserve         = newError(6005, KindValidation, "bid does not meet reserve price")
	ErrBidTooLow            = newError(6006, KindValidation, "bid must exceed current bid plus minimum increment")
	ErrInvalidConfig        = newError(6007, KindValidation, "invalid program configuration")
)

// State errors
var (
	ErrInvalidAuctionStatus = newError(6100, KindState, "auction is not in the correct status for this operation")
	ErrAuctionNotStarted    = newError(6101, KindState, "auction has not started yet")
	ErrAuctionEnded         = newError(6102, KindState, "auction has already ended")
	ErrAuctionStillActive   = newError(6103, KindState, "auction still has time remaining")
	ErrCannotCancelWithBids = newError(6104, KindState, "cannot cancel auction with existing bids")
	ErrNoBidsToSettle       = newError(6105, KindState, "auction has no bids to settle")
	ErrInsufficientDeposit  = newError(6106, KindState, "winner deposit insufficient for winning bid")
	ErrForfeitNotNeeded     = newError(6107, KindState, "forfeiture not needed, winner deposit covers the winning bid")
	ErrNothingToRefund      = newError(6108, KindState, "nothing to refund")
	ErrRefundNotAvailable   = newError(6109, KindState, "refund only available after settlement or cancellation")
	ErrOutstandingDeposits  = newError(6110, KindState, "cannot close auction with outstanding deposits, all bidders must claim refunds first")
	ErrEscrowNotEmpty       = newError(6111, KindState, "cannot close auction while escrow still holds the asset")
	ErrGracePeriodActive    = newError(6112, KindState, "grace period not elapsed, bidders still have time to claim refunds")
	ErrAuctionDelegated     = newError(6113, KindState, "auction record is resident on the fast tier")
	ErrAuctionNotDelegated  = newError(6114, KindState, "auction record is not delegated")
	ErrSessionExists        = newError(6115, KindState, "session already registered for this bidder")
	ErrAuctionNotFound      = newError(6116, KindState, "auction not found")
)

// Authorization errors
var (
	ErrUnauthorizedSeller    = newError(6200, KindAuthorization, "only the seller can perform this action")
	ErrSellerCannotBid       = newError(6201, KindAuthorization, "seller cannot bid on their own auction")
	ErrMissingSigner         = newError(6202, KindAuthorization, "required signer missing from transaction")
	ErrSessionSignerMismatch = newError(6203, KindAuthorization, "session token is bound to a different signer")
	ErrSessionBidderMismatch = newError(6204, KindAuthorization, "session token belongs to a different auction")
	ErrSessionNotFound       = newError(6205, KindAuthorization, "no session registered for this bidder")
)

// Arithmetic errors
var (
	ErrArithmeticOverflow       = newError(6300, KindArithmetic, "arithmetic overflow")
	ErrInsufficientVaultBalance = newError(6301, KindArithmetic, "vault has insufficient lamports for this operation")
)

// External-data errors
var (
	ErrInvalidMetadata       = newError(6400, KindExternalData, "could not parse asset metadata")
	ErrMissingCreatorAccount = newError(6401, KindExternalData, "missing creator account for royalty distribution")
	ErrInvalidDepositAccount = newError(6402, KindExternalData, "could not deserialize deposit account data")
	ErrInvalidTreasury       = newError(6403, KindExternalData, "invalid protocol treasury account")
	ErrInvalidAuctionAccount = newError(6404, KindExternalData, "could not deserialize auction account data")
	ErrInvalidSessionAccount = newError(6405, KindExternalData, "could not deserialize session account data")
	ErrInvalidAssetAccount   = newError(6406, KindExternalData, "could not deserialize asset account data")
)

// KindOf reports the class of a program error, or 0 for other errors.
func KindOf(err error) Kind {
	var pe *ProgramError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}
