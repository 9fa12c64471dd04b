package ledger

import "errors"

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrAccountExists       = errors.New("account already exists")
	ErrInsufficientFunds   = errors.New("insufficient lamports")
	ErrMissingSignature    = errors.New("missing required signature")
	ErrIllegalOwner        = errors.New("account is not owned by the debiting program")
	ErrBelowStorageDeposit = errors.New("account balance would drop below its storage deposit")
	ErrLamportOverflow     = errors.New("lamport arithmetic overflow")
	ErrBusy                = errors.New("ledger is at its pending transaction limit")
	ErrDataTooLarge        = errors.New("account data exceeds allocated space")
)
