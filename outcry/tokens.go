package outcry

import (
	"fmt"

	"github.com/cloudx-io/outcry/core"
	"github.com/cloudx-io/outcry/ledger"
	"github.com/cloudx-io/outcry/outcryapi"
)

// CreateMint allocates a zero-decimal mint at addr with no supply.
func CreateMint(tx *ledger.Txn, payer, addr, authority ledger.Address) error {
	data, err := outcryapi.Encode(outcryapi.Mint{Authority: authority})
	if err != nil {
		return err
	}
	return tx.CreateAccount(payer, addr, TokenProgram, data, outcryapi.MintSpace)
}

// MintTo issues amount units of mint to owner's holding account, creating it
// at the authority's expense if needed. The mint authority must sign.
func MintTo(tx *ledger.Txn, mint, authority, owner ledger.Address, amount uint64) error {
	m, err := loadMint(tx, mint)
	if err != nil {
		return err
	}
	if m.Authority != authority {
		return fmt.Errorf("mint %s authority is not %s: %w", mint, authority, core.ErrMissingSigner)
	}
	if err := requireSigner(tx, authority); err != nil {
		return err
	}
	if m.Supply, err = core.CheckedAdd(m.Supply, amount); err != nil {
		return err
	}
	if err := writeToken(tx, mint, m); err != nil {
		return err
	}
	holding, err := openTokenAccount(tx, authority, owner, mint)
	if err != nil {
		return err
	}
	return adjustToken(tx, holding, amount, true)
}

// TokenBalance returns the units of mint held by owner.
func TokenBalance(tx *ledger.Txn, owner, mint ledger.Address) uint64 {
	ta, _, err := loadTokenAccount(tx, TokenAddress(owner, mint))
	if err != nil {
		return 0
	}
	return ta.Amount
}

func loadMint(tx *ledger.Txn, addr ledger.Address) (*outcryapi.Mint, error) {
	acct, ok := tx.Account(addr)
	if !ok || acct.Owner != TokenProgram {
		return nil, fmt.Errorf("mint %s: %w", addr, core.ErrInvalidAssetAccount)
	}
	var m outcryapi.Mint
	if err := outcryapi.Decode(acct.Data, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidAssetAccount, err)
	}
	return &m, nil
}

func loadTokenAccount(tx *ledger.Txn, addr ledger.Address) (*outcryapi.TokenAccount, bool, error) {
	acct, ok := tx.Account(addr)
	if !ok {
		return nil, false, nil
	}
	if acct.Owner != TokenProgram {
		return nil, false, fmt.Errorf("token account %s: %w", addr, core.ErrInvalidAssetAccount)
	}
	var ta outcryapi.TokenAccount
	if err := outcryapi.Decode(acct.Data, &ta); err != nil {
		return nil, false, fmt.Errorf("%w: %w", core.ErrInvalidAssetAccount, err)
	}
	return &ta, true, nil
}

func writeToken(tx *ledger.Txn, addr ledger.Address, r outcryapi.Record) error {
	data, err := outcryapi.Encode(r)
	if err != nil {
		return err
	}
	return tx.WriteData(addr, TokenProgram, data)
}

// openTokenAccount returns owner's holding account for mint, creating it at
// payer's expense if it does not exist.
func openTokenAccount(tx *ledger.Txn, payer, owner, mint ledger.Address) (ledger.Address, error) {
	addr := TokenAddress(owner, mint)
	_, ok, err := loadTokenAccount(tx, addr)
	if err != nil || ok {
		return addr, err
	}
	data, err := outcryapi.Encode(outcryapi.TokenAccount{Mint: mint, Owner: owner})
	if err != nil {
		return addr, err
	}
	if err := tx.CreateAccount(payer, addr, TokenProgram, data, outcryapi.TokenAccountSpace); err != nil {
		return addr, fmt.Errorf("open holding account for %s: %w", owner, err)
	}
	return addr, nil
}

func adjustToken(tx *ledger.Txn, addr ledger.Address, amount uint64, credit bool) error {
	ta, ok, err := loadTokenAccount(tx, addr)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("token account %s: %w", addr, core.ErrInvalidAssetAccount)
	}
	if credit {
		ta.Amount, err = core.CheckedAdd(ta.Amount, amount)
	} else {
		ta.Amount, err = core.CheckedSub(ta.Amount, amount)
	}
	if err != nil {
		return err
	}
	return writeToken(tx, addr, ta)
}

// moveAsset transfers amount units of mint from one owner's holding account to
// another's, opening the destination at payer's expense.
func moveAsset(tx *ledger.Txn, mint, from, to, payer ledger.Address, amount uint64) error {
	dst, err := openTokenAccount(tx, payer, to, mint)
	if err != nil {
		return err
	}
	if err := adjustToken(tx, TokenAddress(from, mint), amount, false); err != nil {
		return fmt.Errorf("debit asset from %s: %w", from, err)
	}
	return adjustToken(tx, dst, amount, true)
}

// custodyAmount returns the units held in an auction's escrow account.
func custodyAmount(tx *ledger.Txn, auction, mint ledger.Address) (uint64, bool, error) {
	ta, ok, err := loadTokenAccount(tx, CustodyAddress(auction, mint))
	if err != nil || !ok {
		return 0, ok, err
	}
	return ta.Amount, true, nil
}

// PutMetadata stores a raw royalty metadata record for mint.
func PutMetadata(tx *ledger.Txn, payer, mint ledger.Address, data []byte) error {
	addr := MetadataAddress(mint)
	if acct, ok := tx.Account(addr); ok {
		if len(data) > acct.Space {
			return fmt.Errorf("metadata for %s: %w", mint, ledger.ErrDataTooLarge)
		}
		return tx.WriteData(addr, MetadataProgram, data)
	}
	return tx.CreateAccount(payer, addr, MetadataProgram, data, len(data))
}
