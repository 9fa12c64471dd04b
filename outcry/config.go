package outcry

import (
	"fmt"

	"github.com/cloudx-io/outcry/core"
	"github.com/cloudx-io/outcry/ledger"
)

const (
	// DefaultMinDuration is the shortest auction a seller may create.
	DefaultMinDuration uint64 = 5
	// DefaultMaxDuration is seven days.
	DefaultMaxDuration uint64 = 604800
	// DefaultGracePeriod is seven days.
	DefaultGracePeriod int64 = 604800
)

// Config holds program-wide parameters.
type Config struct {
	MinDuration uint64
	MaxDuration uint64
	// MaxExtension is the fixed ceiling on total anti-snipe extension (seconds)
	MaxExtension int64
	// GracePeriod is how long bidders have to claim refunds before force_close
	GracePeriod int64
	// ProtocolFeeBps is taken from the seller's share at settlement
	ProtocolFeeBps uint16
	// Treasury receives the protocol fee; required when ProtocolFeeBps > 0
	Treasury ledger.Address
}

// DefaultConfig returns the production parameters.
func DefaultConfig() Config {
	return Config{
		MinDuration:  DefaultMinDuration,
		MaxDuration:  DefaultMaxDuration,
		MaxExtension: core.DefaultMaxExtension,
		GracePeriod:  DefaultGracePeriod,
	}
}

// Validate rejects inconsistent parameters.
func (c Config) Validate() error {
	switch {
	case c.MinDuration == 0:
		return fmt.Errorf("min duration must be positive: %w", core.ErrInvalidConfig)
	case c.MaxDuration < c.MinDuration:
		return fmt.Errorf("max duration %d below min duration %d: %w", c.MaxDuration, c.MinDuration, core.ErrInvalidConfig)
	case c.MaxExtension < 0:
		return fmt.Errorf("max extension must not be negative: %w", core.ErrInvalidConfig)
	case c.GracePeriod < 0:
		return fmt.Errorf("grace period must not be negative: %w", core.ErrInvalidConfig)
	case c.ProtocolFeeBps > core.BasisPoints:
		return fmt.Errorf("protocol fee %d bps above 100%%: %w", c.ProtocolFeeBps, core.ErrInvalidConfig)
	case c.ProtocolFeeBps > 0 && c.Treasury.IsZero():
		return fmt.Errorf("protocol fee set without treasury: %w", core.ErrInvalidConfig)
	}
	return nil
}
