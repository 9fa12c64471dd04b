package parsing

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cloudx-io/outcry/ledger"
)

// ErrInvalidMetadata is returned for any malformed or truncated royalty
// metadata record.
var ErrInvalidMetadata = errors.New("could not parse asset metadata")

const (
	// MaxRoyaltyBps is 100% expressed in basis points.
	MaxRoyaltyBps = 10_000
	// MaxCreators bounds the creator list a metadata record may declare.
	MaxCreators = 5
	// MaxStringLen bounds each length-prefixed string field.
	MaxStringLen = 200

	creatorLen = ledger.AddressLength + 2
)

// Creator is one royalty recipient. Share is a percentage of the total royalty.
type Creator struct {
	Address  ledger.Address `json:"address"`
	Verified bool           `json:"verified"`
	Share    uint8          `json:"share"`
}

// AssetMetadata is the externally owned descriptor of an auctioned asset.
type AssetMetadata struct {
	Key             uint8          `json:"key"`
	UpdateAuthority ledger.Address `json:"update_authority"`
	Mint            ledger.Address `json:"mint"`
	Name            string         `json:"name"`
	Symbol          string         `json:"symbol"`
	URI             string         `json:"uri"`
	// RoyaltyBps is the seller fee in basis points (0..10000)
	RoyaltyBps uint16    `json:"royalty_bps"`
	Creators   []Creator `json:"creators,omitempty"`
}

// reader walks an untrusted buffer; every read checks the remaining length
// before slicing.
type reader struct {
	buf []byte
	off int
}

func (r *reader) remaining() int { return len(r.buf) - r.off }

func (r *reader) take(n int, field string) ([]byte, error) {
	if n < 0 || n > r.remaining() {
		return nil, fmt.Errorf("%s: need %d bytes at offset %d, have %d: %w", field, n, r.off, r.remaining(), ErrInvalidMetadata)
	}
	out := r.buf[r.off : r.off+n]
	r.off += n
	return out, nil
}

func (r *reader) u8(field string) (uint8, error) {
	b, err := r.take(1, field)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) u16(field string) (uint16, error) {
	b, err := r.take(2, field)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *reader) u32(field string) (uint32, error) {
	b, err := r.take(4, field)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) address(field string) (ledger.Address, error) {
	b, err := r.take(ledger.AddressLength, field)
	if err != nil {
		return ledger.Zero, err
	}
	return ledger.AddressFromBytes(b)
}

func (r *reader) boolean(field string) (bool, error) {
	v, err := r.u8(field)
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("%s: invalid flag %d: %w", field, v, ErrInvalidMetadata)
	}
}

func (r *reader) str(field string) (string, error) {
	n, err := r.u32(field + " length")
	if err != nil {
		return "", err
	}
	if n > MaxStringLen {
		return "", fmt.Errorf("%s: length %d exceeds %d: %w", field, n, MaxStringLen, ErrInvalidMetadata)
	}
	b, err := r.take(int(n), field)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ParseMetadata decodes a royalty metadata record. Trailing bytes after the
// creator list are ignored, the record may be padded to its allocated size.
func ParseMetadata(data []byte) (*AssetMetadata, error) {
	r := &reader{buf: data}
	md := &AssetMetadata{}
	var err error

	if md.Key, err = r.u8("key"); err != nil {
		return nil, err
	}
	if md.UpdateAuthority, err = r.address("update_authority"); err != nil {
		return nil, err
	}
	if md.Mint, err = r.address("mint"); err != nil {
		return nil, err
	}
	if md.Name, err = r.str("name"); err != nil {
		return nil, err
	}
	if md.Symbol, err = r.str("symbol"); err != nil {
		return nil, err
	}
	if md.URI, err = r.str("uri"); err != nil {
		return nil, err
	}
	if md.RoyaltyBps, err = r.u16("seller_fee_basis_points"); err != nil {
		return nil, err
	}
	if md.RoyaltyBps > MaxRoyaltyBps {
		return nil, fmt.Errorf("royalty %d bps exceeds %d: %w", md.RoyaltyBps, MaxRoyaltyBps, ErrInvalidMetadata)
	}

	hasCreators, err := r.boolean("creators option")
	if err != nil {
		return nil, err
	}
	if !hasCreators {
		return md, nil
	}

	count, err := r.u32("creators length")
	if err != nil {
		return nil, err
	}
	if count > MaxCreators {
		return nil, fmt.Errorf("creators: %d exceeds %d: %w", count, MaxCreators, ErrInvalidMetadata)
	}
	if int(count)*creatorLen > r.remaining() {
		return nil, fmt.Errorf("creators: %d entries truncated: %w", count, ErrInvalidMetadata)
	}

	md.Creators = make([]Creator, 0, count)
	var shares uint32
	for i := uint32(0); i < count; i++ {
		var c Creator
		if c.Address, err = r.address(fmt.Sprintf("creator[%d].address", i)); err != nil {
			return nil, err
		}
		if c.Verified, err = r.boolean(fmt.Sprintf("creator[%d].verified", i)); err != nil {
			return nil, err
		}
		if c.Share, err = r.u8(fmt.Sprintf("creator[%d].share", i)); err != nil {
			return nil, err
		}
		shares += uint32(c.Share)
		md.Creators = append(md.Creators, c)
	}
	if shares > 100 {
		return nil, fmt.Errorf("creator shares sum to %d: %w", shares, ErrInvalidMetadata)
	}
	return md, nil
}

// EncodeMetadata writes md in the layout ParseMetadata reads.
func EncodeMetadata(md *AssetMetadata) []byte {
	out := make([]byte, 0, 1+2*ledger.AddressLength+12+len(md.Name)+len(md.Symbol)+len(md.URI)+2+5+len(md.Creators)*creatorLen)
	out = append(out, md.Key)
	out = append(out, md.UpdateAuthority[:]...)
	out = append(out, md.Mint[:]...)
	for _, s := range []string{md.Name, md.Symbol, md.URI} {
		out = binary.LittleEndian.AppendUint32(out, uint32(len(s)))
		out = append(out, s...)
	}
	out = binary.LittleEndian.AppendUint16(out, md.RoyaltyBps)
	if md.Creators == nil {
		return append(out, 0)
	}
	out = append(out, 1)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(md.Creators)))
	for _, c := range md.Creators {
		out = append(out, c.Address[:]...)
		if c.Verified {
			out = append(out, 1)
		} else {
			out = append(out, 0)
		}
		out = append(out, c.Share)
	}
	return out
}
