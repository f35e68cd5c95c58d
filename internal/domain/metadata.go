package domain

import (
	"fmt"
	"strings"
)

// MaxSellerFeeBasisPoints is 100% in basis points.
const MaxSellerFeeBasisPoints = 10000

// CreatorShareTotal is the sum every non-empty creator list must reach.
const CreatorShareTotal = 100

// MetadataRecord represents a Metaplex token metadata account.
// Corresponds to the metadata table; creators are stored in the creators table.
type MetadataRecord struct {
	MetadataAddress      string    // PRIMARY KEY, metadata PDA
	MintAddress          string    // UNIQUE, 1:1 with metadata
	UpdateAuthority      string    // key allowed to update the record
	Name                 string    // raw, may carry NUL padding
	Symbol               string    // raw, may carry NUL padding
	URI                  string    // raw, may carry NUL padding
	SellerFeeBasisPoints uint16    // 0-10000
	Creators             []Creator // nil when the creator list is absent
	PrimarySaleHappened  bool
	IsMutable            bool
}

// Creator is an identity attributed a royalty share on a metadata record.
type Creator struct {
	Address  string
	Verified bool
	Share    uint8 // 0-100
}

// CleanName returns the name without NUL padding.
func (m *MetadataRecord) CleanName() string {
	return TrimPadding(m.Name)
}

// CleanSymbol returns the symbol without NUL padding.
func (m *MetadataRecord) CleanSymbol() string {
	return TrimPadding(m.Symbol)
}

// CleanURI returns the uri without NUL padding.
func (m *MetadataRecord) CleanURI() string {
	return TrimPadding(m.URI)
}

// CreatorAddresses returns creator addresses in list order.
func (m *MetadataRecord) CreatorAddresses() []string {
	out := make([]string, len(m.Creators))
	for i, c := range m.Creators {
		out[i] = c.Address
	}
	return out
}

// Validate checks the fee range and the creator share invariant.
func (m *MetadataRecord) Validate() error {
	if m.MetadataAddress == "" {
		return fmt.Errorf("metadata address is empty")
	}
	if m.MintAddress == "" {
		return fmt.Errorf("mint address is empty")
	}
	if m.SellerFeeBasisPoints > MaxSellerFeeBasisPoints {
		return fmt.Errorf("seller fee %d exceeds %d basis points", m.SellerFeeBasisPoints, MaxSellerFeeBasisPoints)
	}
	return ValidateCreators(m.Creators)
}

// ValidateCreators requires shares within 0-100 that sum to 100 for a non-empty list.
func ValidateCreators(creators []Creator) error {
	if len(creators) == 0 {
		return nil
	}

	total := 0
	for i, c := range creators {
		if c.Address == "" {
			return fmt.Errorf("creator %d has empty address", i)
		}
		if c.Share > CreatorShareTotal {
			return fmt.Errorf("creator %d share %d exceeds %d", i, c.Share, CreatorShareTotal)
		}
		total += int(c.Share)
	}

	if total != CreatorShareTotal {
		return fmt.Errorf("creator shares sum to %d, want %d", total, CreatorShareTotal)
	}
	return nil
}

// TrimPadding strips trailing NUL bytes from a fixed-capacity string.
func TrimPadding(s string) string {
	return strings.TrimRight(s, "\x00")
}
