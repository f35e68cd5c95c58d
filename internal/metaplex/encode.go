package metaplex

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/near/borsh-go"

	"collier/internal/apperr"
	"collier/internal/domain"
)

// UpdateMetadataArgs are the arguments of the UpdateMetadataAccount instruction.
// Nil or empty fields leave the on-chain value unchanged.
type UpdateMetadataArgs struct {
	Data                *domain.MetadataRecord // name, symbol, uri, fee and creators are written
	UpdateAuthority     string
	PrimarySaleHappened *bool
}

// updateMetadataArgs is the Borsh form: Option<Data>, Option<Pubkey>, Option<bool>.
type updateMetadataArgs struct {
	Data                *metadataData
	UpdateAuthority     *solana.PublicKey
	PrimarySaleHappened *bool
}

// EncodeUpdateMetadataData returns the UpdateMetadataAccount instruction data.
// Strings are written as stored, so padded values keep their padding.
func EncodeUpdateMetadataData(args UpdateMetadataArgs) ([]byte, error) {
	const op = "encode update metadata"

	var raw updateMetadataArgs

	if args.Data != nil {
		d, err := toMetadataData(args.Data)
		if err != nil {
			return nil, apperr.New(apperr.Validation, op, err)
		}
		raw.Data = d
	}

	if args.UpdateAuthority != "" {
		pk, err := solana.PublicKeyFromBase58(args.UpdateAuthority)
		if err != nil {
			return nil, apperr.New(apperr.Validation, op, fmt.Errorf("update authority: %w", err))
		}
		raw.UpdateAuthority = &pk
	}

	raw.PrimarySaleHappened = args.PrimarySaleHappened

	body, err := borsh.Serialize(raw)
	if err != nil {
		return nil, apperr.New(apperr.Validation, op, err)
	}

	return append([]byte{InstructionUpdateMetadataAccount}, body...), nil
}

func toMetadataData(rec *domain.MetadataRecord) (*metadataData, error) {
	if len(rec.Name) > MaxNameLength {
		return nil, fmt.Errorf("name is %d bytes, max %d", len(rec.Name), MaxNameLength)
	}
	if len(rec.Symbol) > MaxSymbolLength {
		return nil, fmt.Errorf("symbol is %d bytes, max %d", len(rec.Symbol), MaxSymbolLength)
	}
	if len(rec.URI) > MaxURILength {
		return nil, fmt.Errorf("uri is %d bytes, max %d", len(rec.URI), MaxURILength)
	}
	if len(rec.Creators) > MaxCreators {
		return nil, fmt.Errorf("%d creators exceeds maximum %d", len(rec.Creators), MaxCreators)
	}

	d := &metadataData{
		Name:                 rec.Name,
		Symbol:               rec.Symbol,
		URI:                  rec.URI,
		SellerFeeBasisPoints: rec.SellerFeeBasisPoints,
	}

	if rec.Creators != nil {
		creators := make([]creator, 0, len(rec.Creators))
		for i, c := range rec.Creators {
			pk, err := solana.PublicKeyFromBase58(c.Address)
			if err != nil {
				return nil, fmt.Errorf("creator %d: %w", i, err)
			}
			creators = append(creators, creator{Address: pk, Verified: c.Verified, Share: c.Share})
		}
		d.Creators = &creators
	}

	return d, nil
}
