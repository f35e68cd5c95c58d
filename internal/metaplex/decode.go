package metaplex

import (
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/near/borsh-go"

	"collier/internal/apperr"
	"collier/internal/domain"
)

// metadataV1 mirrors the leading fields of a MetadataV1 account.
// Trailing optional fields (edition nonce, token standard, collection...) are not read.
type metadataV1 struct {
	Key                 uint8
	UpdateAuthority     solana.PublicKey
	Mint                solana.PublicKey
	Data                metadataData
	PrimarySaleHappened bool
	IsMutable           bool
}

type metadataData struct {
	Name                 string
	Symbol               string
	URI                  string
	SellerFeeBasisPoints uint16
	Creators             *[]creator
}

type creator struct {
	Address  solana.PublicKey
	Verified bool
	Share    uint8
}

// DecodeMetadata decodes a MetadataV1 account payload stored at address.
// String fields keep their raw NUL padding.
func DecodeMetadata(address string, data []byte) (rec *domain.MetadataRecord, err error) {
	const op = "decode metadata"

	hasCreators, err := checkMetadataBounds(data)
	if err != nil {
		return nil, apperr.New(apperr.Decode, op, fmt.Errorf("%s: %w", address, err))
	}

	defer func() {
		if r := recover(); r != nil {
			rec = nil
			err = apperr.Newf(apperr.Decode, op, "%s: borsh: %v", address, r)
		}
	}()

	var m metadataV1
	if err := borsh.Deserialize(&m, data); err != nil {
		return nil, apperr.New(apperr.Decode, op, fmt.Errorf("%s: %w", address, err))
	}

	rec = &domain.MetadataRecord{
		MetadataAddress:      address,
		MintAddress:          m.Mint.String(),
		UpdateAuthority:      m.UpdateAuthority.String(),
		Name:                 m.Data.Name,
		Symbol:               m.Data.Symbol,
		URI:                  m.Data.URI,
		SellerFeeBasisPoints: m.Data.SellerFeeBasisPoints,
		PrimarySaleHappened:  m.PrimarySaleHappened,
		IsMutable:            m.IsMutable,
	}

	// borsh-go decodes None as a pointer to the zero value.
	if hasCreators && m.Data.Creators != nil {
		rec.Creators = make([]domain.Creator, 0, len(*m.Data.Creators))
		for _, c := range *m.Data.Creators {
			rec.Creators = append(rec.Creators, domain.Creator{
				Address:  c.Address.String(),
				Verified: c.Verified,
				Share:    c.Share,
			})
		}
	}

	return rec, nil
}

// checkMetadataBounds walks the length prefixes so that truncated or
// oversized payloads are rejected before reflection decoding allocates.
// It reports whether the creators Option is Some.
func checkMetadataBounds(data []byte) (bool, error) {
	if len(data) == 0 {
		return false, fmt.Errorf("empty payload")
	}
	if data[0] != KeyMetadataV1 {
		return false, fmt.Errorf("unexpected key %d, want %d", data[0], KeyMetadataV1)
	}

	dec := bin.NewBinDecoder(data)
	if _, err := dec.ReadNBytes(KeySize + 2*PubkeySize); err != nil {
		return false, fmt.Errorf("header: %w", err)
	}

	for _, field := range []string{"name", "symbol", "uri"} {
		n, err := dec.ReadUint32(binary.LittleEndian)
		if err != nil {
			return false, fmt.Errorf("%s length: %w", field, err)
		}
		if int(n) > dec.Remaining() {
			return false, fmt.Errorf("%s length %d exceeds remaining %d bytes", field, n, dec.Remaining())
		}
		if _, err := dec.ReadNBytes(int(n)); err != nil {
			return false, fmt.Errorf("%s: %w", field, err)
		}
	}

	if _, err := dec.ReadNBytes(FeeSize); err != nil {
		return false, fmt.Errorf("seller fee: %w", err)
	}

	present, err := dec.ReadUint8()
	if err != nil {
		return false, fmt.Errorf("creators flag: %w", err)
	}
	if present == 0 {
		return false, nil
	}

	count, err := dec.ReadUint32(binary.LittleEndian)
	if err != nil {
		return false, fmt.Errorf("creators length: %w", err)
	}
	if count > MaxCreators {
		return false, fmt.Errorf("%d creators exceeds maximum %d", count, MaxCreators)
	}
	if int(count)*CreatorSize+2 > dec.Remaining() {
		return false, fmt.Errorf("creators truncated")
	}
	return true, nil
}

// DecodeTokenAccount decodes an SPL token account payload.
func DecodeTokenAccount(data []byte) (*domain.TokenAccount, error) {
	const op = "decode token account"

	if len(data) < TokenAccountSize {
		return nil, apperr.Newf(apperr.Decode, op, "payload is %d bytes, want at least %d", len(data), TokenAccountSize)
	}
	if data[TokenAccountStateOffset] == TokenStateUninitialized {
		return nil, apperr.Newf(apperr.Decode, op, "account is not initialized")
	}

	dec := bin.NewBinDecoder(data)

	mint, err := dec.ReadNBytes(PubkeySize)
	if err != nil {
		return nil, apperr.New(apperr.Decode, op, fmt.Errorf("mint: %w", err))
	}
	owner, err := dec.ReadNBytes(PubkeySize)
	if err != nil {
		return nil, apperr.New(apperr.Decode, op, fmt.Errorf("owner: %w", err))
	}
	amount, err := dec.ReadUint64(binary.LittleEndian)
	if err != nil {
		return nil, apperr.New(apperr.Decode, op, fmt.Errorf("amount: %w", err))
	}

	return &domain.TokenAccount{
		Mint:   solana.PublicKeyFromBytes(mint).String(),
		Owner:  solana.PublicKeyFromBytes(owner).String(),
		Amount: amount,
	}, nil
}
