// Package metaplextest builds raw account payloads for tests.
package metaplextest

import (
	"bytes"
	"encoding/binary"

	"github.com/gagliardetto/solana-go"

	"collier/internal/domain"
	"collier/internal/metaplex"
)

// MetadataAccountSize is the allocated size of a MetadataV1 account.
const MetadataAccountSize = 679

// MetadataAccount lays out rec as an on-chain MetadataV1 account.
// Strings are NUL-padded to their full capacity; nil Creators writes the None flag.
// Addresses must be valid base58 public keys.
func MetadataAccount(rec *domain.MetadataRecord) []byte {
	var buf bytes.Buffer
	buf.WriteByte(metaplex.KeyMetadataV1)
	putKey(&buf, rec.UpdateAuthority)
	putKey(&buf, rec.MintAddress)
	putPadded(&buf, rec.Name, metaplex.MaxNameLength)
	putPadded(&buf, rec.Symbol, metaplex.MaxSymbolLength)
	putPadded(&buf, rec.URI, metaplex.MaxURILength)
	binary.Write(&buf, binary.LittleEndian, rec.SellerFeeBasisPoints)

	if rec.Creators == nil {
		buf.WriteByte(0)
	} else {
		buf.WriteByte(1)
		binary.Write(&buf, binary.LittleEndian, uint32(len(rec.Creators)))
		for _, c := range rec.Creators {
			putKey(&buf, c.Address)
			putBool(&buf, c.Verified)
			buf.WriteByte(c.Share)
		}
	}

	putBool(&buf, rec.PrimarySaleHappened)
	putBool(&buf, rec.IsMutable)

	if buf.Len() < MetadataAccountSize {
		buf.Write(make([]byte, MetadataAccountSize-buf.Len()))
	}
	return buf.Bytes()
}

// TokenAccount lays out an initialized SPL token account.
func TokenAccount(mint, owner string, amount uint64) []byte {
	data := make([]byte, metaplex.TokenAccountSize)
	m := solana.MustPublicKeyFromBase58(mint)
	o := solana.MustPublicKeyFromBase58(owner)
	copy(data[0:32], m[:])
	copy(data[32:64], o[:])
	binary.LittleEndian.PutUint64(data[64:72], amount)
	data[metaplex.TokenAccountStateOffset] = 1
	return data
}

// Key returns a deterministic base58 public key filled with b.
func Key(b byte) string {
	return solana.PublicKeyFromBytes(bytes.Repeat([]byte{b}, 32)).String()
}

// NewWallet returns a fresh random keypair.
func NewWallet() solana.PrivateKey {
	return solana.NewWallet().PrivateKey
}

func putKey(buf *bytes.Buffer, address string) {
	pk := solana.MustPublicKeyFromBase58(address)
	buf.Write(pk[:])
}

func putPadded(buf *bytes.Buffer, s string, capacity int) {
	if len(s) > capacity {
		s = s[:capacity]
	}
	binary.Write(buf, binary.LittleEndian, uint32(capacity))
	buf.WriteString(s)
	buf.Write(make([]byte, capacity-len(s)))
}

func putBool(buf *bytes.Buffer, v bool) {
	if v {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
}
