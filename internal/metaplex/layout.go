// Package metaplex decodes and encodes Metaplex Token Metadata and SPL token accounts.
package metaplex

// ProgramID is the Metaplex Token Metadata program.
const ProgramID = "metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s"

// KeyMetadataV1 is the account discriminator of a MetadataV1 account.
const KeyMetadataV1 = 4

// Field sizes of the MetadataV1 account, in schema order.
const (
	KeySize          = 1
	PubkeySize       = 32
	StringPrefixSize = 4
	MaxNameLength    = 32
	MaxSymbolLength  = 10
	MaxURILength     = 200
	FeeSize          = 2
	OptionFlagSize   = 1
	VecPrefixSize    = 4
	CreatorSize      = PubkeySize + 1 + 1 // address, verified, share
)

// MaxCreators is the largest creator list the program accepts.
const MaxCreators = 5

// CreatorsOffset is the byte offset of the first creator address in a
// MetadataV1 account whose strings are padded to full capacity.
const CreatorsOffset = KeySize +
	PubkeySize + // update authority
	PubkeySize + // mint
	StringPrefixSize + MaxNameLength +
	StringPrefixSize + MaxSymbolLength +
	StringPrefixSize + MaxURILength +
	FeeSize +
	OptionFlagSize +
	VecPrefixSize

// CreatorOffset returns the offset of the creator address at position i.
func CreatorOffset(i int) uint64 {
	return uint64(CreatorsOffset + i*CreatorSize)
}

// SPL token account layout.
const (
	TokenAccountSize        = 165
	TokenAccountStateOffset = 108
	TokenStateUninitialized = 0
)

// Instruction discriminators of the Token Metadata program.
const (
	InstructionUpdateMetadataAccount = 1
)
