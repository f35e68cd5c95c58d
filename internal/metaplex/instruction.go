package metaplex

import (
	"github.com/gagliardetto/solana-go"
)

// NewUpdateMetadataInstruction builds an UpdateMetadataAccount instruction.
// Accounts: metadata (writable), update authority (signer).
func NewUpdateMetadataInstruction(metadata, updateAuthority solana.PublicKey, data []byte) solana.Instruction {
	accounts := solana.AccountMetaSlice{
		{PublicKey: metadata, IsSigner: false, IsWritable: true},
		{PublicKey: updateAuthority, IsSigner: true, IsWritable: false},
	}

	return solana.NewInstruction(
		solana.MustPublicKeyFromBase58(ProgramID),
		accounts,
		data,
	)
}
