package domain

// HolderRecord is the current sole owner of a supply-1 token.
// Corresponds to the holders table; replaced on every resolution pass.
type HolderRecord struct {
	MintAddress   string // PRIMARY KEY
	HolderAddress string // wallet owning the token account
}

// TokenAccount is a decoded SPL token account.
type TokenAccount struct {
	Mint   string
	Owner  string
	Amount uint64 // raw amount, no decimals applied
}
