package solana

import (
	"context"
	"errors"
)

// ErrAccountNotFound is returned when the node reports no account at an address.
var ErrAccountNotFound = errors.New("account not found")

// RPCClient defines the Solana JSON-RPC surface used by the miners and the
// remediation engine.
type RPCClient interface {
	// GetAccountInfo retrieves a single account. Returns ErrAccountNotFound if absent.
	GetAccountInfo(ctx context.Context, address string) (*Account, error)

	// GetProgramAccounts retrieves all accounts owned by a program that match every filter.
	GetProgramAccounts(ctx context.Context, programID string, filters ...Filter) ([]KeyedAccount, error)

	// GetTokenLargestAccounts retrieves the largest token accounts for a mint.
	GetTokenLargestAccounts(ctx context.Context, mint string) ([]LargestAccount, error)

	// GetLatestBlockhash retrieves a recent blockhash used to sequence a transaction.
	GetLatestBlockhash(ctx context.Context) (*Blockhash, error)

	// SimulateTransaction dry-runs a base64 encoded signed transaction.
	SimulateTransaction(ctx context.Context, txBase64 string) (*SimulationResult, error)

	// SendTransaction submits a base64 encoded signed transaction and returns its signature.
	SendTransaction(ctx context.Context, txBase64 string) (string, error)
}
