package solana

import "github.com/mr-tron/base58"

// Account is a raw on-chain account.
type Account struct {
	Address    string
	Owner      string // owning program
	Lamports   uint64
	Data       []byte // decoded from base64
	Executable bool
	RentEpoch  uint64
}

// KeyedAccount pairs an account with its address, as returned by getProgramAccounts.
type KeyedAccount struct {
	Address string
	Account *Account
}

// LargestAccount from getTokenLargestAccounts.
type LargestAccount struct {
	Address  string
	Amount   string // raw amount, decimal string
	Decimals uint8
}

// Blockhash is the checkpoint handle for transaction sequencing.
type Blockhash struct {
	Blockhash            string
	LastValidBlockHeight uint64
	Slot                 int64
}

// SimulationResult from simulateTransaction.
type SimulationResult struct {
	Slot          int64
	Err           interface{} // nil when the simulated execution succeeded
	Logs          []string
	UnitsConsumed uint64
}

// Failed reports whether the simulated execution returned an error.
func (r *SimulationResult) Failed() bool {
	return r != nil && r.Err != nil
}

// Filter is a getProgramAccounts filter.
type Filter interface {
	rpcFilter() map[string]interface{}
}

// MemcmpFilter matches accounts whose data at Offset equals Bytes.
type MemcmpFilter struct {
	Offset uint64
	Bytes  []byte
}

func (f MemcmpFilter) rpcFilter() map[string]interface{} {
	return map[string]interface{}{
		"memcmp": map[string]interface{}{
			"offset": f.Offset,
			"bytes":  base58.Encode(f.Bytes),
		},
	}
}

// DataSizeFilter matches accounts whose data length equals Size.
type DataSizeFilter struct {
	Size uint64
}

func (f DataSizeFilter) rpcFilter() map[string]interface{} {
	return map[string]interface{}{
		"dataSize": f.Size,
	}
}
