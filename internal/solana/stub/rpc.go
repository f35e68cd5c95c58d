package stub

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"

	"collier/internal/apperr"
	"collier/internal/solana"
)

// ErrInjected is returned, wrapped as apperr.Network, by methods configured to fail.
var ErrInjected = errors.New("injected failure")

// RPCClient implements solana.RPCClient for testing.
// Program accounts are matched against memcmp and dataSize filters the way a node would.
type RPCClient struct {
	mu sync.Mutex

	Accounts        map[string]*solana.Account
	ProgramAccounts map[string][]solana.KeyedAccount
	LargestAccounts map[string][]solana.LargestAccount
	Blockhash       *solana.Blockhash
	Simulation      *solana.SimulationResult
	Signature       string

	// Failures makes the named method return the error; FailCount limits how many times (0 = always).
	Failures  map[string]error
	FailCount map[string]int

	// Calls counts invocations per method name.
	Calls map[string]int
	// Simulated and Sent record the transactions passed in.
	Simulated []string
	Sent      []string
}

// Compile-time interface check.
var _ solana.RPCClient = (*RPCClient)(nil)

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Accounts:        make(map[string]*solana.Account),
		ProgramAccounts: make(map[string][]solana.KeyedAccount),
		LargestAccounts: make(map[string][]solana.LargestAccount),
		Failures:        make(map[string]error),
		FailCount:       make(map[string]int),
		Calls:           make(map[string]int),
		Blockhash: &solana.Blockhash{
			Blockhash:            "EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N",
			LastValidBlockHeight: 100,
			Slot:                 1,
		},
		Simulation: &solana.SimulationResult{Slot: 1},
		Signature:  "5VERv8NMvzbJMEkV8xnrLkEaWRtSz9CosKDYjCJjBRnbJLgp8uirBgmQpjKhoR4tjF3ZpRzrFmBV6UjKdiSZkQUW",
	}
}

// call records the invocation and returns the injected failure, if any.
// Caller must hold c.mu.
func (c *RPCClient) call(method string) error {
	c.Calls[method]++

	err, ok := c.Failures[method]
	if !ok {
		return nil
	}
	if limit := c.FailCount[method]; limit > 0 {
		if c.Calls[method] > limit {
			return nil
		}
	}
	return apperr.New(apperr.Network, method, err)
}

// CallCount returns how many times method was invoked.
func (c *RPCClient) CallCount(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Calls[method]
}

// GetAccountInfo retrieves an account from the stub store.
func (c *RPCClient) GetAccountInfo(ctx context.Context, address string) (*solana.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.call("getAccountInfo"); err != nil {
		return nil, err
	}

	acct, ok := c.Accounts[address]
	if !ok {
		return nil, solana.ErrAccountNotFound
	}
	cp := *acct
	cp.Data = append([]byte(nil), acct.Data...)
	return &cp, nil
}

// GetProgramAccounts returns the program's accounts that satisfy all filters.
func (c *RPCClient) GetProgramAccounts(ctx context.Context, programID string, filters ...solana.Filter) ([]solana.KeyedAccount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.call("getProgramAccounts"); err != nil {
		return nil, err
	}

	var result []solana.KeyedAccount
	for _, ka := range c.ProgramAccounts[programID] {
		if matches(ka.Account.Data, filters) {
			result = append(result, ka)
		}
	}
	return result, nil
}

// GetTokenLargestAccounts returns the configured largest accounts for a mint.
func (c *RPCClient) GetTokenLargestAccounts(ctx context.Context, mint string) ([]solana.LargestAccount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.call("getTokenLargestAccounts"); err != nil {
		return nil, err
	}

	accounts := c.LargestAccounts[mint]
	out := make([]solana.LargestAccount, len(accounts))
	copy(out, accounts)
	return out, nil
}

// GetLatestBlockhash returns the configured blockhash.
func (c *RPCClient) GetLatestBlockhash(ctx context.Context) (*solana.Blockhash, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.call("getLatestBlockhash"); err != nil {
		return nil, err
	}

	bh := *c.Blockhash
	return &bh, nil
}

// SimulateTransaction records the transaction and returns the configured result.
func (c *RPCClient) SimulateTransaction(ctx context.Context, txBase64 string) (*solana.SimulationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.call("simulateTransaction"); err != nil {
		return nil, err
	}

	c.Simulated = append(c.Simulated, txBase64)
	sim := *c.Simulation
	return &sim, nil
}

// SendTransaction records the transaction and returns the configured signature.
func (c *RPCClient) SendTransaction(ctx context.Context, txBase64 string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.call("sendTransaction"); err != nil {
		return "", err
	}

	c.Sent = append(c.Sent, txBase64)
	return c.Signature, nil
}

// AddAccount adds an account to the stub store.
func (c *RPCClient) AddAccount(acct *solana.Account) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Accounts[acct.Address] = acct
}

// AddProgramAccount registers an account as owned by programID.
// The account is also reachable through GetAccountInfo.
func (c *RPCClient) AddProgramAccount(programID string, acct *solana.Account) {
	c.mu.Lock()
	defer c.mu.Unlock()

	acct.Owner = programID
	c.Accounts[acct.Address] = acct
	c.ProgramAccounts[programID] = append(c.ProgramAccounts[programID], solana.KeyedAccount{
		Address: acct.Address,
		Account: acct,
	})
	sort.SliceStable(c.ProgramAccounts[programID], func(i, j int) bool {
		return c.ProgramAccounts[programID][i].Address < c.ProgramAccounts[programID][j].Address
	})
}

// AddLargestAccounts sets the largest-account list for a mint.
func (c *RPCClient) AddLargestAccounts(mint string, accounts []solana.LargestAccount) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.LargestAccounts[mint] = accounts
}

// Fail makes method return ErrInjected for the next n calls (n <= 0 means every call).
func (c *RPCClient) Fail(method string, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Failures[method] = ErrInjected
	c.FailCount[method] = n + c.Calls[method]
	if n <= 0 {
		c.FailCount[method] = 0
	}
}

func matches(data []byte, filters []solana.Filter) bool {
	for _, f := range filters {
		switch f := f.(type) {
		case solana.MemcmpFilter:
			end := f.Offset + uint64(len(f.Bytes))
			if end > uint64(len(data)) || !bytes.Equal(data[f.Offset:end], f.Bytes) {
				return false
			}
		case solana.DataSizeFilter:
			if uint64(len(data)) != f.Size {
				return false
			}
		}
	}
	return true
}
