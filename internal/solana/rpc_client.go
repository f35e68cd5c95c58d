package solana

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"collier/internal/apperr"
	"collier/internal/observability"
	"collier/internal/retry"
)

// Default configuration values.
const (
	DefaultTimeout     = 500 * time.Second
	DefaultRateLimit   = 10.0
	DefaultRateBurst   = 5
	DefaultCommitment  = "confirmed"
	DefaultEndpointURL = "https://api.mainnet-beta.solana.com"
)

const (
	encodingBase64     = "base64"
	encodingBase64Zstd = "base64+zstd"
)

// HTTPClient implements RPCClient using HTTP JSON-RPC 2.0.
type HTTPClient struct {
	endpoint   string
	client     *http.Client
	policy     retry.Policy
	limiter    *rate.Limiter
	commitment string
	zstd       bool
	logger     zerolog.Logger
	requestID  atomic.Uint64

	zstdOnce sync.Once
	zstdDec  *zstd.Decoder
	zstdErr  error
}

// Compile-time interface check.
var _ RPCClient = (*HTTPClient)(nil)

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithRetryPolicy sets the retry policy for transient failures.
func WithRetryPolicy(p retry.Policy) ClientOption {
	return func(c *HTTPClient) {
		c.policy = p
	}
}

// WithRateLimit caps the request rate. A zero rps disables throttling.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *HTTPClient) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithCommitment sets the commitment level for reads and simulation.
func WithCommitment(commitment string) ClientOption {
	return func(c *HTTPClient) {
		c.commitment = commitment
	}
}

// WithZstd toggles base64+zstd account encoding for getProgramAccounts.
func WithZstd(enabled bool) ClientOption {
	return func(c *HTTPClient) {
		c.zstd = enabled
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *HTTPClient) {
		c.logger = logger
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a new Solana RPC HTTP client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:   endpoint,
		client:     &http.Client{Timeout: DefaultTimeout},
		policy:     retry.DefaultPolicy(),
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateBurst),
		commitment: DefaultCommitment,
		zstd:       true,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC 2.0 error object returned by the node.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs a JSON-RPC call, retrying transport failures under the client policy.
// Errors are reported as apperr.Network.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	reqID := c.requestID.Add(1)
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return apperr.New(apperr.Network, method, fmt.Errorf("marshal request: %w", err))
	}

	start := time.Now()
	defer func() {
		observability.RecordRPCLatency(method, time.Since(start).Seconds())
	}()

	_, err = c.policy.Do(ctx, func(ctx context.Context) error {
		return c.attempt(ctx, body, result)
	}, func(attempt int, err error) {
		observability.RecordRPCError(method)
		c.logger.Debug().
			Str("method", method).
			Int("attempt", attempt).
			Err(err).
			Msg("rpc attempt failed")
	})
	if err != nil {
		return apperr.New(apperr.Network, method, err)
	}
	return nil
}

// attempt performs a single HTTP round trip.
func (c *HTTPClient) attempt(ctx context.Context, body []byte, result interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return retry.Permanent(fmt.Errorf("rate limiter: %w", err))
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}

	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	// Handle rate limiting
	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("rate limited (429)")
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	if rpcResp.Error != nil {
		// RPC errors are not retried
		return retry.Permanent(rpcResp.Error)
	}

	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return retry.Permanent(fmt.Errorf("unmarshal result: %w", err))
		}
	}

	return nil
}

// GetAccountInfo retrieves account info by public key.
// Returns ErrAccountNotFound if the account does not exist.
func (c *HTTPClient) GetAccountInfo(ctx context.Context, address string) (*Account, error) {
	params := []interface{}{
		address,
		map[string]interface{}{
			"encoding":   encodingBase64,
			"commitment": c.commitment,
		},
	}

	var result getAccountInfoResult
	if err := c.call(ctx, "getAccountInfo", params, &result); err != nil {
		return nil, err
	}

	if result.Value == nil {
		return nil, ErrAccountNotFound
	}

	return c.toAccount(address, result.Value)
}

type getAccountInfoResult struct {
	Value *rpcAccount `json:"value"`
}

type rpcAccount struct {
	Lamports   uint64   `json:"lamports"`
	Owner      string   `json:"owner"`
	Data       []string `json:"data"` // [encoded_data, encoding]
	Executable bool     `json:"executable"`
	RentEpoch  uint64   `json:"rentEpoch"`
}

// toAccount decodes the account data payload.
func (c *HTTPClient) toAccount(address string, v *rpcAccount) (*Account, error) {
	acct := &Account{
		Address:    address,
		Owner:      v.Owner,
		Lamports:   v.Lamports,
		Executable: v.Executable,
		RentEpoch:  v.RentEpoch,
	}

	if len(v.Data) == 0 {
		return acct, nil
	}

	encoding := encodingBase64
	if len(v.Data) >= 2 {
		encoding = v.Data[1]
	}

	data, err := c.decodeData(v.Data[0], encoding)
	if err != nil {
		return nil, apperr.New(apperr.Network, "decode account data", fmt.Errorf("account %s: %w", address, err))
	}
	acct.Data = data
	return acct, nil
}

func (c *HTTPClient) decodeData(encoded, encoding string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}

	switch encoding {
	case encodingBase64:
		return raw, nil
	case encodingBase64Zstd:
		c.zstdOnce.Do(func() {
			c.zstdDec, c.zstdErr = zstd.NewReader(nil)
		})
		if c.zstdErr != nil {
			return nil, fmt.Errorf("create zstd decoder: %w", c.zstdErr)
		}
		out, err := c.zstdDec.DecodeAll(raw, nil)
		if err != nil {
			return nil, fmt.Errorf("decode zstd: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", encoding)
	}
}

// GetProgramAccounts retrieves accounts owned by programID matching all filters.
func (c *HTTPClient) GetProgramAccounts(ctx context.Context, programID string, filters ...Filter) ([]KeyedAccount, error) {
	encoding := encodingBase64
	if c.zstd {
		encoding = encodingBase64Zstd
	}

	config := map[string]interface{}{
		"encoding":   encoding,
		"commitment": c.commitment,
	}
	if len(filters) > 0 {
		rpcFilters := make([]map[string]interface{}, 0, len(filters))
		for _, f := range filters {
			rpcFilters = append(rpcFilters, f.rpcFilter())
		}
		config["filters"] = rpcFilters
	}

	var result []getProgramAccountsResult
	if err := c.call(ctx, "getProgramAccounts", []interface{}{programID, config}, &result); err != nil {
		return nil, err
	}

	accounts := make([]KeyedAccount, 0, len(result))
	for _, r := range result {
		if r.Account == nil {
			continue
		}
		acct, err := c.toAccount(r.Pubkey, r.Account)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, KeyedAccount{Address: r.Pubkey, Account: acct})
	}

	return accounts, nil
}

type getProgramAccountsResult struct {
	Pubkey  string      `json:"pubkey"`
	Account *rpcAccount `json:"account"`
}

// GetTokenLargestAccounts retrieves the 20 largest token accounts of a mint.
func (c *HTTPClient) GetTokenLargestAccounts(ctx context.Context, mint string) ([]LargestAccount, error) {
	params := []interface{}{
		mint,
		map[string]interface{}{
			"commitment": c.commitment,
		},
	}

	var result getTokenLargestAccountsResult
	if err := c.call(ctx, "getTokenLargestAccounts", params, &result); err != nil {
		return nil, err
	}

	accounts := make([]LargestAccount, len(result.Value))
	for i, v := range result.Value {
		accounts[i] = LargestAccount{
			Address:  v.Address,
			Amount:   v.Amount,
			Decimals: v.Decimals,
		}
	}
	return accounts, nil
}

type getTokenLargestAccountsResult struct {
	Value []struct {
		Address  string `json:"address"`
		Amount   string `json:"amount"`
		Decimals uint8  `json:"decimals"`
	} `json:"value"`
}

// GetLatestBlockhash retrieves the latest blockhash.
func (c *HTTPClient) GetLatestBlockhash(ctx context.Context) (*Blockhash, error) {
	params := []interface{}{
		map[string]interface{}{
			"commitment": c.commitment,
		},
	}

	var result getLatestBlockhashResult
	if err := c.call(ctx, "getLatestBlockhash", params, &result); err != nil {
		return nil, err
	}

	if result.Value.Blockhash == "" {
		return nil, apperr.Newf(apperr.Network, "getLatestBlockhash", "empty blockhash in response")
	}

	return &Blockhash{
		Blockhash:            result.Value.Blockhash,
		LastValidBlockHeight: result.Value.LastValidBlockHeight,
		Slot:                 result.Context.Slot,
	}, nil
}

type rpcContext struct {
	Slot int64 `json:"slot"`
}

type getLatestBlockhashResult struct {
	Context rpcContext `json:"context"`
	Value   struct {
		Blockhash            string `json:"blockhash"`
		LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
	} `json:"value"`
}

// SimulateTransaction dry-runs a signed transaction. Signatures are verified.
func (c *HTTPClient) SimulateTransaction(ctx context.Context, txBase64 string) (*SimulationResult, error) {
	params := []interface{}{
		txBase64,
		map[string]interface{}{
			"encoding":   encodingBase64,
			"sigVerify":  true,
			"commitment": c.commitment,
		},
	}

	var result simulateTransactionResult
	if err := c.call(ctx, "simulateTransaction", params, &result); err != nil {
		return nil, err
	}

	sim := &SimulationResult{
		Slot: result.Context.Slot,
		Err:  result.Value.Err,
		Logs: result.Value.Logs,
	}
	if result.Value.UnitsConsumed != nil {
		sim.UnitsConsumed = *result.Value.UnitsConsumed
	}
	return sim, nil
}

type simulateTransactionResult struct {
	Context rpcContext `json:"context"`
	Value   struct {
		Err           interface{} `json:"err"`
		Logs          []string    `json:"logs"`
		UnitsConsumed *uint64     `json:"unitsConsumed"`
	} `json:"value"`
}

// SendTransaction submits a signed transaction with preflight checks enabled.
func (c *HTTPClient) SendTransaction(ctx context.Context, txBase64 string) (string, error) {
	params := []interface{}{
		txBase64,
		map[string]interface{}{
			"encoding":            encodingBase64,
			"preflightCommitment": c.commitment,
		},
	}

	var signature string
	if err := c.call(ctx, "sendTransaction", params, &signature); err != nil {
		return "", err
	}
	return signature, nil
}
