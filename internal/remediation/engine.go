// Package remediation rewrites metadata records whose creator list is malformed.
package remediation

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"collier/internal/apperr"
	"collier/internal/domain"
	"collier/internal/metaplex"
	"collier/internal/observability"
	"collier/internal/retry"
	rpc "collier/internal/solana"
	"collier/internal/storage"
)

const (
	// DefaultExpectedCreators is the creator count of a record eligible for remediation.
	DefaultExpectedCreators = 4
	// DefaultConfirmTimeout bounds the wait for a sent transaction to be confirmed.
	DefaultConfirmTimeout = 60 * time.Second
)

// RetryFunc receives a progress signal after every failed fetch attempt.
type RetryFunc func(metadataAddress string, attempt int, err error)

// Options configures an Engine.
type Options struct {
	// ExpectedCreators is the exact creator count a record must have. Default 4.
	ExpectedCreators int
	// RetryPolicy bounds fetch attempts per record. Default retry.DefaultPolicy().
	RetryPolicy retry.Policy
	// OnRetry is called after every failed fetch attempt.
	OnRetry RetryFunc
	// Fetcher reads metadata accounts under RetryPolicy. Default the engine client.
	// Pass a single-attempt client here when the engine client retries on its own.
	Fetcher rpc.RPCClient
	// Send submits the transaction after a successful simulation.
	Send bool
	// WS confirms sent transactions when set.
	WS             rpc.WSClient
	ConfirmTimeout time.Duration
	// OutcomeLog receives every outcome of a run when set.
	OutcomeLog storage.OutcomeLog
	// RunID tags the outcomes of a run. Default a random UUID.
	RunID  string
	Logger zerolog.Logger
}

// RunStats counts outcomes per status.
type RunStats struct {
	Done     int
	Skipped  int
	Failed   int
	Duration time.Duration
}

// Engine drives every stored metadata record through
// fetching, validating, building, signing and simulating.
type Engine struct {
	client rpc.RPCClient
	store  storage.Store
	signer *Signer
	opts   Options
}

// NewEngine creates an engine that signs with signer.
func NewEngine(client rpc.RPCClient, store storage.Store, signer *Signer, opts Options) *Engine {
	if opts.ExpectedCreators <= 0 {
		opts.ExpectedCreators = DefaultExpectedCreators
	}
	if opts.RetryPolicy.MaxAttempts == 0 {
		opts.RetryPolicy = retry.DefaultPolicy()
	}
	if opts.ConfirmTimeout <= 0 {
		opts.ConfirmTimeout = DefaultConfirmTimeout
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.Fetcher == nil {
		opts.Fetcher = client
	}
	return &Engine{client: client, store: store, signer: signer, opts: opts}
}

// RunID returns the identifier attached to this engine's outcomes.
func (e *Engine) RunID() string {
	return e.opts.RunID
}

// Run remediates every stored metadata address in order.
// Per-record failures become outcomes; only store failures and cancellation end the run early.
func (e *Engine) Run(ctx context.Context) ([]*domain.RemediationOutcome, RunStats, error) {
	start := time.Now()
	var stats RunStats

	addresses, err := e.store.ListMetadataAddresses(ctx)
	if err != nil {
		return nil, stats, apperr.New(apperr.Store, "list metadata addresses", err)
	}

	log := e.opts.Logger.With().Str("run_id", e.opts.RunID).Logger()
	log.Info().
		Int("records", len(addresses)).
		Str("operator", e.signer.PublicKey().String()).
		Bool("send", e.opts.Send).
		Msg("remediation started")

	outcomes := make([]*domain.RemediationOutcome, 0, len(addresses))
	var runErr error
	for _, address := range addresses {
		outcome, err := e.Remediate(ctx, address)
		if err != nil {
			runErr = err
			break
		}
		outcomes = append(outcomes, outcome)

		switch outcome.Status {
		case domain.RemediationDone:
			stats.Done++
		case domain.RemediationSkipped:
			stats.Skipped++
		case domain.RemediationFailed:
			stats.Failed++
		}
	}

	if e.opts.OutcomeLog != nil && len(outcomes) > 0 {
		// Record what was observed even when the run was interrupted.
		if err := e.opts.OutcomeLog.Append(context.WithoutCancel(ctx), outcomes); err != nil {
			return outcomes, stats, errors.Join(runErr, apperr.New(apperr.Store, "append outcomes", err))
		}
	}

	stats.Duration = time.Since(start)
	if runErr != nil {
		return outcomes, stats, runErr
	}

	log.Info().
		Int("done", stats.Done).
		Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).
		Dur("duration", stats.Duration).
		Msg("remediation complete")

	return outcomes, stats, nil
}

// Remediate runs one record through the state machine.
// The error is non-nil only when the context is done.
//
// A record is Skipped when it cannot be decoded, when its creator count differs
// from ExpectedCreators, when its update authority is not the operator, when its
// first creator already is the operator, or when the rebuilt creator shares
// do not total 100.
func (e *Engine) Remediate(ctx context.Context, address string) (*domain.RemediationOutcome, error) {
	outcome := &domain.RemediationOutcome{
		RunID:           e.opts.RunID,
		MetadataAddress: address,
	}

	// Fetching
	acct, attempts, err := e.fetch(ctx, address)
	outcome.Attempts = attempts
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return e.finish(outcome, domain.RemediationFailed, fmt.Sprintf("fetch: %v", err)), nil
	}

	// Validating
	rec, err := metaplex.DecodeMetadata(address, acct.Data)
	if err != nil {
		return e.finish(outcome, domain.RemediationSkipped, err.Error()), nil
	}
	outcome.MintAddress = rec.MintAddress

	operator := e.signer.PublicKey()
	if err := e.validate(rec, operator.String()); err != nil {
		return e.finish(outcome, domain.RemediationSkipped, err.Error()), nil
	}

	// Building
	data, err := e.build(rec, operator.String())
	if err != nil {
		return e.finish(outcome, domain.RemediationSkipped, err.Error()), nil
	}

	// Signing
	txBase64, err := e.sign(ctx, address, data)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return e.finish(outcome, domain.RemediationFailed, fmt.Sprintf("sign: %v", err)), nil
	}

	// Simulating
	sim, err := e.client.SimulateTransaction(ctx, txBase64)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return e.finish(outcome, domain.RemediationFailed, fmt.Sprintf("simulate: %v", err)), nil
	}
	outcome.Logs = sim.Logs
	outcome.UnitsConsumed = sim.UnitsConsumed
	if sim.Failed() {
		outcome.SimulationError = marshalTxError(sim.Err)
		return e.finish(outcome, domain.RemediationFailed, "simulation failed: "+outcome.SimulationError), nil
	}

	if !e.opts.Send {
		return e.finish(outcome, domain.RemediationDone, ""), nil
	}

	sig, err := e.client.SendTransaction(ctx, txBase64)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return e.finish(outcome, domain.RemediationFailed, fmt.Sprintf("send: %v", err)), nil
	}
	outcome.Signature = sig

	if e.opts.WS != nil {
		if err := e.confirm(ctx, sig); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return e.finish(outcome, domain.RemediationFailed, err.Error()), nil
		}
	}

	return e.finish(outcome, domain.RemediationDone, ""), nil
}

// fetch reads the account under the retry policy. A missing account is not retried.
func (e *Engine) fetch(ctx context.Context, address string) (*rpc.Account, int, error) {
	var acct *rpc.Account
	attempts, err := e.opts.RetryPolicy.Do(ctx, func(ctx context.Context) error {
		a, err := e.opts.Fetcher.GetAccountInfo(ctx, address)
		if err != nil {
			if errors.Is(err, rpc.ErrAccountNotFound) {
				return retry.Permanent(err)
			}
			return err
		}
		acct = a
		return nil
	}, func(attempt int, err error) {
		observability.RecordRemediationRetry()
		e.opts.Logger.Warn().
			Err(err).
			Str("metadata", address).
			Int("attempt", attempt).
			Int("max_attempts", e.opts.RetryPolicy.MaxAttempts).
			Msg("fetch attempt failed")
		if e.opts.OnRetry != nil {
			e.opts.OnRetry(address, attempt, err)
		}
	})
	return acct, attempts, err
}

func (e *Engine) validate(rec *domain.MetadataRecord, operator string) error {
	const op = "validate"

	if len(rec.Creators) != e.opts.ExpectedCreators {
		return apperr.Newf(apperr.Validation, op, "record has %d creators, want %d", len(rec.Creators), e.opts.ExpectedCreators)
	}
	if rec.UpdateAuthority != operator {
		return apperr.Newf(apperr.Validation, op, "update authority %s is not the operator %s", rec.UpdateAuthority, operator)
	}
	if rec.Creators[0].Address == operator {
		return apperr.Newf(apperr.Validation, op, "first creator is already the operator")
	}
	return nil
}

// build keeps the first creator and appends the operator with the full share.
func (e *Engine) build(rec *domain.MetadataRecord, operator string) ([]byte, error) {
	creators := []domain.Creator{
		rec.Creators[0],
		{Address: operator, Verified: true, Share: domain.CreatorShareTotal},
	}
	if err := domain.ValidateCreators(creators); err != nil {
		return nil, apperr.New(apperr.Validation, "build creators", err)
	}

	rebuilt := *rec
	rebuilt.Creators = creators

	return metaplex.EncodeUpdateMetadataData(metaplex.UpdateMetadataArgs{Data: &rebuilt})
}

// sign builds the transaction against a fresh blockhash and returns it base64 encoded.
func (e *Engine) sign(ctx context.Context, address string, data []byte) (string, error) {
	metadataKey, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return "", fmt.Errorf("metadata address: %w", err)
	}

	bh, err := e.client.GetLatestBlockhash(ctx)
	if err != nil {
		return "", err
	}
	hash, err := solana.HashFromBase58(bh.Blockhash)
	if err != nil {
		return "", fmt.Errorf("blockhash %q: %w", bh.Blockhash, err)
	}

	operator := e.signer.PublicKey()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{metaplex.NewUpdateMetadataInstruction(metadataKey, operator, data)},
		hash,
		solana.TransactionPayer(operator),
	)
	if err != nil {
		return "", fmt.Errorf("new transaction: %w", err)
	}

	if err := e.signer.Sign(tx); err != nil {
		return "", err
	}

	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("marshal transaction: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// confirm waits for the signature notification of a sent transaction.
func (e *Engine) confirm(ctx context.Context, sig string) error {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, e.opts.ConfirmTimeout)
	defer cancel()

	ch, err := e.opts.WS.SignatureSubscribe(ctx, sig)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", sig, err)
	}

	select {
	case n, ok := <-ch:
		if !ok {
			return fmt.Errorf("confirm %s: subscription closed", sig)
		}
		if n.Err != nil {
			return fmt.Errorf("transaction %s failed: %s", sig, marshalTxError(n.Err))
		}
		observability.RecordSignatureConfirmed(time.Since(start))
		e.opts.Logger.Info().Str("signature", sig).Int64("slot", n.Slot).Msg("transaction confirmed")
		return nil
	case <-ctx.Done():
		unsubCtx, unsubCancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer unsubCancel()
		if err := e.opts.WS.SignatureUnsubscribe(unsubCtx, sig); err != nil {
			e.opts.Logger.Debug().Err(err).Str("signature", sig).Msg("signature unsubscribe failed")
		}
		return fmt.Errorf("confirm %s: %w", sig, ctx.Err())
	}
}

func (e *Engine) finish(outcome *domain.RemediationOutcome, status domain.RemediationStatus, reason string) *domain.RemediationOutcome {
	outcome.Status = status
	outcome.Reason = reason
	outcome.ObservedAt = time.Now().UTC()

	observability.RecordRemediationOutcome(status.String())

	event := e.opts.Logger.Info()
	if status == domain.RemediationFailed {
		event = e.opts.Logger.Warn()
	}
	event.
		Str("metadata", outcome.MetadataAddress).
		Str("mint", outcome.MintAddress).
		Str("status", status.String()).
		Int("attempts", outcome.Attempts).
		Str("reason", reason).
		Msg("remediation outcome")

	return outcome
}

// marshalTxError renders a transaction error object as JSON.
func marshalTxError(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
