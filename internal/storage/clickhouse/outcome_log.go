package clickhouse

import (
	"context"
	"fmt"

	"collier/internal/domain"
	"collier/internal/storage"
)

// OutcomeLog implements storage.OutcomeLog using ClickHouse.
type OutcomeLog struct {
	conn *Conn
}

// NewOutcomeLog creates a new OutcomeLog.
func NewOutcomeLog(conn *Conn) *OutcomeLog {
	return &OutcomeLog{conn: conn}
}

// Compile-time interface check.
var _ storage.OutcomeLog = (*OutcomeLog)(nil)

// Append adds outcomes in one batch.
func (l *OutcomeLog) Append(ctx context.Context, outcomes []*domain.RemediationOutcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	for _, o := range outcomes {
		if o == nil || o.RunID == "" || o.MetadataAddress == "" {
			return storage.ErrInvalidInput
		}
	}

	batch, err := l.conn.PrepareBatch(ctx, `
		INSERT INTO remediation_outcomes (
			run_id, metadata_address, mint_address, status, attempts, reason,
			signature, simulation_error, logs, units_consumed, observed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, o := range outcomes {
		logs := o.Logs
		if logs == nil {
			logs = []string{}
		}
		err := batch.Append(
			o.RunID,
			o.MetadataAddress,
			o.MintAddress,
			string(o.Status),
			uint32(o.Attempts),
			o.Reason,
			o.Signature,
			o.SimulationError,
			logs,
			o.UnitsConsumed,
			o.ObservedAt,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// ListByRun returns the outcomes of a run ordered by observation time.
func (l *OutcomeLog) ListByRun(ctx context.Context, runID string) ([]*domain.RemediationOutcome, error) {
	query := `
		SELECT run_id, metadata_address, mint_address, status, attempts, reason,
			signature, simulation_error, logs, units_consumed, observed_at
		FROM remediation_outcomes
		WHERE run_id = ?
		ORDER BY observed_at, metadata_address
	`

	rows, err := l.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var out []*domain.RemediationOutcome
	for rows.Next() {
		var o domain.RemediationOutcome
		var status string
		var attempts uint32

		if err := rows.Scan(
			&o.RunID,
			&o.MetadataAddress,
			&o.MintAddress,
			&status,
			&attempts,
			&o.Reason,
			&o.Signature,
			&o.SimulationError,
			&o.Logs,
			&o.UnitsConsumed,
			&o.ObservedAt,
		); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}

		o.Status = domain.RemediationStatus(status)
		o.Attempts = int(attempts)
		out = append(out, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return out, nil
}
