package reporting

import (
	"time"

	"collier/internal/domain"
)

// Report summarizes one remediation run.
type Report struct {
	GeneratedAt time.Time
	RunID       string

	Summary Summary

	// Outcomes in processing order.
	Outcomes []OutcomeRow
}

// Summary counts outcomes per status.
type Summary struct {
	Total   int
	Done    int
	Skipped int
	Failed  int
}

// OutcomeRow represents one row in the outcomes table.
type OutcomeRow struct {
	MetadataAddress string
	MintAddress     string
	Status          string
	Attempts        int
	Signature       string
	Reason          string
}

// NewReport builds a report from the outcomes of run runID.
func NewReport(runID string, outcomes []*domain.RemediationOutcome, generatedAt time.Time) *Report {
	r := &Report{
		GeneratedAt: generatedAt,
		RunID:       runID,
		Outcomes:    make([]OutcomeRow, 0, len(outcomes)),
	}

	for _, o := range outcomes {
		r.Summary.Total++
		switch o.Status {
		case domain.RemediationDone:
			r.Summary.Done++
		case domain.RemediationSkipped:
			r.Summary.Skipped++
		case domain.RemediationFailed:
			r.Summary.Failed++
		}

		r.Outcomes = append(r.Outcomes, OutcomeRow{
			MetadataAddress: o.MetadataAddress,
			MintAddress:     o.MintAddress,
			Status:          o.Status.String(),
			Attempts:        o.Attempts,
			Signature:       o.Signature,
			Reason:          o.Reason,
		})
	}

	return r
}
