package memory

import (
	"context"
	"sort"
	"sync"

	"collier/internal/domain"
	"collier/internal/storage"
)

// OutcomeLog is an in-memory implementation of storage.OutcomeLog.
type OutcomeLog struct {
	mu       sync.RWMutex
	outcomes []*domain.RemediationOutcome
}

// NewOutcomeLog creates a new in-memory outcome log.
func NewOutcomeLog() *OutcomeLog {
	return &OutcomeLog{}
}

var _ storage.OutcomeLog = (*OutcomeLog)(nil)

// Append adds outcomes to the log.
func (l *OutcomeLog) Append(_ context.Context, outcomes []*domain.RemediationOutcome) error {
	for _, o := range outcomes {
		if o == nil || o.RunID == "" || o.MetadataAddress == "" {
			return storage.ErrInvalidInput
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, o := range outcomes {
		oc := *o
		oc.Logs = append([]string(nil), o.Logs...)
		l.outcomes = append(l.outcomes, &oc)
	}
	return nil
}

// ListByRun returns the outcomes of a run ordered by observation time.
func (l *OutcomeLog) ListByRun(_ context.Context, runID string) ([]*domain.RemediationOutcome, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []*domain.RemediationOutcome
	for _, o := range l.outcomes {
		if o.RunID == runID {
			oc := *o
			out = append(out, &oc)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ObservedAt.Before(out[j].ObservedAt)
	})
	return out, nil
}
