package domain

import "time"

// RemediationStatus is the terminal state of one remediation attempt.
type RemediationStatus string

const (
	RemediationDone    RemediationStatus = "done"
	RemediationSkipped RemediationStatus = "skipped"
	RemediationFailed  RemediationStatus = "failed"
)

// String returns the string representation of RemediationStatus.
func (s RemediationStatus) String() string {
	return string(s)
}

// IsValid checks if the status is a valid value.
func (s RemediationStatus) IsValid() bool {
	return s == RemediationDone || s == RemediationSkipped || s == RemediationFailed
}

// RemediationOutcome records what happened to one metadata record during a rescue run.
// Corresponds to remediation_outcomes table in ClickHouse.
type RemediationOutcome struct {
	RunID           string
	MetadataAddress string
	MintAddress     string            // empty when the record could not be decoded
	Status          RemediationStatus
	Attempts        int               // fetch attempts used
	Reason          string            // why the record was skipped or failed
	Signature       string            // set when the transaction was sent
	SimulationError string            // JSON of the simulation error, if any
	Logs            []string          // simulation logs
	UnitsConsumed   uint64
	ObservedAt      time.Time
}
