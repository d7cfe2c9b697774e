package job

import (
	"fmt"
	"slices"

	"github.com/ranamudassir31/webpulse-ai/internal/domain"
)

var validTransitions = map[domain.JobStatus][]domain.JobStatus{
	domain.JobStatusQueued: {
		domain.JobStatusCrawling,
		domain.JobStatusFailed,
		domain.JobStatusCancelled,
	},
	domain.JobStatusCrawling: {
		domain.JobStatusAggregating, // frontier exhausted
		domain.JobStatusFailed,      // failure-rate abort
		domain.JobStatusCancelled,
	},
	domain.JobStatusAggregating: {
		domain.JobStatusRendering,
		domain.JobStatusFailed,
		domain.JobStatusCancelled,
	},
	domain.JobStatusRendering: {
		domain.JobStatusCompleted,
		domain.JobStatusFailed, // document build failed
		domain.JobStatusCancelled,
	},
	domain.JobStatusCompleted: {},
	domain.JobStatusFailed:    {},
	domain.JobStatusCancelled: {},
}

// ValidateStateTransition checks if a state transition is valid.
func ValidateStateTransition(from, to domain.JobStatus) error {
	allowed, exists := validTransitions[from]
	if !exists {
		return fmt.Errorf("%w: unknown source state %s", ErrInvalidTransition, from)
	}
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("%w: from %s to %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// CanCancel reports whether a job in state s may still be cancelled.
func CanCancel(s domain.JobStatus) bool {
	return !s.IsTerminal()
}
