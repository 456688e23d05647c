package domain

import "time"

// DegradationReason explains why a source contributed zero candidates.
type DegradationReason string

const (
	DegradationTimeout     DegradationReason = "per_source_timeout"
	DegradationUnavailable DegradationReason = "source_unavailable"
	DegradationEmpty       DegradationReason = "empty_result"
)

// DegradationEvent records a partial degradation: one source contributed
// nothing while the request as a whole still succeeded.
type DegradationEvent struct {
	RequestID  string            `json:"request_id"`
	Source     Source            `json:"source"`
	Reason     DegradationReason `json:"reason"`
	Route      Route             `json:"route"`
	OccurredAt time.Time         `json:"occurred_at"`
}
