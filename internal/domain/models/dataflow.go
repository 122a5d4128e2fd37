package models

import "time"

// Dataflow stages polled after the synthetic signal is published.
const (
	StageAI       = "ai"
	StageNews     = "news"
	StageDelivery = "delivery"
)

// CorrelationRecord tracks one synthetic signal through the downstream stages.
// It lives for a single dataflow test.
type CorrelationRecord struct {
	SignalID  string            `json:"signalId"`
	Published bool              `json:"published"`
	Stages    map[string]bool   `json:"stages"`
	Reasons   map[string]string `json:"reasons,omitempty"`
	Deadline  time.Time         `json:"deadline"`
	Elapsed   time.Duration     `json:"elapsed"`
}

// Success requires the publish and every stage to have completed.
func (r CorrelationRecord) Success() bool {
	if !r.Published || len(r.Stages) == 0 {
		return false
	}
	for _, done := range r.Stages {
		if !done {
			return false
		}
	}
	return true
}
