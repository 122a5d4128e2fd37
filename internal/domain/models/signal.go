package models

import "time"

// Signal is a trading signal travelling through the pipeline.
// Consumers may attach Processed/ProcessedAt but never change ID.
type Signal struct {
	ID          string                 `json:"id"`
	Symbol      string                 `json:"symbol"`
	Interval    string                 `json:"interval"`
	Strategy    string                 `json:"strategy"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
	CreatedAt   time.Time              `json:"createdAt"`
	Processed   bool                   `json:"processed,omitempty"`
	ProcessedAt *time.Time             `json:"processedAt,omitempty"`
}

// MessageID implements broker.Identified.
func (s Signal) MessageID() string { return s.ID }

// MarkProcessed returns a copy with the derived processing fields set.
func (s Signal) MarkProcessed(at time.Time) Signal {
	s.Processed = true
	s.ProcessedAt = &at
	return s
}

// SignalRequest is the inbound webhook body.
type SignalRequest struct {
	Symbol   string                 `json:"symbol" validate:"required,max=32"`
	Interval string                 `json:"interval" default:"1h" validate:"required,max=16"`
	Strategy string                 `json:"strategy" validate:"required,max=64"`
	Payload  map[string]interface{} `json:"payload"`
}

// SignalAccepted is returned once a signal was handed to the broker.
type SignalAccepted struct {
	SignalID string `json:"signalId"`
}
