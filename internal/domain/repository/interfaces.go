package repository

import (
	"context"
	"errors"

	"SignalFleet/internal/domain/models"
)

// ErrReportNotFound is returned before the first scheduled run has finished.
var ErrReportNotFound = errors.New("report not found")

// EventChannel is a durable publish path to the message broker.
// Implementations must be safe for concurrent Publish and reject publishes while disconnected.
type EventChannel interface {
	Connect(ctx context.Context) error
	Reconnect(ctx context.Context) error
	Publish(ctx context.Context, topic, routingKey string, payload interface{}) error
	Connected() bool
	Driver() string
	Close() error
}

// ReportStore keeps the last fleet report produced by the scheduler.
type ReportStore interface {
	SaveFleetReport(ctx context.Context, report *models.FleetReport) error
	LatestFleetReport(ctx context.Context) (*models.FleetReport, error)
}

// IdempotencyStore remembers message ids already handled.
type IdempotencyStore interface {
	// Seen reports whether id was already marked.
	Seen(ctx context.Context, id string) (bool, error)
	// MarkSeen returns true the first time id is marked.
	MarkSeen(ctx context.Context, id string) (bool, error)
}

// Metrics defines the metrics recording interface.
type Metrics interface {
	RecordCheck(service, check string, ok bool, seconds float64)
	RecordFleetRun(healthy bool, seconds float64)
	RecordDataflow(success bool, seconds float64)
	RecordStage(stage string, ok bool)
	RecordScript(name string, ok bool)
	RecordSignal(stage, result string)
	RecordError(kind string)
}
