// Package domain defines the platform sync contract: each connected
// platform has a Syncer that pulls raw commerce data and normalizes it
// into metric batches, and a Service that orchestrates the runs.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	datapointdomain "github.com/pulseboard/pulseboard/internal/datapoint/domain"
	integrationdomain "github.com/pulseboard/pulseboard/internal/integration/domain"
)

// Window is the half-open [From, To) range a sync run covers.
type Window struct {
	From time.Time
	To   time.Time
}

// StockLevel is a per-product inventory reading taken during a sync.
type StockLevel struct {
	ProductID   string
	ProductName string
	Quantity    int
}

// Batch is one metric series produced by a syncer. Points carry value,
// date and metadata only; the orchestrator assigns IDs and ownership.
type Batch struct {
	Metric datapointdomain.MetricType
	Points []datapointdomain.DataPoint
}

type Result struct {
	Batches []Batch
	Stocks  []StockLevel
}

func (r *Result) TotalPoints() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, b := range r.Batches {
		n += len(b.Points)
	}
	return n
}

// Syncer pulls one platform. The token is the decrypted credential in
// whatever shape the connect adapter stored it.
type Syncer interface {
	Platform() integrationdomain.Platform
	Sync(ctx context.Context, integration *integrationdomain.Integration, token string, window Window) (*Result, error)
}

type RunSummary struct {
	Integrations int
	Points       int
	Failures     int
}

type Service interface {
	// SyncIntegration runs one integration end to end: decrypt, pull,
	// replace the metric windows, touch last_sync_at. Failures mark the
	// integration errored and raise an alert instead of returning silently.
	SyncIntegration(ctx context.Context, integrationID snowflake.ID) (int, error)

	// SyncAll runs every connected integration, continuing past failures.
	SyncAll(ctx context.Context) (RunSummary, error)
}
