package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mohamedelshamy95/CocoERP-sub000/config"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Connector reconciles one upstream source table into the ledger. Each Sync
// run reads its source, builds candidate movements, filters duplicates and
// appends the survivors under the posting lock, all inside one transaction.
type Connector interface {
	Name() string
	Sync(ctx context.Context, db *gorm.DB, logger *logrus.Logger, cfg config.InventoryConfig) (*SyncSummary, error)
}

// SyncSummary is the per-run outcome surfaced to the caller. Duplicate
// suppression is a normal outcome, not an error.
type SyncSummary struct {
	RunId      string    `json:"run_id"`
	Connector  string    `json:"connector"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Posted     int       `json:"posted"`
	Duplicates int       `json:"duplicates"`
	Skipped    int       `json:"skipped"`
	Errors     int       `json:"errors"`
}

func newSyncSummary(connector string) *SyncSummary {
	return &SyncSummary{
		RunId:     uuid.NewString(),
		Connector: connector,
		StartedAt: time.Now().UTC(),
	}
}

// Connectors is the fixed registry. Order is the order RunAll executes in:
// receiving before transfers before sales, so same-run cost lookups see the
// freshest upstream state first.
func Connectors() []Connector {
	return []Connector{
		&QCConnector{},
		&TransferConnector{},
		&SalesConnector{},
	}
}

func ConnectorByName(name string) (Connector, bool) {
	for _, c := range Connectors() {
		if c.Name() == name {
			return c, true
		}
	}
	return nil, false
}

// RunAll runs every registered connector. A failed run does not stop the
// others; the first failure is returned after all runs finish.
func RunAll(ctx context.Context, db *gorm.DB, logger *logrus.Logger, cfg config.InventoryConfig) ([]*SyncSummary, error) {
	summaries := make([]*SyncSummary, 0, len(Connectors()))
	var failed int
	var firstErr error
	for _, c := range Connectors() {
		summary, err := c.Sync(ctx, db, logger, cfg)
		if err != nil {
			config.LogError(logger, "registry.go", "RunAll", c.Name(), nil, err)
			failed++
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		summaries = append(summaries, summary)
	}
	if failed > 0 {
		return summaries, fmt.Errorf("%d connector run(s) failed: %w", failed, firstErr)
	}
	return summaries, nil
}
