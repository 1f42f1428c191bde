package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/mohamedelshamy95/CocoERP-sub000/config"
	"github.com/mohamedelshamy95/CocoERP-sub000/models"
	"github.com/mohamedelshamy95/CocoERP-sub000/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// TransferConnector posts inter-warehouse movements by delta sync: each line
// carries a cumulative requested quantity and a persisted qty_synced counter;
// only the positive difference is posted, as a linked OUT at the origin and
// an IN at the fixed destination at landed cost.
//
// Ordering: ledger rows and the qty_synced write-back commit in one
// transaction. On a host without that atomicity the ledger rows land first;
// the content fingerprint then suppresses the retry and the counter is
// repaired on the next run, so the counter is a convenience and the
// fingerprint is the safety net.
type TransferConnector struct{}

func (c *TransferConnector) Name() string { return "transfer" }

func (c *TransferConnector) Sync(ctx context.Context, db *gorm.DB, logger *logrus.Logger, cfg config.InventoryConfig) (*SyncSummary, error) {
	summary := newSyncSummary(c.Name())

	// Lock on a pinned session, transaction on the same session. Release then
	// happens on a live connection whether the transaction commits or rolls
	// back.
	err := db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		if err := AcquireLedgerPostingLock(conn, LedgerDocName); err != nil {
			return err
		}
		defer ReleaseLedgerPostingLock(conn, LedgerDocName)

		return conn.Transaction(func(tx *gorm.DB) error {
			// Delta sync is the primary guard here; the fingerprint is the
			// safety net. The legacy correlation-id scheme must NOT be
			// consulted: one line legitimately posts several deltas over its
			// lifetime.
			ix, err := LoadPostedIndex(tx, models.SourceTypeTransfer, ContentFingerprint{})
			if err != nil {
				return err
			}

			var lines []*models.TransferLine
			if err := tx.Order("id").Find(&lines).Error; err != nil {
				return err
			}

			logger.WithFields(logrus.Fields{
				"run_id":      summary.RunId,
				"source_rows": len(lines),
			}).Info("transfer.sync.start")

			extraPerUnit := shipmentExtraPerUnit(lines)

			accepted := make([]*models.LedgerRecord, 0, len(lines)*2)
			for _, line := range lines {
				delta := line.Qty.Sub(line.QtySynced)
				if delta.IsNegative() {
					summary.Errors++
					intErr := &utils.IntegrityError{LineId: line.LineId, Requested: line.Qty, Synced: line.QtySynced}
					config.LogError(logger, "transferWorkflow.go", "Sync", "NegativeDelta", line.LineId, intErr)
					continue
				}
				if delta.IsZero() {
					continue
				}

				origin, err := ResolveWarehouse(tx, cfg, line.OriginWarehouse, line.CarrierLabel, line.Sku)
				if err != nil {
					summary.Skipped++
					logger.WithFields(logrus.Fields{
						"run_id":  summary.RunId,
						"line_id": line.LineId,
						"sku":     line.Sku,
					}).Warn("transfer.sync.row_skipped: " + err.Error())
					continue
				}

				originCost, costNote, err := resolveOriginUnitCost(tx, line.Sku, origin)
				if err != nil {
					return err
				}
				landedCost := originCost.Add(extraPerUnit[line.ShipmentId])

				sourceId := line.Discriminator()
				outDate := line.ShipDate
				inDate := outDate
				if line.ArrivalDate != nil {
					inDate = *line.ArrivalDate
				}

				out := &models.LedgerRecord{
					TxnDate:      outDate,
					MovementType: models.MovementTypeOut,
					SourceType:   models.SourceTypeTransfer,
					SourceId:     sourceId,
					Sku:          line.Sku,
					ProductName:  line.ProductName,
					Variant:      line.Variant,
					Warehouse:    origin,
					QtyIn:        decimal.Zero,
					QtyOut:       delta,
					UnitCost:     originCost,
					TotalCost:    delta.Mul(originCost),
					Currency:     cfg.DefaultCurrency,
					Notes:        costNote,
				}
				in := &models.LedgerRecord{
					TxnDate:      inDate,
					MovementType: models.MovementTypeIn,
					SourceType:   models.SourceTypeTransfer,
					SourceId:     sourceId,
					Sku:          line.Sku,
					ProductName:  line.ProductName,
					Variant:      line.Variant,
					Warehouse:    cfg.TransferDestination,
					QtyIn:        delta,
					QtyOut:       decimal.Zero,
					UnitCost:     landedCost,
					TotalCost:    delta.Mul(landedCost),
					Currency:     cfg.DefaultCurrency,
					Notes:        fmt.Sprintf("landed cost: origin %s + extras %s/unit", originCost, extraPerUnit[line.ShipmentId]),
				}

				lineOk := true
				for _, record := range []*models.LedgerRecord{out, in} {
					record.TxnId = Fingerprint(record)
					if ix.SeenThisRun(record) {
						summary.Duplicates++
						continue
					}
					if strategy, dup := ix.IsDuplicate(record); dup {
						// Normal after a crash between append and counter
						// write-back: the rows landed, the counter did not.
						// Converge below.
						summary.Duplicates++
						logger.WithFields(logrus.Fields{
							"run_id":   summary.RunId,
							"line_id":  line.LineId,
							"strategy": strategy,
						}).Debug("transfer.sync.duplicate_suppressed")
						continue
					}
					if err := record.Validate(); err != nil {
						summary.Skipped++
						lineOk = false
						logger.WithFields(logrus.Fields{
							"run_id":  summary.RunId,
							"line_id": line.LineId,
						}).Warn("transfer.sync.row_skipped: " + err.Error())
						continue
					}
					accepted = append(accepted, record)
					ix.MarkPosted(record)
				}

				if lineOk {
					if err := models.MarkTransferLineSynced(tx, line.LineId, line.Qty); err != nil {
						return err
					}
				}
			}

			summary.Posted = len(accepted)
			return models.AppendLedgerRecords(tx, accepted, cfg.AppendBatchSize)
		})
	})
	if err != nil {
		return nil, err
	}

	summary.FinishedAt = time.Now().UTC()
	logger.WithFields(logrus.Fields{
		"run_id":     summary.RunId,
		"posted":     summary.Posted,
		"duplicates": summary.Duplicates,
		"skipped":    summary.Skipped,
		"errors":     summary.Errors,
	}).Info("transfer.sync.end")
	return summary, nil
}

// shipmentExtraPerUnit spreads shipment-level extras (freight, customs, other
// fees) over the shipment's total requested quantity.
func shipmentExtraPerUnit(lines []*models.TransferLine) map[string]decimal.Decimal {
	type totals struct {
		extras decimal.Decimal
		qty    decimal.Decimal
	}
	byShipment := make(map[string]*totals)
	for _, line := range lines {
		t, ok := byShipment[line.ShipmentId]
		if !ok {
			t = &totals{}
			byShipment[line.ShipmentId] = t
		}
		t.extras = t.extras.Add(line.UnitShipCost.Mul(line.Qty)).Add(line.Customs).Add(line.OtherFees)
		t.qty = t.qty.Add(line.Qty)
	}
	perUnit := make(map[string]decimal.Decimal, len(byShipment))
	for shipmentId, t := range byShipment {
		if t.qty.IsPositive() {
			perUnit[shipmentId] = t.extras.Div(t.qty)
		} else {
			perUnit[shipmentId] = decimal.Zero
		}
	}
	return perUnit
}

// resolveOriginUnitCost: snapshot average at the origin warehouse, falling
// back to the catalog default cost, else zero with a note.
func resolveOriginUnitCost(tx *gorm.DB, sku, origin string) (decimal.Decimal, string, error) {
	cost, ok, err := models.SnapshotAvgCost(tx, sku, origin)
	if err != nil {
		return decimal.Zero, "", err
	}
	if ok {
		return cost, "", nil
	}
	cost, _, ok, err = models.ProductDefaultCost(tx, sku)
	if err != nil {
		return decimal.Zero, "", err
	}
	if ok {
		return cost, "", nil
	}
	return decimal.Zero, "origin unit cost unresolved: no snapshot or catalog cost", nil
}
