package workflow

import (
	"context"
	"time"

	"github.com/mohamedelshamy95/CocoERP-sub000/config"
	"github.com/mohamedelshamy95/CocoERP-sub000/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// QCConnector posts IN movements for inspected units arriving at a warehouse.
// A line is only eligible once the shipment carrying it is marked arrived;
// Closed counts as post-arrival so archiving a shipment never strands lines.
// Idempotency keys on the upstream line's immutable identifier, with the
// legacy correlation-id scheme kept for postings created before fingerprints.
type QCConnector struct{}

func (c *QCConnector) Name() string { return "receiving" }

// postArrivalStatuses are the shipment states whose QC lines are eligible.
var postArrivalStatuses = []models.ShipmentStatus{
	models.ShipmentStatusArrived,
	models.ShipmentStatusClosed,
}

func (c *QCConnector) Sync(ctx context.Context, db *gorm.DB, logger *logrus.Logger, cfg config.InventoryConfig) (*SyncSummary, error) {
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
			ix, err := LoadPostedIndex(tx, models.SourceTypeReceiving, ContentFingerprint{}, LegacySourceKey{})
			if err != nil {
				return err
			}

			arrived := tx.Model(&models.Shipment{}).Select("shipment_id").
				Where("status IN ?", postArrivalStatuses)
			var lines []*models.QCInspection
			if err := tx.Where("shipment_id IN (?)", arrived).Order("id").Find(&lines).Error; err != nil {
				return err
			}

			logger.WithFields(logrus.Fields{
				"run_id":      summary.RunId,
				"source_rows": len(lines),
			}).Info("qc.sync.start")

			accepted := make([]*models.LedgerRecord, 0, len(lines))
			for _, line := range lines {
				qty := line.QtyReceived.Sub(line.QtyDefective)
				if line.QtyOK != nil {
					qty = *line.QtyOK
				}
				if qty.IsNegative() {
					qty = decimal.Zero
				}
				if !qty.IsPositive() {
					summary.Skipped++
					logger.WithFields(logrus.Fields{
						"run_id":  summary.RunId,
						"line_id": line.LineId,
						"sku":     line.Sku,
					}).Warn("qc.sync.row_skipped: non-positive accepted quantity")
					continue
				}

				warehouse, err := ResolveWarehouse(tx, cfg, line.Warehouse, "", line.Sku)
				if err != nil {
					summary.Skipped++
					logger.WithFields(logrus.Fields{
						"run_id":  summary.RunId,
						"line_id": line.LineId,
						"sku":     line.Sku,
					}).Warn("qc.sync.row_skipped: " + err.Error())
					continue
				}

				unitCost, currency, costOk, err := models.LookupPurchaseCost(tx, line.BatchCode, line.OrderId, line.Sku)
				if err != nil {
					return err
				}
				notes := ""
				if !costOk {
					// Quantity certainty outweighs cost certainty: post at zero, flag it.
					notes = "unit cost unresolved: no purchase line for batch or order+sku"
				}
				if currency == "" {
					currency = cfg.DefaultCurrency
				}

				record := &models.LedgerRecord{
					TxnDate:      line.QCDate,
					MovementType: models.MovementTypeIn,
					SourceType:   models.SourceTypeReceiving,
					SourceId:     line.LineId,
					BatchCode:    line.BatchCode,
					Sku:          line.Sku,
					ProductName:  line.ProductName,
					Variant:      line.Variant,
					Warehouse:    warehouse,
					QtyIn:        qty,
					QtyOut:       decimal.Zero,
					UnitCost:     unitCost,
					TotalCost:    qty.Mul(unitCost),
					Currency:     currency,
					Notes:        notes,
				}
				record.TxnId = Fingerprint(record)

				if ix.SeenThisRun(record) {
					summary.Duplicates++
					continue
				}
				if strategy, dup := ix.IsDuplicate(record); dup {
					summary.Duplicates++
					logger.WithFields(logrus.Fields{
						"run_id":   summary.RunId,
						"line_id":  line.LineId,
						"strategy": strategy,
					}).Debug("qc.sync.duplicate_suppressed")
					continue
				}
				if err := record.Validate(); err != nil {
					summary.Skipped++
					logger.WithFields(logrus.Fields{
						"run_id":  summary.RunId,
						"line_id": line.LineId,
					}).Warn("qc.sync.row_skipped: " + err.Error())
					continue
				}

				accepted = append(accepted, record)
				ix.MarkPosted(record)
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
	}).Info("qc.sync.end")
	return summary, nil
}
