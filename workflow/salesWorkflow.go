package workflow

import (
	"context"
	"strings"
	"time"

	"github.com/mohamedelshamy95/CocoERP-sub000/config"
	"github.com/mohamedelshamy95/CocoERP-sub000/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SalesConnector posts OUT movements for delivered order lines. Source rows
// may be duplicated upstream, so quantities are aggregated per
// (order, sku, warehouse) and only the positive remainder over what the
// ledger already holds for that key is posted.
type SalesConnector struct{}

func (c *SalesConnector) Name() string { return "sales" }

type salesAggregateKey struct {
	orderId   string
	sku       string
	warehouse string
}

type salesAggregate struct {
	qty           decimal.Decimal
	productName   string
	variant       string
	unitPrice     decimal.Decimal
	deliveredDate time.Time
}

func (c *SalesConnector) Sync(ctx context.Context, db *gorm.DB, logger *logrus.Logger, cfg config.InventoryConfig) (*SyncSummary, error) {
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
			// Remainder arithmetic is the primary guard; the fingerprint is
			// the safety net. No legacy scheme: one order can fulfill across
			// runs.
			ix, err := LoadPostedIndex(tx, models.SourceTypeSale, ContentFingerprint{})
			if err != nil {
				return err
			}

			var lines []*models.SalesOrderLine
			if err := tx.Order("id").Find(&lines).Error; err != nil {
				return err
			}

			logger.WithFields(logrus.Fields{
				"run_id":      summary.RunId,
				"source_rows": len(lines),
			}).Info("sale.sync.start")

			aggregates := make(map[salesAggregateKey]*salesAggregate)
			order := make([]salesAggregateKey, 0)
			for _, line := range lines {
				if !statusDelivered(cfg, line.OrderStatus) || line.DeliveredDate == nil {
					continue
				}
				if !line.Qty.IsPositive() {
					summary.Skipped++
					logger.WithFields(logrus.Fields{
						"run_id":   summary.RunId,
						"order_id": line.OrderId,
						"sku":      line.Sku,
					}).Warn("sale.sync.row_skipped: non-positive quantity")
					continue
				}
				warehouse, err := ResolveWarehouse(tx, cfg, line.Warehouse, "", line.Sku)
				if err != nil {
					summary.Skipped++
					logger.WithFields(logrus.Fields{
						"run_id":   summary.RunId,
						"order_id": line.OrderId,
						"sku":      line.Sku,
					}).Warn("sale.sync.row_skipped: " + err.Error())
					continue
				}

				key := salesAggregateKey{orderId: line.OrderId, sku: line.Sku, warehouse: warehouse}
				agg, ok := aggregates[key]
				if !ok {
					agg = &salesAggregate{}
					aggregates[key] = agg
					order = append(order, key)
				}
				agg.qty = agg.qty.Add(line.Qty)
				if agg.productName == "" {
					agg.productName = line.ProductName
				}
				if agg.variant == "" {
					agg.variant = line.Variant
				}
				if !line.UnitPrice.IsZero() {
					agg.unitPrice = line.UnitPrice
				}
				if line.DeliveredDate.After(agg.deliveredDate) {
					agg.deliveredDate = *line.DeliveredDate
				}
			}

			postedRows, err := models.SumPostedSalesOut(tx)
			if err != nil {
				return err
			}
			posted := make(map[salesAggregateKey]decimal.Decimal, len(postedRows))
			for _, row := range postedRows {
				posted[salesAggregateKey{orderId: row.SourceId, sku: row.Sku, warehouse: row.Warehouse}] = row.Qty
			}

			accepted := make([]*models.LedgerRecord, 0, len(order))
			for _, key := range order {
				agg := aggregates[key]
				remainder := agg.qty.Sub(posted[key])
				if !remainder.IsPositive() {
					// Fully covered by prior postings: duplicate suppression,
					// not a validation skip.
					summary.Duplicates++
					logger.WithFields(logrus.Fields{
						"run_id":    summary.RunId,
						"order_id":  key.orderId,
						"sku":       key.sku,
						"warehouse": key.warehouse,
					}).Debug("sale.sync.already_posted")
					continue
				}

				unitCost, note, err := resolveSalesUnitCost(tx, key.sku, key.warehouse)
				if err != nil {
					return err
				}

				record := &models.LedgerRecord{
					TxnDate:       agg.deliveredDate,
					MovementType:  models.MovementTypeOut,
					SourceType:    models.SourceTypeSale,
					SourceId:      key.orderId,
					Sku:           key.sku,
					ProductName:   agg.productName,
					Variant:       agg.variant,
					Warehouse:     key.warehouse,
					QtyIn:         decimal.Zero,
					QtyOut:        remainder,
					UnitCost:      unitCost,
					TotalCost:     remainder.Mul(unitCost),
					Currency:      cfg.DefaultCurrency,
					UnitPriceOrig: agg.unitPrice,
					Notes:         note,
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
						"order_id": key.orderId,
						"strategy": strategy,
					}).Debug("sale.sync.duplicate_suppressed")
					continue
				}
				if err := record.Validate(); err != nil {
					summary.Skipped++
					logger.WithFields(logrus.Fields{
						"run_id":   summary.RunId,
						"order_id": key.orderId,
					}).Warn("sale.sync.row_skipped: " + err.Error())
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
	}).Info("sale.sync.end")
	return summary, nil
}

// statusDelivered checks the delivered vocabulary: exact matches first, then
// case-insensitive substrings (transliterated variants included).
func statusDelivered(cfg config.InventoryConfig, status string) bool {
	s := strings.ToLower(strings.TrimSpace(status))
	if s == "" {
		return false
	}
	for _, exact := range cfg.DeliveredExact {
		if s == strings.ToLower(exact) {
			return true
		}
	}
	for _, loose := range cfg.DeliveredLoose {
		if strings.Contains(s, strings.ToLower(loose)) {
			return true
		}
	}
	return false
}

// resolveSalesUnitCost: destination snapshot average, falling back to the
// catalog default cost, else zero with a note.
func resolveSalesUnitCost(tx *gorm.DB, sku, warehouse string) (decimal.Decimal, string, error) {
	cost, ok, err := models.SnapshotAvgCost(tx, sku, warehouse)
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
	return decimal.Zero, "unit cost unresolved: no snapshot or catalog cost", nil
}
