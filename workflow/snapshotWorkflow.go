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

// RebuildSnapshots replays the full ledger in insertion order and rewrites
// one snapshot partition per warehouse group (clear-then-write), so the
// projector is idempotent and safe to re-run at any time.
//
// Cost policy: moving weighted average, applied uniformly to every group.
// Inbound movements add qty x unitCost to the cost basis and re-derive the
// average; outbound movements consume the basis at the current average and
// never re-derive history.
func RebuildSnapshots(ctx context.Context, db *gorm.DB, logger *logrus.Logger, cfg config.InventoryConfig) error {
	started := time.Now().UTC()

	// Lock on a pinned session, transaction on the same session. Release then
	// happens on a live connection whether the transaction commits or rolls
	// back.
	err := db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		if err := AcquireLedgerPostingLock(conn, LedgerDocName); err != nil {
			return err
		}
		defer ReleaseLedgerPostingLock(conn, LedgerDocName)

		return conn.Transaction(func(tx *gorm.DB) error {
			records, err := models.ScanLedger(tx)
			if err != nil {
				return err
			}

			logger.WithFields(logrus.Fields{
				"ledger_rows": len(records),
			}).Info("snapshot.rebuild.start")

			type snapshotKey struct {
				sku       string
				warehouse string
				variant   string
			}
			type accum struct {
				onHand      decimal.Decimal
				totalCost   decimal.Decimal
				avgCost     decimal.Decimal
				productName string
				lastDate    time.Time
				lastSource  models.SourceType
				lastId      string
			}

			accums := make(map[string]map[snapshotKey]*accum, len(cfg.Groups))
			keyOrder := make(map[string][]snapshotKey, len(cfg.Groups))
			ungrouped := 0

			for _, r := range records {
				group, ok := GroupForWarehouse(cfg, r.Warehouse)
				if !ok {
					ungrouped++
					continue
				}
				byKey := accums[group]
				if byKey == nil {
					byKey = make(map[snapshotKey]*accum)
					accums[group] = byKey
				}
				key := snapshotKey{sku: r.Sku, warehouse: r.Warehouse, variant: r.Variant}
				a := byKey[key]
				if a == nil {
					a = &accum{}
					byKey[key] = a
					keyOrder[group] = append(keyOrder[group], key)
				}

				if r.MovementType == models.MovementTypeIn {
					a.totalCost = a.totalCost.Add(r.QtyIn.Mul(r.UnitCost))
					a.onHand = a.onHand.Add(r.QtyIn)
					if a.onHand.IsPositive() {
						a.avgCost = a.totalCost.Div(a.onHand)
					}
				} else {
					a.onHand = a.onHand.Sub(r.QtyOut)
					a.totalCost = a.totalCost.Sub(r.QtyOut.Mul(a.avgCost))
					if !a.onHand.IsPositive() {
						// Basis never goes below the goods still on hand.
						a.totalCost = decimal.Zero
					}
				}
				if a.productName == "" {
					a.productName = r.ProductName
				}
				a.lastDate = r.TxnDate
				a.lastSource = r.SourceType
				a.lastId = r.SourceId
			}

			if ungrouped > 0 {
				logger.WithFields(logrus.Fields{
					"rows": ungrouped,
				}).Warn("snapshot.rebuild.ungrouped_warehouse_rows")
			}

			for _, g := range cfg.Groups {
				rows := make([]*models.StockSnapshot, 0, len(keyOrder[g.Name]))
				for _, key := range keyOrder[g.Name] {
					a := accums[g.Name][key]
					// Oversold (negative) rows always surface; only exact
					// zeroes drop.
					if !cfg.KeepZeroRows && a.onHand.IsZero() && a.totalCost.IsZero() {
						continue
					}
					rows = append(rows, &models.StockSnapshot{
						SnapshotGroup:  g.Name,
						Sku:            key.sku,
						ProductName:    a.productName,
						Variant:        key.variant,
						Warehouse:      key.warehouse,
						OnHand:         a.onHand,
						Allocated:      decimal.Zero,
						Available:      a.onHand,
						AvgCost:        a.avgCost,
						TotalCost:      a.totalCost,
						LastTxnDate:    a.lastDate,
						LastSourceType: a.lastSource,
						LastSourceId:   a.lastId,
					})
				}
				if err := models.ReplaceSnapshotGroup(tx, g.Name, rows, cfg.AppendBatchSize); err != nil {
					return err
				}
				logger.WithFields(logrus.Fields{
					"group": g.Name,
					"rows":  len(rows),
				}).Info("snapshot.rebuild.group_written")
			}
			return nil
		})
	})
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"took": time.Since(started).String(),
	}).Info("snapshot.rebuild.end")
	return nil
}
