package models

import (
	"time"

	"github.com/mohamedelshamy95/CocoERP-sub000/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LedgerRecord is one append-only stock movement. Rows are created by a
// connector, appended once and never mutated or deleted by this subsystem.
// Auto-increment id is insertion order; it is never a sort key for anything
// except replay.
type LedgerRecord struct {
	ID            int             `gorm:"primary_key" json:"id"`
	TxnId         string          `gorm:"size:32;uniqueIndex;not null" json:"txn_id"`
	TxnDate       time.Time       `gorm:"index;not null" json:"txn_date"`
	MovementType  MovementType    `gorm:"size:3;not null" json:"movement_type"`
	SourceType    SourceType      `gorm:"size:20;index;not null" json:"source_type"`
	SourceId      string          `gorm:"size:100;index" json:"source_id"`
	BatchCode     string          `gorm:"size:50;index" json:"batch_code"`
	Sku           string          `gorm:"size:100;index;not null" json:"sku"`
	ProductName   string          `gorm:"size:255" json:"product_name"`
	Variant       string          `gorm:"size:100" json:"variant"`
	Warehouse     string          `gorm:"size:50;index;not null" json:"warehouse"`
	QtyIn         decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"qty_in"`
	QtyOut        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"qty_out"`
	UnitCost      decimal.Decimal `gorm:"type:decimal(20,4)" json:"unit_cost"`
	TotalCost     decimal.Decimal `gorm:"type:decimal(20,4)" json:"total_cost"`
	Currency      string          `gorm:"size:3" json:"currency"`
	UnitPriceOrig decimal.Decimal `gorm:"type:decimal(20,4)" json:"unit_price_orig"`
	Notes         string          `gorm:"type:text" json:"notes"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// Validate enforces the record invariant: exactly one of QtyIn/QtyOut is
// positive, the other zero; SKU and warehouse non-empty. A violation rejects
// the whole record.
func (r *LedgerRecord) Validate() error {
	if r.Sku == "" {
		return &utils.ValidationError{Table: "ledger_records", LineId: r.SourceId, Reason: "missing sku"}
	}
	if r.Warehouse == "" {
		return &utils.ValidationError{Table: "ledger_records", LineId: r.SourceId, Reason: "missing warehouse"}
	}
	switch r.MovementType {
	case MovementTypeIn:
		if !r.QtyIn.IsPositive() || !r.QtyOut.IsZero() {
			return &utils.ValidationError{Table: "ledger_records", LineId: r.SourceId, Reason: "IN movement needs qty_in > 0 and qty_out = 0"}
		}
	case MovementTypeOut:
		if !r.QtyOut.IsPositive() || !r.QtyIn.IsZero() {
			return &utils.ValidationError{Table: "ledger_records", LineId: r.SourceId, Reason: "OUT movement needs qty_out > 0 and qty_in = 0"}
		}
	default:
		return &utils.ValidationError{Table: "ledger_records", LineId: r.SourceId, Reason: "unknown movement type"}
	}
	return nil
}

// Qty returns the positive side of the movement.
func (r *LedgerRecord) Qty() decimal.Decimal {
	if r.MovementType == MovementTypeOut {
		return r.QtyOut
	}
	return r.QtyIn
}

// AppendLedgerRecords validates all records first (fail fast, nothing
// written) and appends the batch in chunks. Chunking exists for host payload
// limits only; downstream fingerprints keep a rerun after a mid-chunk crash
// duplicate-free.
func AppendLedgerRecords(tx *gorm.DB, records []*LedgerRecord, batchSize int) error {
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	if len(records) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	return tx.CreateInBatches(records, batchSize).Error
}

// ScanLedger returns the full ledger in insertion order.
func ScanLedger(tx *gorm.DB) ([]*LedgerRecord, error) {
	var records []*LedgerRecord
	if err := tx.Order("id").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// ScanLedgerBySourceType returns one source type's rows in insertion order.
// This is the single scan the idempotency engine loads its posted sets from.
func ScanLedgerBySourceType(tx *gorm.DB, sourceType SourceType) ([]*LedgerRecord, error) {
	var records []*LedgerRecord
	if err := tx.Where("source_type = ?", sourceType).Order("id").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// PostedSaleQty is the already-posted outbound total for one sales aggregate
// key (order, sku, warehouse).
type PostedSaleQty struct {
	SourceId  string
	Sku       string
	Warehouse string
	Qty       decimal.Decimal
}

// SumPostedSalesOut aggregates posted SALE quantities per (order, sku,
// warehouse) so the sales connector can post only the positive remainder.
func SumPostedSalesOut(tx *gorm.DB) ([]*PostedSaleQty, error) {
	var rows []*PostedSaleQty
	err := tx.Raw(`
SELECT source_id, sku, warehouse, COALESCE(SUM(qty_out), 0) AS qty
FROM ledger_records
WHERE source_type = ?
GROUP BY source_id, sku, warehouse
`, SourceTypeSale).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
