package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StockSnapshot is a derived per-warehouse on-hand/cost row. The projector
// fully replaces a group's rows on every run; nothing ever patches a row in
// place.
type StockSnapshot struct {
	ID             int             `gorm:"primary_key" json:"id"`
	SnapshotGroup  string          `gorm:"size:20;index;not null" json:"snapshot_group"`
	Sku            string          `gorm:"size:100;index;not null" json:"sku"`
	ProductName    string          `gorm:"size:255" json:"product_name"`
	Variant        string          `gorm:"size:100" json:"variant"`
	Warehouse      string          `gorm:"size:50;index;not null" json:"warehouse"`
	OnHand         decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"on_hand"`
	Allocated      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"allocated"`
	Available      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"available"`
	AvgCost        decimal.Decimal `gorm:"type:decimal(20,4)" json:"avg_cost"`
	TotalCost      decimal.Decimal `gorm:"type:decimal(20,4)" json:"total_cost"`
	LastTxnDate    time.Time       `json:"last_txn_date"`
	LastSourceType SourceType      `gorm:"size:20" json:"last_source_type"`
	LastSourceId   string          `gorm:"size:100" json:"last_source_id"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// ReplaceSnapshotGroup clears one group's snapshot rows and writes the new
// set. Clear-then-write keeps the projector naturally idempotent.
func ReplaceSnapshotGroup(tx *gorm.DB, group string, rows []*StockSnapshot, batchSize int) error {
	if err := tx.Where("snapshot_group = ?", group).Delete(&StockSnapshot{}).Error; err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	return tx.CreateInBatches(rows, batchSize).Error
}

// ListSnapshots returns snapshot rows, optionally filtered by group.
func ListSnapshots(tx *gorm.DB, group string) ([]*StockSnapshot, error) {
	var rows []*StockSnapshot
	dbCtx := tx.Order("warehouse, sku, variant")
	if group != "" {
		dbCtx = dbCtx.Where("snapshot_group = ?", group)
	}
	if err := dbCtx.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FirstWarehouseForSku is the warehouse-resolution fallback of last resort:
// the warehouse already holding that SKU in the current snapshot, first match.
func FirstWarehouseForSku(tx *gorm.DB, sku string) (string, error) {
	var row StockSnapshot
	err := tx.Where("sku = ?", sku).Order("id").First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return row.Warehouse, nil
}

// SnapshotAvgCost returns the current average cost for a SKU at a warehouse,
// if a snapshot row exists.
func SnapshotAvgCost(tx *gorm.DB, sku, warehouse string) (decimal.Decimal, bool, error) {
	var row StockSnapshot
	err := tx.Where("sku = ? AND warehouse = ?", sku, warehouse).Order("id").First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, err
	}
	return row.AvgCost, true, nil
}
