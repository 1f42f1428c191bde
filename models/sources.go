package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Source tables mirror the upstream, user-edited tables the connectors read.
// They are re-imported wholesale (clear-then-write) from the tabular boundary;
// the only field this subsystem ever writes back is TransferLine.QtySynced.

// Shipment carries the arrival status that makes QC lines eligible.
type Shipment struct {
	ID         int            `gorm:"primary_key" json:"id"`
	ShipmentId string         `gorm:"size:50;uniqueIndex;not null" json:"shipment_id" validate:"required"`
	Status     ShipmentStatus `gorm:"size:20;not null" json:"status"`
	ArrivedAt  *time.Time     `json:"arrived_at"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// QCInspection is one inspected unit line arriving at a warehouse. LineId is
// the upstream line's own immutable identifier; row position shifts under
// sorting and filtering and is never part of any key.
type QCInspection struct {
	ID           int              `gorm:"primary_key" json:"id"`
	LineId       string           `gorm:"size:50;uniqueIndex;not null" json:"line_id" validate:"required"`
	OrderId      string           `gorm:"size:50;index" json:"order_id"`
	ShipmentId   string           `gorm:"size:50;index;not null" json:"shipment_id" validate:"required"`
	Sku          string           `gorm:"size:100;index;not null" json:"sku" validate:"required"`
	BatchCode    string           `gorm:"size:50;index" json:"batch_code"`
	ProductName  string           `gorm:"size:255" json:"product_name"`
	Variant      string           `gorm:"size:100" json:"variant"`
	QtyReceived  decimal.Decimal  `gorm:"type:decimal(20,4);not null" json:"qty_received"`
	QtyDefective decimal.Decimal  `gorm:"type:decimal(20,4);not null" json:"qty_defective"`
	QtyOK        *decimal.Decimal `gorm:"type:decimal(20,4)" json:"qty_ok"`
	Warehouse    string           `gorm:"size:50" json:"warehouse"`
	QCDate       time.Time        `json:"qc_date"`
	CreatedAt    time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

// TransferLine is one inter-warehouse transfer source row. Qty is the
// cumulative requested quantity; QtySynced is the cumulative quantity this
// subsystem has posted, written back after each positive delta.
type TransferLine struct {
	ID              int             `gorm:"primary_key" json:"id"`
	LineId          string          `gorm:"size:50;uniqueIndex;not null" json:"line_id" validate:"required"`
	ShipmentId      string          `gorm:"size:50;index;not null" json:"shipment_id" validate:"required"`
	BoxId           string          `gorm:"size:50" json:"box_id"`
	Sku             string          `gorm:"size:100;index;not null" json:"sku" validate:"required"`
	ProductName     string          `gorm:"size:255" json:"product_name"`
	Variant         string          `gorm:"size:100" json:"variant"`
	Qty             decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"qty"`
	QtySynced       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"qty_synced"`
	ShipDate        time.Time       `json:"ship_date"`
	ArrivalDate     *time.Time      `json:"arrival_date"`
	UnitShipCost    decimal.Decimal `gorm:"type:decimal(20,4)" json:"unit_ship_cost"`
	Customs         decimal.Decimal `gorm:"type:decimal(20,4)" json:"customs"`
	OtherFees       decimal.Decimal `gorm:"type:decimal(20,4)" json:"other_fees"`
	TotalCost       decimal.Decimal `gorm:"type:decimal(20,4)" json:"total_cost"`
	OriginWarehouse string          `gorm:"size:50" json:"origin_warehouse"`
	CarrierLabel    string          `gorm:"size:100" json:"carrier_label"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// Discriminator is the per-line idempotency discriminator. Box identifier
// when present (repeated SKUs ship in separate physical boxes), stable line
// id otherwise.
func (l *TransferLine) Discriminator() string {
	if l.BoxId != "" {
		return l.ShipmentId + "#" + l.BoxId
	}
	return l.ShipmentId + "#" + l.LineId
}

// MarkTransferLineSynced persists qty_synced = qty so the next run computes
// delta 0. Must run in the same transaction as the ledger append.
func MarkTransferLineSynced(tx *gorm.DB, lineId string, qty decimal.Decimal) error {
	return tx.Model(&TransferLine{}).Where("line_id = ?", lineId).
		Update("qty_synced", qty).Error
}

// SalesOrderLine is one sales order line. Upstream exports may repeat a line;
// the connector aggregates per (order, sku, warehouse) before posting.
type SalesOrderLine struct {
	ID            int             `gorm:"primary_key" json:"id"`
	OrderId       string          `gorm:"size:50;index;not null" json:"order_id" validate:"required"`
	Sku           string          `gorm:"size:100;index;not null" json:"sku" validate:"required"`
	ProductName   string          `gorm:"size:255" json:"product_name"`
	Variant       string          `gorm:"size:100" json:"variant"`
	Warehouse     string          `gorm:"size:50" json:"warehouse"`
	Qty           decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"qty"`
	OrderStatus   string          `gorm:"size:50" json:"order_status"`
	DeliveredDate *time.Time      `json:"delivered_date"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(20,4)" json:"unit_price"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// PurchaseLine is the originating purchase row used for receiving cost
// lookup. Batch-code match preferred, order+SKU fallback.
type PurchaseLine struct {
	ID        int             `gorm:"primary_key" json:"id"`
	OrderId   string          `gorm:"size:50;index;not null" json:"order_id" validate:"required"`
	Sku       string          `gorm:"size:100;index;not null" json:"sku" validate:"required"`
	BatchCode string          `gorm:"size:50;index" json:"batch_code"`
	UnitCost  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_cost"`
	Currency  string          `gorm:"size:3" json:"currency"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(20,4)" json:"unit_price"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// Product is the minimal catalog row used as the last cost fallback.
type Product struct {
	ID          int             `gorm:"primary_key" json:"id"`
	Sku         string          `gorm:"size:100;uniqueIndex;not null" json:"sku" validate:"required"`
	Name        string          `gorm:"size:255" json:"name"`
	Variant     string          `gorm:"size:100" json:"variant"`
	DefaultCost decimal.Decimal `gorm:"type:decimal(20,4)" json:"default_cost"`
	Currency    string          `gorm:"size:3" json:"currency"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// LookupPurchaseCost resolves the unit cost for a receiving line. Batch-code
// match wins; order+SKU is the fallback. ok=false means the caller posts
// cost zero and flags it in notes (quantity certainty outweighs cost
// certainty).
func LookupPurchaseCost(tx *gorm.DB, batchCode, orderId, sku string) (decimal.Decimal, string, bool, error) {
	var line PurchaseLine
	if batchCode != "" {
		err := tx.Where("batch_code = ?", batchCode).Order("id").First(&line).Error
		if err == nil {
			return line.UnitCost, line.Currency, true, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, "", false, err
		}
	}
	if orderId != "" {
		err := tx.Where("order_id = ? AND sku = ?", orderId, sku).Order("id").First(&line).Error
		if err == nil {
			return line.UnitCost, line.Currency, true, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, "", false, err
		}
	}
	return decimal.Zero, "", false, nil
}

// ProductDefaultCost returns the catalog default cost for a SKU.
func ProductDefaultCost(tx *gorm.DB, sku string) (decimal.Decimal, string, bool, error) {
	var p Product
	err := tx.Where("sku = ?", sku).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, "", false, nil
		}
		return decimal.Zero, "", false, err
	}
	return p.DefaultCost, p.Currency, true, nil
}
