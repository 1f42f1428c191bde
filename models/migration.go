package models

import "gorm.io/gorm"

// MigrateTable creates/updates all tables. Schema evolution is additive only.
func MigrateTable(db *gorm.DB) error {
	return db.AutoMigrate(
		&LedgerRecord{},
		&StockSnapshot{},
		&Shipment{},
		&QCInspection{},
		&TransferLine{},
		&SalesOrderLine{},
		&PurchaseLine{},
		&Product{},
	)
}
