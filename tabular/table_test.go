package tabular

import (
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/mohamedelshamy95/CocoERP-sub000/models"
	"github.com/mohamedelshamy95/CocoERP-sub000/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBSeq atomic.Int64

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:tabtest%d?mode=memory&cache=shared", testDBSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap test db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := models.MigrateTable(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func sheetWithRows(t *testing.T, rows [][]interface{}) *excelize.File {
	t.Helper()
	f := excelize.NewFile()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	return f
}

func TestLoadTableHeaderAddressing(t *testing.T) {
	f := sheetWithRows(t, [][]interface{}{
		{"SKU", "Qty", "QC Date"},
		{"SKU-A", "1,250.5", "2024-03-01"},
	})
	defer f.Close()

	table, err := LoadTable(f, "Sheet1", "test")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if table.Len() != 1 {
		t.Fatalf("len = %d, want 1", table.Len())
	}
	row := table.Row(0)

	// Case-insensitive header lookup.
	if got := row.Get("sku"); got != "SKU-A" {
		t.Fatalf("Get(sku) = %q", got)
	}
	qty, err := row.Decimal("Qty")
	if err != nil {
		t.Fatalf("decimal: %v", err)
	}
	if !qty.Equal(decimal.NewFromFloat(1250.5)) {
		t.Fatalf("qty = %s, want 1250.5 with thousands separator stripped", qty)
	}
	d, err := row.Date("QC Date")
	if err != nil {
		t.Fatalf("date: %v", err)
	}
	if d.Format("2006-01-02") != "2024-03-01" {
		t.Fatalf("date = %s", d)
	}
}

func TestLoadTableRaggedRows(t *testing.T) {
	f := sheetWithRows(t, [][]interface{}{
		{"SKU", "Qty", "Notes"},
		{"SKU-A", "3"},
	})
	defer f.Close()

	table, err := LoadTable(f, "Sheet1", "test")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := table.Row(0).Get("Notes"); got != "" {
		t.Fatalf("cell past ragged end = %q, want empty", got)
	}
}

func TestRequireMissingColumnIsSchemaError(t *testing.T) {
	f := sheetWithRows(t, [][]interface{}{{"SKU", "Qty"}})
	defer f.Close()

	table, err := LoadTable(f, "Sheet1", "qc_inspections")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	err = table.Require("SKU", "Line ID")
	if err == nil {
		t.Fatal("missing required column accepted")
	}
	var sErr *utils.SchemaError
	if !errors.As(err, &sErr) {
		t.Fatalf("want SchemaError, got %T: %v", err, err)
	}
	if sErr.Column != "Line ID" {
		t.Fatalf("missing column = %q, want Line ID", sErr.Column)
	}
}

func TestImportQCInspectionsClearThenWrite(t *testing.T) {
	db := newTestDB(t)
	// A stale row from a previous import.
	if err := db.Create(&models.QCInspection{
		LineId: "OLD-1", ShipmentId: "SH-0", Sku: "SKU-OLD",
		QtyReceived: decimal.NewFromInt(1), QtyDefective: decimal.Zero,
	}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	f := sheetWithRows(t, [][]interface{}{
		{"Line ID", "Shipment ID", "SKU", "Qty Received", "Qty Defective", "Warehouse", "QC Date"},
		{"QC-1", "SH-1", "SKU-A", "10", "2", "EG-CAIRO", "2024-03-01"},
		{"QC-2", "SH-1", "SKU-B", "not-a-number", "", "EG-CAIRO", "2024-03-01"},
	})
	defer f.Close()

	table, err := LoadTable(f, "Sheet1", "qc_inspections")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	report, err := ImportQCInspections(db, table, testLogger())
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if report.Imported != 1 || report.Skipped != 1 {
		t.Fatalf("imported=%d skipped=%d, want 1/1", report.Imported, report.Skipped)
	}

	var rows []*models.QCInspection
	if err := db.Find(&rows).Error; err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(rows) != 1 || rows[0].LineId != "QC-1" {
		t.Fatalf("rows = %+v, want only QC-1: import replaces the table", rows)
	}
}

func TestImportTransferLinesPreservesSyncCounter(t *testing.T) {
	db := newTestDB(t)
	if err := db.Create(&models.TransferLine{
		LineId: "TL-1", ShipmentId: "TSH-1", Sku: "SKU-A",
		Qty: decimal.NewFromInt(50), QtySynced: decimal.NewFromInt(50),
		ShipDate: mustDay(t, "2024-04-01"),
	}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Re-import with the quantity revised upward; the counter must survive.
	f := sheetWithRows(t, [][]interface{}{
		{"Line ID", "Shipment ID", "SKU", "Qty", "Ship Date"},
		{"TL-1", "TSH-1", "SKU-A", "80", "2024-04-01"},
		{"TL-2", "TSH-1", "SKU-B", "20", "2024-04-01"},
	})
	defer f.Close()

	table, err := LoadTable(f, "Sheet1", "transfer_lines")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	report, err := ImportTransferLines(db, table, testLogger())
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if report.Imported != 2 {
		t.Fatalf("imported = %d, want 2", report.Imported)
	}

	var line models.TransferLine
	if err := db.Where("line_id = ?", "TL-1").First(&line).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !line.Qty.Equal(decimal.NewFromInt(80)) {
		t.Fatalf("qty = %s, want revised 80", line.Qty)
	}
	if !line.QtySynced.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("qty_synced = %s, want preserved 50", line.QtySynced)
	}

	var fresh models.TransferLine
	if err := db.Where("line_id = ?", "TL-2").First(&fresh).Error; err != nil {
		t.Fatalf("reload fresh: %v", err)
	}
	if !fresh.QtySynced.IsZero() {
		t.Fatalf("new line qty_synced = %s, want 0", fresh.QtySynced)
	}
}

func mustDay(t *testing.T, s string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatalf("parse day: %v", err)
	}
	return parsed
}
