package tabular

import (
	"github.com/mohamedelshamy95/CocoERP-sub000/models"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

const dateFormat = "2006-01-02"

func writeHeaderRow(f *excelize.File, sheet string, headers []string) error {
	cell, err := excelize.CoordinatesToCellName(1, 1)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &headers)
}

func writeDataRow(f *excelize.File, sheet string, rowNo int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNo)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

// ExportSnapshots writes the snapshot rows of one group (or all groups when
// group is empty) to an .xlsx workbook.
func ExportSnapshots(db *gorm.DB, group, path string) error {
	rows, err := models.ListSnapshots(db, group)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := "Snapshots"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{
		"Group", "SKU", "Product Name", "Variant", "Warehouse",
		"On Hand", "Allocated", "Available", "Avg Cost", "Total Cost",
		"Last Txn Date", "Last Source Type", "Last Source ID",
	}
	if err := writeHeaderRow(f, sheet, headers); err != nil {
		return err
	}
	for i, row := range rows {
		values := []interface{}{
			row.SnapshotGroup, row.Sku, row.ProductName, row.Variant, row.Warehouse,
			row.OnHand.String(), row.Allocated.String(), row.Available.String(),
			row.AvgCost.String(), row.TotalCost.String(),
			row.LastTxnDate.Format(dateFormat), string(row.LastSourceType), row.LastSourceId,
		}
		if err := writeDataRow(f, sheet, i+2, values); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}

// ExportLedger writes the full ledger in insertion order to an .xlsx workbook.
func ExportLedger(db *gorm.DB, path string) error {
	records, err := models.ScanLedger(db)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := "Ledger"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{
		"Txn ID", "Txn Date", "Movement", "Source Type", "Source ID",
		"Batch Code", "SKU", "Product Name", "Variant", "Warehouse",
		"Qty In", "Qty Out", "Unit Cost", "Total Cost", "Currency",
		"Unit Price", "Notes",
	}
	if err := writeHeaderRow(f, sheet, headers); err != nil {
		return err
	}
	for i, r := range records {
		values := []interface{}{
			r.TxnId, r.TxnDate.Format(dateFormat), string(r.MovementType),
			string(r.SourceType), r.SourceId, r.BatchCode, r.Sku,
			r.ProductName, r.Variant, r.Warehouse,
			r.QtyIn.String(), r.QtyOut.String(), r.UnitCost.String(),
			r.TotalCost.String(), r.Currency, r.UnitPriceOrig.String(), r.Notes,
		}
		if err := writeDataRow(f, sheet, i+2, values); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}
