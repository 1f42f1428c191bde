package tabular

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/mohamedelshamy95/CocoERP-sub000/models"
	"github.com/mohamedelshamy95/CocoERP-sub000/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// Source table imports are clear-then-write: the upstream sheet is the system
// of record for source rows, so each import replaces the table wholesale
// inside one transaction. The one exception is transfer_lines.qty_synced,
// which this subsystem owns and carries over by line id.

var validate = validator.New()

const importBatchSize = 200

// ImportReport counts the outcome of one table import.
type ImportReport struct {
	Table    string `json:"table"`
	Imported int    `json:"imported"`
	Skipped  int    `json:"skipped"`
}

func rowSkipped(logger *logrus.Logger, table string, rowNo int, err error) {
	logger.WithFields(logrus.Fields{
		"table": table,
		"row":   rowNo + 2,
	}).Warn("import.row_skipped: " + err.Error())
}

func validationErr(table, lineId string, err error) error {
	return &utils.ValidationError{Table: table, LineId: lineId, Reason: err.Error()}
}

// ImportShipments replaces the shipments table from a sheet.
func ImportShipments(db *gorm.DB, t *Table, logger *logrus.Logger) (*ImportReport, error) {
	if err := t.Require("Shipment ID", "Status"); err != nil {
		return nil, err
	}
	report := &ImportReport{Table: "shipments"}
	rows := make([]*models.Shipment, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		r := t.Row(i)
		if r.Empty() {
			continue
		}
		arrivedAt, err := r.DatePtr("Arrived At")
		if err != nil {
			report.Skipped++
			rowSkipped(logger, report.Table, i, err)
			continue
		}
		s := &models.Shipment{
			ShipmentId: r.Get("Shipment ID"),
			Status:     models.ShipmentStatus(r.Get("Status")),
			ArrivedAt:  arrivedAt,
		}
		if err := validate.Struct(s); err != nil {
			report.Skipped++
			rowSkipped(logger, report.Table, i, validationErr(report.Table, s.ShipmentId, err))
			continue
		}
		rows = append(rows, s)
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.Shipment{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, importBatchSize).Error
	})
	if err != nil {
		return nil, err
	}
	report.Imported = len(rows)
	return report, nil
}

// ImportQCInspections replaces the qc_inspections table from a sheet.
func ImportQCInspections(db *gorm.DB, t *Table, logger *logrus.Logger) (*ImportReport, error) {
	if err := t.Require("Line ID", "Shipment ID", "SKU", "Qty Received", "QC Date"); err != nil {
		return nil, err
	}
	report := &ImportReport{Table: "qc_inspections"}
	rows := make([]*models.QCInspection, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		r := t.Row(i)
		if r.Empty() {
			continue
		}
		line, err := buildQCInspection(r)
		if err != nil {
			report.Skipped++
			rowSkipped(logger, report.Table, i, err)
			continue
		}
		if err := validate.Struct(line); err != nil {
			report.Skipped++
			rowSkipped(logger, report.Table, i, validationErr(report.Table, line.LineId, err))
			continue
		}
		rows = append(rows, line)
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.QCInspection{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, importBatchSize).Error
	})
	if err != nil {
		return nil, err
	}
	report.Imported = len(rows)
	return report, nil
}

func buildQCInspection(r Row) (*models.QCInspection, error) {
	qtyReceived, err := r.Decimal("Qty Received")
	if err != nil {
		return nil, err
	}
	qtyDefective, err := r.DecimalOrZero("Qty Defective")
	if err != nil {
		return nil, err
	}
	qtyOK, err := r.DecimalPtr("Qty OK")
	if err != nil {
		return nil, err
	}
	qcDate, err := r.Date("QC Date")
	if err != nil {
		return nil, err
	}
	return &models.QCInspection{
		LineId:       r.Get("Line ID"),
		OrderId:      r.Get("Order ID"),
		ShipmentId:   r.Get("Shipment ID"),
		Sku:          r.Get("SKU"),
		BatchCode:    r.Get("Batch Code"),
		ProductName:  r.Get("Product Name"),
		Variant:      r.Get("Variant"),
		QtyReceived:  qtyReceived,
		QtyDefective: qtyDefective,
		QtyOK:        qtyOK,
		Warehouse:    r.Get("Warehouse"),
		QCDate:       qcDate,
	}, nil
}

// ImportTransferLines replaces the transfer_lines table from a sheet.
// qty_synced is carried over from the existing rows by line id; the sheet
// never owns that counter.
func ImportTransferLines(db *gorm.DB, t *Table, logger *logrus.Logger) (*ImportReport, error) {
	if err := t.Require("Line ID", "Shipment ID", "SKU", "Qty", "Ship Date"); err != nil {
		return nil, err
	}
	report := &ImportReport{Table: "transfer_lines"}
	rows := make([]*models.TransferLine, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		r := t.Row(i)
		if r.Empty() {
			continue
		}
		line, err := buildTransferLine(r)
		if err != nil {
			report.Skipped++
			rowSkipped(logger, report.Table, i, err)
			continue
		}
		if err := validate.Struct(line); err != nil {
			report.Skipped++
			rowSkipped(logger, report.Table, i, validationErr(report.Table, line.LineId, err))
			continue
		}
		rows = append(rows, line)
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		var existing []*models.TransferLine
		if err := tx.Select("line_id", "qty_synced").Find(&existing).Error; err != nil {
			return err
		}
		synced := make(map[string]decimal.Decimal, len(existing))
		for _, e := range existing {
			synced[e.LineId] = e.QtySynced
		}
		for _, line := range rows {
			line.QtySynced = synced[line.LineId]
		}
		if err := tx.Where("1 = 1").Delete(&models.TransferLine{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, importBatchSize).Error
	})
	if err != nil {
		return nil, err
	}
	report.Imported = len(rows)
	return report, nil
}

func buildTransferLine(r Row) (*models.TransferLine, error) {
	qty, err := r.Decimal("Qty")
	if err != nil {
		return nil, err
	}
	shipDate, err := r.Date("Ship Date")
	if err != nil {
		return nil, err
	}
	arrivalDate, err := r.DatePtr("Arrival Date")
	if err != nil {
		return nil, err
	}
	unitShipCost, err := r.DecimalOrZero("Unit Ship Cost")
	if err != nil {
		return nil, err
	}
	customs, err := r.DecimalOrZero("Customs")
	if err != nil {
		return nil, err
	}
	otherFees, err := r.DecimalOrZero("Other Fees")
	if err != nil {
		return nil, err
	}
	totalCost, err := r.DecimalOrZero("Total Cost")
	if err != nil {
		return nil, err
	}
	return &models.TransferLine{
		LineId:          r.Get("Line ID"),
		ShipmentId:      r.Get("Shipment ID"),
		BoxId:           r.Get("Box ID"),
		Sku:             r.Get("SKU"),
		ProductName:     r.Get("Product Name"),
		Variant:         r.Get("Variant"),
		Qty:             qty,
		ShipDate:        shipDate,
		ArrivalDate:     arrivalDate,
		UnitShipCost:    unitShipCost,
		Customs:         customs,
		OtherFees:       otherFees,
		TotalCost:       totalCost,
		OriginWarehouse: r.Get("Origin Warehouse"),
		CarrierLabel:    r.Get("Carrier"),
	}, nil
}

// ImportSalesOrderLines replaces the sales_order_lines table from a sheet.
func ImportSalesOrderLines(db *gorm.DB, t *Table, logger *logrus.Logger) (*ImportReport, error) {
	if err := t.Require("Order ID", "SKU", "Qty", "Status"); err != nil {
		return nil, err
	}
	report := &ImportReport{Table: "sales_order_lines"}
	rows := make([]*models.SalesOrderLine, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		r := t.Row(i)
		if r.Empty() {
			continue
		}
		qty, err := r.Decimal("Qty")
		if err != nil {
			report.Skipped++
			rowSkipped(logger, report.Table, i, err)
			continue
		}
		deliveredDate, err := r.DatePtr("Delivered Date")
		if err != nil {
			report.Skipped++
			rowSkipped(logger, report.Table, i, err)
			continue
		}
		unitPrice, err := r.DecimalOrZero("Unit Price")
		if err != nil {
			report.Skipped++
			rowSkipped(logger, report.Table, i, err)
			continue
		}
		line := &models.SalesOrderLine{
			OrderId:       r.Get("Order ID"),
			Sku:           r.Get("SKU"),
			ProductName:   r.Get("Product Name"),
			Variant:       r.Get("Variant"),
			Warehouse:     r.Get("Warehouse"),
			Qty:           qty,
			OrderStatus:   r.Get("Status"),
			DeliveredDate: deliveredDate,
			UnitPrice:     unitPrice,
		}
		if err := validate.Struct(line); err != nil {
			report.Skipped++
			rowSkipped(logger, report.Table, i, validationErr(report.Table, line.OrderId, err))
			continue
		}
		rows = append(rows, line)
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.SalesOrderLine{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, importBatchSize).Error
	})
	if err != nil {
		return nil, err
	}
	report.Imported = len(rows)
	return report, nil
}

// ImportPurchaseLines replaces the purchase_lines table from a sheet.
func ImportPurchaseLines(db *gorm.DB, t *Table, logger *logrus.Logger) (*ImportReport, error) {
	if err := t.Require("Order ID", "SKU", "Unit Cost"); err != nil {
		return nil, err
	}
	report := &ImportReport{Table: "purchase_lines"}
	rows := make([]*models.PurchaseLine, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		r := t.Row(i)
		if r.Empty() {
			continue
		}
		unitCost, err := r.Decimal("Unit Cost")
		if err != nil {
			report.Skipped++
			rowSkipped(logger, report.Table, i, err)
			continue
		}
		unitPrice, err := r.DecimalOrZero("Unit Price")
		if err != nil {
			report.Skipped++
			rowSkipped(logger, report.Table, i, err)
			continue
		}
		line := &models.PurchaseLine{
			OrderId:   r.Get("Order ID"),
			Sku:       r.Get("SKU"),
			BatchCode: r.Get("Batch Code"),
			UnitCost:  unitCost,
			Currency:  r.Get("Currency"),
			UnitPrice: unitPrice,
		}
		if err := validate.Struct(line); err != nil {
			report.Skipped++
			rowSkipped(logger, report.Table, i, validationErr(report.Table, line.OrderId, err))
			continue
		}
		rows = append(rows, line)
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.PurchaseLine{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, importBatchSize).Error
	})
	if err != nil {
		return nil, err
	}
	report.Imported = len(rows)
	return report, nil
}

// ImportProducts replaces the products catalog from a sheet.
func ImportProducts(db *gorm.DB, t *Table, logger *logrus.Logger) (*ImportReport, error) {
	if err := t.Require("SKU"); err != nil {
		return nil, err
	}
	report := &ImportReport{Table: "products"}
	rows := make([]*models.Product, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		r := t.Row(i)
		if r.Empty() {
			continue
		}
		defaultCost, err := r.DecimalOrZero("Default Cost")
		if err != nil {
			report.Skipped++
			rowSkipped(logger, report.Table, i, err)
			continue
		}
		p := &models.Product{
			Sku:         r.Get("SKU"),
			Name:        r.Get("Name"),
			Variant:     r.Get("Variant"),
			DefaultCost: defaultCost,
			Currency:    r.Get("Currency"),
		}
		if err := validate.Struct(p); err != nil {
			report.Skipped++
			rowSkipped(logger, report.Table, i, validationErr(report.Table, p.Sku, err))
			continue
		}
		rows = append(rows, p)
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.Product{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, importBatchSize).Error
	})
	if err != nil {
		return nil, err
	}
	report.Imported = len(rows)
	return report, nil
}

// ImportWorkbook imports every recognized sheet from one workbook. Sheet
// names map to tables; unknown sheets are ignored.
func ImportWorkbook(db *gorm.DB, path string, logger *logrus.Logger) ([]*ImportReport, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %q: %w", path, err)
	}
	defer f.Close()

	type importer struct {
		sheet string
		run   func(*gorm.DB, *Table, *logrus.Logger) (*ImportReport, error)
	}
	importers := []importer{
		{"Products", ImportProducts},
		{"Purchases", ImportPurchaseLines},
		{"Shipments", ImportShipments},
		{"QC", ImportQCInspections},
		{"Transfers", ImportTransferLines},
		{"Sales", ImportSalesOrderLines},
	}

	reports := make([]*ImportReport, 0, len(importers))
	for _, im := range importers {
		if idx, _ := f.GetSheetIndex(im.sheet); idx < 0 {
			continue
		}
		t, err := LoadTable(f, im.sheet, im.sheet)
		if err != nil {
			return reports, err
		}
		report, err := im.run(db, t, logger)
		if err != nil {
			return reports, err
		}
		logger.WithFields(logrus.Fields{
			"table":    report.Table,
			"imported": report.Imported,
			"skipped":  report.Skipped,
		}).Info("import.table_done")
		reports = append(reports, report)
	}
	return reports, nil
}
