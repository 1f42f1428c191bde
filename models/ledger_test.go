package models

import (
	"errors"
	"testing"

	"github.com/mohamedelshamy95/CocoERP-sub000/utils"
	"github.com/shopspring/decimal"
)

func validIn(txnId string) *LedgerRecord {
	return &LedgerRecord{
		TxnId: txnId, TxnDate: day("2024-01-01"),
		MovementType: MovementTypeIn, SourceType: SourceTypeReceiving,
		SourceId: "QC-1", Sku: "SKU-A", Warehouse: "EG-CAIRO",
		QtyIn: dec("5"), QtyOut: decimal.Zero, UnitCost: dec("10"),
	}
}

func TestLedgerRecordValidate(t *testing.T) {
	if err := validIn("TXN-1").Validate(); err != nil {
		t.Fatalf("valid IN rejected: %v", err)
	}

	bothSides := validIn("TXN-2")
	bothSides.QtyOut = dec("1")
	if err := bothSides.Validate(); err == nil {
		t.Fatal("record with both qty_in and qty_out accepted")
	}

	zeroQty := validIn("TXN-3")
	zeroQty.QtyIn = decimal.Zero
	if err := zeroQty.Validate(); err == nil {
		t.Fatal("IN record with zero qty_in accepted")
	}

	noSku := validIn("TXN-4")
	noSku.Sku = ""
	if err := noSku.Validate(); err == nil {
		t.Fatal("record without sku accepted")
	}

	noWarehouse := validIn("TXN-5")
	noWarehouse.Warehouse = ""
	err := noWarehouse.Validate()
	if err == nil {
		t.Fatal("record without warehouse accepted")
	}
	var vErr *utils.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("want ValidationError, got %T", err)
	}

	wrongType := validIn("TXN-6")
	wrongType.MovementType = MovementType("XFER")
	if err := wrongType.Validate(); err == nil {
		t.Fatal("unknown movement type accepted")
	}
}

func TestAppendLedgerRecordsFailsFast(t *testing.T) {
	db := newTestDB(t)
	bad := validIn("TXN-BAD")
	bad.Sku = ""
	err := AppendLedgerRecords(db, []*LedgerRecord{validIn("TXN-OK"), bad}, 0)
	if err == nil {
		t.Fatal("batch with an invalid record accepted")
	}
	var n int64
	db.Model(&LedgerRecord{}).Count(&n)
	if n != 0 {
		t.Fatalf("rows written = %d, want 0: validation precedes any write", n)
	}
}

func TestScanLedgerInsertionOrder(t *testing.T) {
	db := newTestDB(t)
	ids := []string{"TXN-C", "TXN-A", "TXN-B"}
	for _, id := range ids {
		if err := AppendLedgerRecords(db, []*LedgerRecord{validIn(id)}, 0); err != nil {
			t.Fatalf("append %s: %v", id, err)
		}
	}
	records, err := ScanLedger(db)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	for i, id := range ids {
		if records[i].TxnId != id {
			t.Fatalf("position %d = %s, want insertion order %v", i, records[i].TxnId, ids)
		}
	}
}

func TestSumPostedSalesOut(t *testing.T) {
	db := newTestDB(t)
	sale := func(txnId, orderId, sku string, qty string) *LedgerRecord {
		return &LedgerRecord{
			TxnId: txnId, TxnDate: day("2024-01-01"),
			MovementType: MovementTypeOut, SourceType: SourceTypeSale,
			SourceId: orderId, Sku: sku, Warehouse: "EG-CAIRO",
			QtyIn: decimal.Zero, QtyOut: dec(qty),
		}
	}
	records := []*LedgerRecord{
		sale("TXN-1", "SO-1", "SKU-A", "5"),
		sale("TXN-2", "SO-1", "SKU-A", "3"),
		sale("TXN-3", "SO-1", "SKU-B", "2"),
		validIn("TXN-4"),
	}
	if err := AppendLedgerRecords(db, records, 0); err != nil {
		t.Fatalf("append: %v", err)
	}

	rows, err := SumPostedSalesOut(db)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	byKey := make(map[string]decimal.Decimal)
	for _, row := range rows {
		byKey[row.SourceId+"|"+row.Sku] = row.Qty
	}
	if !byKey["SO-1|SKU-A"].Equal(dec("8")) {
		t.Fatalf("SO-1/SKU-A = %s, want 8", byKey["SO-1|SKU-A"])
	}
	if !byKey["SO-1|SKU-B"].Equal(dec("2")) {
		t.Fatalf("SO-1/SKU-B = %s, want 2", byKey["SO-1|SKU-B"])
	}
	if _, ok := byKey["QC-1|SKU-A"]; ok {
		t.Fatal("receiving rows must not appear in the sales aggregate")
	}
}

func TestLookupPurchaseCostBatchWins(t *testing.T) {
	db := newTestDB(t)
	if err := db.Create(&PurchaseLine{OrderId: "PO-1", Sku: "SKU-A", BatchCode: "B-1", UnitCost: dec("100"), Currency: "USD"}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := db.Create(&PurchaseLine{OrderId: "PO-2", Sku: "SKU-A", UnitCost: dec("90"), Currency: "CNY"}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	cost, currency, ok, err := LookupPurchaseCost(db, "B-1", "PO-2", "SKU-A")
	if err != nil || !ok {
		t.Fatalf("lookup: ok=%v err=%v", ok, err)
	}
	if !cost.Equal(dec("100")) || currency != "USD" {
		t.Fatalf("batch match = %s %s, want 100 USD", cost, currency)
	}

	cost, currency, ok, err = LookupPurchaseCost(db, "", "PO-2", "SKU-A")
	if err != nil || !ok {
		t.Fatalf("fallback lookup: ok=%v err=%v", ok, err)
	}
	if !cost.Equal(dec("90")) || currency != "CNY" {
		t.Fatalf("order+sku fallback = %s %s, want 90 CNY", cost, currency)
	}

	_, _, ok, err = LookupPurchaseCost(db, "B-NONE", "PO-NONE", "SKU-A")
	if err != nil {
		t.Fatalf("miss lookup: %v", err)
	}
	if ok {
		t.Fatal("missing purchase line reported ok=true")
	}
}

func TestReplaceSnapshotGroupIsolation(t *testing.T) {
	db := newTestDB(t)
	seed := func(group, sku string) *StockSnapshot {
		return &StockSnapshot{
			SnapshotGroup: group, Sku: sku, Warehouse: group + "-X",
			OnHand: dec("1"), Allocated: decimal.Zero, Available: dec("1"),
		}
	}
	if err := db.Create(seed("EG", "SKU-A")).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := db.Create(seed("CN", "SKU-B")).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := ReplaceSnapshotGroup(db, "EG", []*StockSnapshot{seed("EG", "SKU-C")}, 0); err != nil {
		t.Fatalf("replace: %v", err)
	}

	eg, err := ListSnapshots(db, "EG")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(eg) != 1 || eg[0].Sku != "SKU-C" {
		t.Fatalf("EG rows = %+v, want just SKU-C", eg)
	}
	cn, err := ListSnapshots(db, "CN")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(cn) != 1 || cn[0].Sku != "SKU-B" {
		t.Fatal("replacing one group must not touch another group's rows")
	}
}
