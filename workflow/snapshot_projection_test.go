package workflow

import (
	"context"
	"testing"

	"github.com/mohamedelshamy95/CocoERP-sub000/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func appendMovement(t *testing.T, db *gorm.DB, r *models.LedgerRecord) {
	t.Helper()
	r.TxnId = Fingerprint(r)
	if err := models.AppendLedgerRecords(db, []*models.LedgerRecord{r}, 0); err != nil {
		t.Fatalf("append: %v", err)
	}
}

func snapshotRows(t *testing.T, db *gorm.DB, group string) []*models.StockSnapshot {
	t.Helper()
	rows, err := models.ListSnapshots(db, group)
	if err != nil {
		t.Fatalf("list snapshots: %v", err)
	}
	return rows
}

func TestRebuildSnapshotsMovingAverage(t *testing.T) {
	db := newTestDB(t)
	appendMovement(t, db, &models.LedgerRecord{
		TxnDate: day("2024-01-01"), MovementType: models.MovementTypeIn,
		SourceType: models.SourceTypeReceiving, SourceId: "QC-1",
		Sku: "SKU-A", Warehouse: "EG-CAIRO",
		QtyIn: dec("10"), UnitCost: dec("100"), TotalCost: dec("1000"),
	})
	appendMovement(t, db, &models.LedgerRecord{
		TxnDate: day("2024-01-05"), MovementType: models.MovementTypeIn,
		SourceType: models.SourceTypeReceiving, SourceId: "QC-2",
		Sku: "SKU-A", Warehouse: "EG-CAIRO",
		QtyIn: dec("10"), UnitCost: dec("120"), TotalCost: dec("1200"),
	})
	appendMovement(t, db, &models.LedgerRecord{
		TxnDate: day("2024-01-10"), MovementType: models.MovementTypeOut,
		SourceType: models.SourceTypeSale, SourceId: "SO-1",
		Sku: "SKU-A", Warehouse: "EG-CAIRO",
		QtyOut: dec("5"), UnitCost: dec("110"), TotalCost: dec("550"),
	})

	if err := RebuildSnapshots(context.Background(), db, testLogger(), testConfig()); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	rows := snapshotRows(t, db, "EG")
	if len(rows) != 1 {
		t.Fatalf("snapshot rows = %d, want 1", len(rows))
	}
	row := rows[0]
	if !row.OnHand.Equal(dec("15")) {
		t.Fatalf("on_hand = %s, want 15", row.OnHand)
	}
	if !row.AvgCost.Equal(dec("110")) {
		t.Fatalf("avg_cost = %s, want 110", row.AvgCost)
	}
	if !row.TotalCost.Equal(dec("1650")) {
		t.Fatalf("total_cost = %s, want 1650", row.TotalCost)
	}
	if !row.Available.Equal(row.OnHand) {
		t.Fatalf("available = %s, want on_hand %s", row.Available, row.OnHand)
	}
	if row.LastSourceType != models.SourceTypeSale || row.LastSourceId != "SO-1" {
		t.Fatalf("last source = %s/%s, want SALE/SO-1", row.LastSourceType, row.LastSourceId)
	}
}

func TestRebuildSnapshotsConservation(t *testing.T) {
	db := newTestDB(t)
	appendMovement(t, db, &models.LedgerRecord{
		TxnDate: day("2024-01-01"), MovementType: models.MovementTypeIn,
		SourceType: models.SourceTypeTransfer, SourceId: "TSH-1#TL-1",
		Sku: "SKU-A", Warehouse: "CN-GUANGZHOU", QtyIn: dec("40"), UnitCost: dec("10"),
	})
	appendMovement(t, db, &models.LedgerRecord{
		TxnDate: day("2024-01-02"), MovementType: models.MovementTypeOut,
		SourceType: models.SourceTypeTransfer, SourceId: "TSH-2#TL-2",
		Sku: "SKU-A", Warehouse: "CN-GUANGZHOU", QtyOut: dec("15"), UnitCost: dec("10"),
	})
	appendMovement(t, db, &models.LedgerRecord{
		TxnDate: day("2024-01-02"), MovementType: models.MovementTypeIn,
		SourceType: models.SourceTypeTransfer, SourceId: "TSH-2#TL-2",
		Sku: "SKU-A", Warehouse: "EG-CAIRO", QtyIn: dec("15"), UnitCost: dec("12"),
	})

	if err := RebuildSnapshots(context.Background(), db, testLogger(), testConfig()); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	// sum(on_hand) across all groups == sum(qty_in) - sum(qty_out).
	var total decimal.Decimal
	for _, row := range snapshotRows(t, db, "") {
		total = total.Add(row.OnHand)
	}
	if !total.Equal(dec("40")) {
		t.Fatalf("total on_hand = %s, want 40", total)
	}

	cn := snapshotRows(t, db, "CN")
	if len(cn) != 1 || !cn[0].OnHand.Equal(dec("25")) {
		t.Fatalf("CN rows = %+v, want one row with 25 on hand", cn)
	}
	eg := snapshotRows(t, db, "EG")
	if len(eg) != 1 || !eg[0].OnHand.Equal(dec("15")) {
		t.Fatalf("EG rows = %+v, want one row with 15 on hand", eg)
	}
}

func TestRebuildSnapshotsSuppressesZeroRows(t *testing.T) {
	db := newTestDB(t)
	appendMovement(t, db, &models.LedgerRecord{
		TxnDate: day("2024-01-01"), MovementType: models.MovementTypeIn,
		SourceType: models.SourceTypeReceiving, SourceId: "QC-1",
		Sku: "SKU-A", Warehouse: "EG-CAIRO", QtyIn: dec("5"), UnitCost: dec("10"),
	})
	appendMovement(t, db, &models.LedgerRecord{
		TxnDate: day("2024-01-02"), MovementType: models.MovementTypeOut,
		SourceType: models.SourceTypeSale, SourceId: "SO-1",
		Sku: "SKU-A", Warehouse: "EG-CAIRO", QtyOut: dec("5"), UnitCost: dec("10"),
	})

	if err := RebuildSnapshots(context.Background(), db, testLogger(), testConfig()); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if rows := snapshotRows(t, db, "EG"); len(rows) != 0 {
		t.Fatalf("zeroed-out row should be suppressed, got %d rows", len(rows))
	}

	cfg := testConfig()
	cfg.KeepZeroRows = true
	if err := RebuildSnapshots(context.Background(), db, testLogger(), cfg); err != nil {
		t.Fatalf("rebuild with keep-zero-rows: %v", err)
	}
	rows := snapshotRows(t, db, "EG")
	if len(rows) != 1 {
		t.Fatalf("keep-zero-rows rebuild rows = %d, want 1", len(rows))
	}
	if !rows[0].OnHand.IsZero() || !rows[0].TotalCost.IsZero() {
		t.Fatalf("zero row = on_hand %s total %s, want 0/0", rows[0].OnHand, rows[0].TotalCost)
	}
}

func TestRebuildSnapshotsReplacesStaleRows(t *testing.T) {
	db := newTestDB(t)
	// A stale row from a previous projection that no ledger entry supports.
	mustCreate(t, db, &models.StockSnapshot{
		SnapshotGroup: "EG", Sku: "SKU-GONE", Warehouse: "EG-CAIRO",
		OnHand: dec("99"), Allocated: decimal.Zero, Available: dec("99"),
	})
	appendMovement(t, db, &models.LedgerRecord{
		TxnDate: day("2024-01-01"), MovementType: models.MovementTypeIn,
		SourceType: models.SourceTypeReceiving, SourceId: "QC-1",
		Sku: "SKU-A", Warehouse: "EG-CAIRO", QtyIn: dec("5"), UnitCost: dec("10"),
	})

	if err := RebuildSnapshots(context.Background(), db, testLogger(), testConfig()); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	rows := snapshotRows(t, db, "EG")
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1: stale row must be gone", len(rows))
	}
	if rows[0].Sku != "SKU-A" {
		t.Fatalf("surviving sku = %q, want SKU-A", rows[0].Sku)
	}
}

func TestRebuildSnapshotsOversoldKeepsNegativeOnHand(t *testing.T) {
	db := newTestDB(t)
	appendMovement(t, db, &models.LedgerRecord{
		TxnDate: day("2024-01-01"), MovementType: models.MovementTypeOut,
		SourceType: models.SourceTypeSale, SourceId: "SO-1",
		Sku: "SKU-A", Warehouse: "EG-CAIRO", QtyOut: dec("3"), UnitCost: dec("10"),
	})

	if err := RebuildSnapshots(context.Background(), db, testLogger(), testConfig()); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	rows := snapshotRows(t, db, "EG")
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1: negative on-hand is visible, not hidden", len(rows))
	}
	if !rows[0].OnHand.Equal(dec("-3")) {
		t.Fatalf("on_hand = %s, want -3", rows[0].OnHand)
	}
	if !rows[0].TotalCost.IsZero() {
		t.Fatalf("total_cost = %s, want clamped to 0", rows[0].TotalCost)
	}
}
