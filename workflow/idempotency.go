package workflow

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"

	"github.com/mohamedelshamy95/CocoERP-sub000/models"
	"github.com/mohamedelshamy95/CocoERP-sub000/utils"
	"gorm.io/gorm"
)

// Fingerprint derives the deterministic txn id from a movement's business
// content. Equal content on a later run yields an equal id, so duplicates are
// detected without any external job tracking. The date is truncated to day
// granularity before hashing.
func Fingerprint(r *models.LedgerRecord) string {
	day := utils.ConvertToDate(r.TxnDate).Format("2006-01-02")
	joined := strings.Join([]string{
		string(r.MovementType),
		string(r.SourceType),
		r.SourceId,
		r.BatchCode,
		r.Sku,
		r.Warehouse,
		r.QtyIn.String(),
		r.QtyOut.String(),
		r.UnitCost.String(),
		r.Currency,
		r.UnitPriceOrig.String(),
		day,
	}, "|")
	sum := sha1.Sum([]byte(joined))
	return "TXN-" + hex.EncodeToString(sum[:])[:12]
}

// KeyStrategy derives one duplicate-detection key from a movement record.
// A posted index consults its strategies in order; matching any existing key
// suppresses the candidate. Dropping legacy support later is removing one
// strategy from a connector's list.
type KeyStrategy interface {
	Name() string
	Key(r *models.LedgerRecord) string
}

// ContentFingerprint is the current scheme: the content hash itself.
type ContentFingerprint struct{}

func (ContentFingerprint) Name() string { return "fingerprint" }

func (ContentFingerprint) Key(r *models.LedgerRecord) string { return Fingerprint(r) }

// LegacySourceKey reproduces the pre-fingerprint scheme that keyed postings
// by correlation id alone. Only connectors whose source lines post at most
// once (receiving) may use it: delta- and remainder-based connectors post
// several movements under one correlation id.
type LegacySourceKey struct{}

func (LegacySourceKey) Name() string { return "legacy-source-id" }

func (LegacySourceKey) Key(r *models.LedgerRecord) string {
	return string(r.SourceType) + "|" + r.SourceId
}

// PostedIndex answers "has this movement already been posted" for one source
// type. Loaded from a single ledger scan; membership checks are O(1).
// It is a pure filter: callers append accepted records and call MarkPosted so
// later candidates in the same run see them.
type PostedIndex struct {
	strategies []KeyStrategy
	posted     map[string]struct{}
	seen       map[string]struct{}
}

func LoadPostedIndex(tx *gorm.DB, sourceType models.SourceType, strategies ...KeyStrategy) (*PostedIndex, error) {
	records, err := models.ScanLedgerBySourceType(tx, sourceType)
	if err != nil {
		return nil, err
	}
	ix := &PostedIndex{
		strategies: strategies,
		posted:     make(map[string]struct{}, len(records)*2),
		seen:       make(map[string]struct{}),
	}
	for _, r := range records {
		// Stored txn ids cover rows posted under either scheme.
		ix.posted[r.TxnId] = struct{}{}
		for _, s := range strategies {
			ix.posted[s.Key(r)] = struct{}{}
		}
	}
	return ix, nil
}

// IsDuplicate consults the strategies in order and reports the first that
// matches an already-posted key.
func (ix *PostedIndex) IsDuplicate(r *models.LedgerRecord) (string, bool) {
	for _, s := range ix.strategies {
		if _, ok := ix.posted[s.Key(r)]; ok {
			return s.Name(), true
		}
	}
	return "", false
}

// SeenThisRun records the candidate's fingerprint and reports whether an
// identical candidate was already produced earlier in the same run (two
// upstream edits landing in one batch).
func (ix *PostedIndex) SeenThisRun(r *models.LedgerRecord) bool {
	key := Fingerprint(r)
	if _, ok := ix.seen[key]; ok {
		return true
	}
	ix.seen[key] = struct{}{}
	return false
}

// MarkPosted updates the in-memory sets for subsequent candidates in the run.
func (ix *PostedIndex) MarkPosted(r *models.LedgerRecord) {
	ix.posted[r.TxnId] = struct{}{}
	for _, s := range ix.strategies {
		ix.posted[s.Key(r)] = struct{}{}
	}
}
