package config

import (
	"os"
	"strings"
)

// CarrierRule maps a free-text carrier/agent hint to one canonical warehouse.
// Matching is case-insensitive substring; rules are checked in order.
type CarrierRule struct {
	Match     string
	Warehouse string
}

// WarehouseGroup is a named partition of warehouse codes used to split
// snapshot output. Codes not listed explicitly still belong to the group
// when they start with the group's prefix, so new warehouse codes don't
// need a code change.
type WarehouseGroup struct {
	Name   string
	Prefix string
	Codes  []string
}

// InventoryConfig is loaded once at process start and passed explicitly into
// every component. It is never mutated after construction.
type InventoryConfig struct {
	CarrierRules []CarrierRule
	Groups       []WarehouseGroup

	// TransferDestination is the fixed destination warehouse for
	// inter-warehouse transfer IN postings.
	TransferDestination string

	// DeliveredExact / DeliveredLoose form the order-status vocabulary that
	// makes a sales line eligible for fulfillment posting. Exact matches are
	// compared case-insensitively; loose terms are substring matches and
	// include transliterated variants.
	DeliveredExact []string
	DeliveredLoose []string

	DefaultCurrency string

	// KeepZeroRows keeps snapshot rows with zero quantity and zero cost
	// instead of suppressing them.
	KeepZeroRows bool

	// AppendBatchSize caps chunked ledger writes. Payload limit only, not an
	// atomicity boundary.
	AppendBatchSize int
}

func DefaultInventoryConfig() InventoryConfig {
	return InventoryConfig{
		CarrierRules: []CarrierRule{
			{Match: "attia", Warehouse: "EG-CAIRO"},
			{Match: "bassem", Warehouse: "EG-ALEX"},
			{Match: "canton", Warehouse: "CN-GUANGZHOU"},
			{Match: "yiwu", Warehouse: "CN-YIWU"},
		},
		Groups: []WarehouseGroup{
			{Name: "EG", Prefix: "EG-", Codes: []string{"EG-CAIRO", "EG-ALEX", "EG-GIZA"}},
			{Name: "CN", Prefix: "CN-", Codes: []string{"CN-GUANGZHOU", "CN-YIWU"}},
		},
		TransferDestination: "EG-CAIRO",
		DeliveredExact:      []string{"delivered", "completed", "تم التسليم"},
		DeliveredLoose:      []string{"deliver", "wasel", "وصل", "tasleem"},
		DefaultCurrency:     "EGP",
		KeepZeroRows:        false,
		AppendBatchSize:     200,
	}
}

// LoadInventoryConfig builds the config from defaults plus env overrides.
func LoadInventoryConfig() InventoryConfig {
	cfg := DefaultInventoryConfig()
	if v := strings.TrimSpace(os.Getenv("TRANSFER_DESTINATION")); v != "" {
		cfg.TransferDestination = v
	}
	if v := strings.TrimSpace(os.Getenv("DEFAULT_CURRENCY")); v != "" {
		cfg.DefaultCurrency = v
	}
	switch strings.ToLower(strings.TrimSpace(os.Getenv("SNAPSHOT_KEEP_ZERO_ROWS"))) {
	case "1", "true", "yes":
		cfg.KeepZeroRows = true
	}
	return cfg
}
