package workflow

import (
	"regexp"
	"strings"

	"github.com/mohamedelshamy95/CocoERP-sub000/config"
	"github.com/mohamedelshamy95/CocoERP-sub000/models"
	"github.com/mohamedelshamy95/CocoERP-sub000/utils"
	"gorm.io/gorm"
)

var warehouseSeparators = regexp.MustCompile(`[\s_]+`)

// NormalizeWarehouseCode canonicalizes a warehouse reference: uppercase,
// whitespace/underscore runs collapsed to a single hyphen, leading/trailing
// hyphens stripped.
func NormalizeWarehouseCode(s string) string {
	s = warehouseSeparators.ReplaceAllString(strings.TrimSpace(s), "-")
	s = strings.ToUpper(s)
	return strings.Trim(s, "-")
}

// ResolveWarehouse infers the physical warehouse for a movement, in priority
// order: explicit field, carrier-label vocabulary, warehouse already holding
// the SKU in the current snapshot. A movement with no resolvable warehouse is
// rejected — cost and on-hand correctness depend on the destination, so it is
// never defaulted to an arbitrary warehouse.
func ResolveWarehouse(tx *gorm.DB, cfg config.InventoryConfig, explicit, carrierHint, sku string) (string, error) {
	if code := NormalizeWarehouseCode(explicit); code != "" {
		return code, nil
	}
	if hint := strings.ToLower(strings.TrimSpace(carrierHint)); hint != "" {
		for _, rule := range cfg.CarrierRules {
			if strings.Contains(hint, strings.ToLower(rule.Match)) {
				return rule.Warehouse, nil
			}
		}
	}
	if sku != "" {
		code, err := models.FirstWarehouseForSku(tx, sku)
		if err != nil {
			return "", err
		}
		if code != "" {
			return code, nil
		}
	}
	return "", &utils.ValidationError{Table: "warehouse", LineId: sku, Reason: "warehouse unresolved"}
}

// GroupForWarehouse returns the snapshot group a warehouse code belongs to.
// Explicit code lists win; any code starting with a group's prefix is treated
// as a member even if not listed, to tolerate future warehouse codes.
func GroupForWarehouse(cfg config.InventoryConfig, code string) (string, bool) {
	for _, g := range cfg.Groups {
		for _, c := range g.Codes {
			if c == code {
				return g.Name, true
			}
		}
	}
	for _, g := range cfg.Groups {
		if g.Prefix != "" && strings.HasPrefix(code, g.Prefix) {
			return g.Name, true
		}
	}
	return "", false
}
