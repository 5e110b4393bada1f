package pricing

import (
	"fmt"
	"strings"

	"craftline/internal/domain"
)

// Default returns the built-in catalog of central vacuum products and
// services. Seeded on startup; existing rows are never overwritten.
func Default() []domain.PricingEntry {
	return []domain.PricingEntry{
		{ItemType: "power_unit", Material: "PP650", UnitCost: 1200.00, Unit: "unit"},
		{ItemType: "power_unit", Material: "PP600", UnitCost: 950.00, Unit: "unit"},
		{ItemType: "power_unit", Material: "PP500", UnitCost: 700.00, Unit: "unit"},

		{ItemType: "hose", Material: "30ft_Crushproof", UnitCost: 150.00, Unit: "unit"},
		{ItemType: "hose", Material: "50ft_Retractable", UnitCost: 350.00, Unit: "unit"},
		{ItemType: "hose", Material: "60ft_Retractable", UnitCost: 400.00, Unit: "unit"},

		{ItemType: "attachment_set", Material: "Bare_Floor_Set", UnitCost: 120.00, Unit: "unit"},
		{ItemType: "attachment_set", Material: "Carpet_Comb_Electric_Pigtail_Set", UnitCost: 250.00, Unit: "unit"},
		{ItemType: "attachment_set", Material: "Premium_Tool_Kit", UnitCost: 180.00, Unit: "unit"},

		{ItemType: "part", Material: "HEPA_Filter", UnitCost: 75.00, Unit: "unit"},
		{ItemType: "part", Material: "Disposable_Bag_Pack", UnitCost: 40.00, Unit: "unit"},
		{ItemType: "part", Material: "Brush_Roll_Replacement", UnitCost: 60.00, Unit: "unit"},
		{ItemType: "part", Material: "Motor_Assembly", UnitCost: 450.00, Unit: "unit"},
		{ItemType: "part", Material: "Low_Voltage_Wiring", UnitCost: 3.50, Unit: "linear_ft"},

		{ItemType: "service", Material: "New_System_Installation", UnitCost: 750.00, Unit: "flat_fee"},
		{ItemType: "service", Material: "Additional_Inlet_Installation", UnitCost: 250.00, Unit: "unit"},
		{ItemType: "service", Material: "Service_Call_Diagnostic", UnitCost: 120.00, Unit: "flat_fee"},
		{ItemType: "service", Material: "Labor_Rate", UnitCost: 85.00, Unit: "per_hour"},
		{ItemType: "service", Material: "System_Tune_Up", UnitCost: 180.00, Unit: "flat_fee"},
		{ItemType: "service", Material: "Clog_Removal", UnitCost: 150.00, Unit: "flat_fee"},
		{ItemType: "service", Material: "Motor_Replacement_Labor", UnitCost: 170.00, Unit: "flat_fee"},
		{ItemType: "service", Material: "Shipping_Standard", UnitCost: 50.00, Unit: "flat_fee"},
	}
}

// Context renders catalog entries as prompt context, one line per entry.
func Context(entries []domain.PricingEntry) string {
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "- Item Type: %s, Material: %s, Unit Cost: $%g %s", e.ItemType, e.Material, e.UnitCost, e.Unit)
	}
	return b.String()
}

// Lookup finds an entry by material name, case-insensitively.
func Lookup(entries []domain.PricingEntry, material string) (domain.PricingEntry, bool) {
	for _, e := range entries {
		if strings.EqualFold(e.Material, material) {
			return e, true
		}
	}
	return domain.PricingEntry{}, false
}
