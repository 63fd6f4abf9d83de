package panels

import (
	"github.com/mobitrack/fleet-monitor/internal/types"
)

// GridAuto selects the layout tier from the panel count.
const GridAuto = "auto"

// Supported layout tiers, smallest to largest.
var gridTiers = []types.GridConfig{
	{Columns: 2, Rows: 2, Layout: "2x2"},
	{Columns: 3, Rows: 3, Layout: "3x3"},
	{Columns: 4, Rows: 4, Layout: "4x4"},
	{Columns: 5, Rows: 4, Layout: "5x4"},
}

// GridFor computes the grid layout for a panel count. A non-auto override
// pins a specific tier regardless of count; unknown overrides fall back to
// the computed tier.
func GridFor(count int, override string) types.GridConfig {
	if override != "" && override != GridAuto {
		for _, tier := range gridTiers {
			if tier.Layout == override {
				return tier
			}
		}
	}

	switch {
	case count <= 4:
		return gridTiers[0]
	case count <= 9:
		return gridTiers[1]
	case count <= 16:
		return gridTiers[2]
	default:
		return gridTiers[3]
	}
}

// ValidOverride reports whether o names a supported tier or auto.
func ValidOverride(o string) bool {
	if o == GridAuto {
		return true
	}
	for _, tier := range gridTiers {
		if tier.Layout == o {
			return true
		}
	}
	return false
}

// positionFor maps a list index onto a grid slot.
func positionFor(index, columns int) types.GridPosition {
	return types.GridPosition{Row: index / columns, Col: index % columns}
}
