package workflow

import (
	"strings"

	"bitbucket.org/ridgelinecs/supplements_backend/models"
	"github.com/shopspring/decimal"
)

// RequiredItem is one row of the code-required / commonly-omitted items
// table. The table is data-only: new trades extend it by appending rows,
// the matching logic below never changes per trade.
type RequiredItem struct {
	Trade        models.TradeType
	Code         string
	Description  string
	CodeCitation string
	Unit         string
	// MinQtyPerSquare, when set, is the plausibility floor for the carrier's
	// quantity relative to the roof size: carrier qty below
	// MinQtyPerSquare * totalSquares flags the line as underscoped.
	MinQtyPerSquare decimal.Decimal
	// Keywords matched (case-insensitive, substring) against carrier line
	// descriptions when the code itself does not match.
	Keywords []string
	// TypicalUnitValue prices the delta estimate when the carrier omitted
	// the item entirely.
	TypicalUnitValue decimal.Decimal
}

var requiredItemsTable = []RequiredItem{
	{
		Trade:            models.TradeTypeRoofing,
		Code:             "RFG DRIP",
		Description:      "Drip edge",
		CodeCitation:     "IRC R905.2.8.5",
		Unit:             "LF",
		MinQtyPerSquare:  decimal.NewFromInt(10),
		Keywords:         []string{"drip edge", "drip-edge"},
		TypicalUnitValue: decimal.NewFromFloat(2.85),
	},
	{
		Trade:            models.TradeTypeRoofing,
		Code:             "RFG IWS",
		Description:      "Ice & water shield",
		CodeCitation:     "IRC R905.1.2",
		Unit:             "SF",
		Keywords:         []string{"ice & water", "ice and water", "ice/water"},
		TypicalUnitValue: decimal.NewFromFloat(1.95),
	},
	{
		Trade:            models.TradeTypeRoofing,
		Code:             "RFG FELT",
		Description:      "Roofing felt / underlayment",
		CodeCitation:     "IRC R905.1.1",
		Unit:             "SQ",
		MinQtyPerSquare:  decimal.NewFromInt(1),
		Keywords:         []string{"felt", "underlayment", "synthetic"},
		TypicalUnitValue: decimal.NewFromFloat(32.50),
	},
	{
		Trade:            models.TradeTypeRoofing,
		Code:             "RFG STEP",
		Description:      "Step flashing",
		CodeCitation:     "IRC R903.2",
		Unit:             "LF",
		Keywords:         []string{"step flashing"},
		TypicalUnitValue: decimal.NewFromFloat(9.40),
	},
	{
		Trade:            models.TradeTypeRoofing,
		Code:             "RFG RIDGC",
		Description:      "Ridge cap shingles",
		CodeCitation:     "Manufacturer spec",
		Unit:             "LF",
		Keywords:         []string{"ridge cap", "hip/ridge", "hip and ridge"},
		TypicalUnitValue: decimal.NewFromFloat(7.10),
	},
	{
		Trade:            models.TradeTypeRoofing,
		Code:             "RFG VENT",
		Description:      "Ridge vent / attic ventilation",
		CodeCitation:     "IRC R806.1",
		Unit:             "LF",
		Keywords:         []string{"ridge vent", "vent"},
		TypicalUnitValue: decimal.NewFromFloat(11.25),
	},
	{
		Trade:            models.TradeTypeSiding,
		Code:             "SDG WRAP",
		Description:      "House wrap / weather-resistive barrier",
		CodeCitation:     "IRC R703.2",
		Unit:             "SF",
		Keywords:         []string{"house wrap", "housewrap", "weather barrier", "tyvek"},
		TypicalUnitValue: decimal.NewFromFloat(0.75),
	},
	{
		Trade:            models.TradeTypeSiding,
		Code:             "SDG STRT",
		Description:      "Starter strip",
		CodeCitation:     "Manufacturer spec",
		Unit:             "LF",
		Keywords:         []string{"starter strip", "starter course"},
		TypicalUnitValue: decimal.NewFromFloat(3.20),
	},
	{
		Trade:            models.TradeTypeGutters,
		Code:             "GTR DSP",
		Description:      "Downspouts",
		CodeCitation:     "IRC P2602",
		Unit:             "LF",
		Keywords:         []string{"downspout"},
		TypicalUnitValue: decimal.NewFromFloat(8.90),
	},
	{
		Trade:            models.TradeTypeInterior,
		Code:             "INT SEAL",
		Description:      "Seal/prime before painting",
		CodeCitation:     "Industry standard",
		Unit:             "SF",
		Keywords:         []string{"seal", "prime", "kilz"},
		TypicalUnitValue: decimal.NewFromFloat(0.65),
	},
}

// RequiredItemsForTrade returns the table rows for one trade.
func RequiredItemsForTrade(trade models.TradeType) []RequiredItem {
	var items []RequiredItem
	for _, item := range requiredItemsTable {
		if item.Trade == trade {
			items = append(items, item)
		}
	}
	return items
}

// matchesLineItem reports whether a carrier line item covers this required
// item, by code prefix first, then by description keyword.
func (r RequiredItem) matchesLineItem(item models.ScopeLineItem) bool {
	if r.Code != "" && item.Code != "" {
		if strings.EqualFold(strings.TrimSpace(item.Code), r.Code) ||
			strings.HasPrefix(strings.ToUpper(strings.TrimSpace(item.Code)), r.Code) {
			return true
		}
	}
	desc := strings.ToLower(item.Description)
	for _, kw := range r.Keywords {
		if strings.Contains(desc, kw) {
			return true
		}
	}
	return false
}
