package invoices

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bizcore/internal/inventory"
	"github.com/odyssey-erp/bizcore/internal/shared"
)

var (
	// DefaultTaxRate is the percent applied when no rate is given.
	DefaultTaxRate = decimal.NewFromInt(10)

	hundred = decimal.NewFromInt(100)
)

// NormalizeItems drops empty inventory links, trims descriptions and numbers
// the lines from 1. The input slice is not modified.
func NormalizeItems(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	for i, item := range items {
		if item.InventoryID != nil && *item.InventoryID == 0 {
			item.InventoryID = nil
		}
		item.Description = strings.TrimSpace(item.Description)
		item.LineNo = i + 1
		out[i] = item
	}
	return out
}

// RecomputeTotals derives every line total and the invoice totals from
// quantity, price and the tax rate percent. A nil rate uses DefaultTaxRate.
// A non-zero caller-supplied line total that disagrees with quantity x price
// yields *InconsistentTotalsError.
func RecomputeTotals(items []LineItem, taxRate *decimal.Decimal) (Totals, []LineItem, error) {
	rate := DefaultTaxRate
	if taxRate != nil {
		rate = *taxRate
	}
	if rate.IsNegative() || rate.GreaterThan(hundred) {
		return Totals{}, nil, shared.Invalid("tax_rate", "must be between 0 and 100")
	}
	if len(items) == 0 {
		return Totals{}, nil, shared.Invalid("items", "must contain at least 1 entries")
	}
	lines := NormalizeItems(items)
	subtotal := decimal.Zero
	for i := range lines {
		line := &lines[i]
		field := fmt.Sprintf("items[%d]", i)
		if line.Description == "" {
			return Totals{}, nil, shared.Invalid(field+".description", "is required")
		}
		if line.Quantity <= 0 {
			return Totals{}, nil, shared.Invalid(field+".quantity", "must be greater than 0")
		}
		if line.Price.IsNegative() {
			return Totals{}, nil, shared.Invalid(field+".price", "must not be negative")
		}
		expected := line.Price.Mul(decimal.NewFromInt(line.Quantity))
		if !line.Total.IsZero() && !line.Total.Equal(expected) {
			return Totals{}, nil, &InconsistentTotalsError{LineNo: line.LineNo, Expected: expected, Given: line.Total}
		}
		line.Total = expected
		subtotal = subtotal.Add(expected)
	}
	tax := subtotal.Mul(rate).Div(hundred)
	return Totals{
		TaxRate:    rate,
		Subtotal:   subtotal,
		TaxTotal:   tax,
		GrandTotal: subtotal.Add(tax),
	}, lines, nil
}

func stockLines(lines []LineItem) []inventory.StockLine {
	out := make([]inventory.StockLine, 0, len(lines))
	for _, line := range lines {
		if line.InventoryID == nil {
			continue
		}
		out = append(out, inventory.StockLine{
			ItemID:      *line.InventoryID,
			Quantity:    line.Quantity,
			Description: line.Description,
		})
	}
	return out
}
