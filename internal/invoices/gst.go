package invoices

import "github.com/shopspring/decimal"

var (
	one     = decimal.NewFromInt(1)
	two     = decimal.NewFromInt(2)
	hundred = decimal.NewFromInt(100)
)

// TaxBreakdown splits a tax-inclusive total into its GST components.
// Prices are GST-inclusive, so the taxable value is backed out of the total.
type TaxBreakdown struct {
	GSTPercent   decimal.Decimal
	TaxableCents int64
	GSTCents     int64
	CGSTCents    int64
	SGSTCents    int64
}

// HalfPercent renders the per-component (CGST or SGST) rate.
func (t TaxBreakdown) HalfPercent() string {
	return t.GSTPercent.Div(two).String()
}

// computeGST backs the taxable value out of an inclusive total and splits the
// GST evenly into CGST and SGST. The components always sum to the total.
func computeGST(totalCents int, percent decimal.Decimal) TaxBreakdown {
	total := decimal.NewFromInt(int64(totalCents))
	divisor := one.Add(percent.Div(hundred))
	taxable := total.Div(divisor).Round(0)
	gst := total.Sub(taxable)
	cgst := gst.DivRound(two, 0)
	sgst := gst.Sub(cgst)
	return TaxBreakdown{
		GSTPercent:   percent,
		TaxableCents: taxable.IntPart(),
		GSTCents:     gst.IntPart(),
		CGSTCents:    cgst.IntPart(),
		SGSTCents:    sgst.IntPart(),
	}
}

// formatRupees renders a cent amount as a rupee string with two decimals.
func formatRupees(cents int64) string {
	return decimal.NewFromInt(cents).Div(hundred).StringFixed(2)
}
