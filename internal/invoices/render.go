package invoices

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/aurellebeauty/aurelle-backend/pkg/config"
	"github.com/aurellebeauty/aurelle-backend/pkg/db/models"
	pkgerrors "github.com/aurellebeauty/aurelle-backend/pkg/errors"
	"github.com/aurellebeauty/aurelle-backend/pkg/types"
)

// InvoiceLine is one billed order item.
type InvoiceLine struct {
	Name           string
	SKU            string
	Qty            int
	UnitPriceCents int64
	TotalCents     int64
}

// Invoice is the rendered tax invoice for a paid order.
type Invoice struct {
	Number          string
	IssuedAt        time.Time
	SellerName      string
	SellerGSTIN     string
	SellerAddress   string
	CustomerName    string
	ShippingAddress types.Address
	OrderNumber     int64
	Lines           []InvoiceLine
	SubtotalCents   int64
	DiscountCents   int64
	ShippingCents   int64
	Tax             TaxBreakdown
	TotalCents      int64
	Currency        string
}

var invoiceTemplate = template.Must(template.New("invoice").Funcs(template.FuncMap{
	"rupees": formatRupees,
}).Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #333;">
  <h2>{{.SellerName}}</h2>
  <p>{{.SellerAddress}}<br>GSTIN: {{.SellerGSTIN}}</p>
  <h3>Tax Invoice {{.Number}}</h3>
  <p>Order #{{.OrderNumber}} &middot; {{.IssuedAt.Format "02 Jan 2006"}}</p>
  <p><strong>Billed to</strong><br>{{.CustomerName}}<br>{{.ShippingAddress.Oneline}}</p>
  <table width="100%" cellpadding="6" border="1" style="border-collapse: collapse;">
    <tr><th>Item</th><th>SKU</th><th>Qty</th><th>Unit Price</th><th>Amount</th></tr>
    {{range .Lines}}
    <tr>
      <td>{{.Name}}</td>
      <td>{{.SKU}}</td>
      <td>{{.Qty}}</td>
      <td>{{rupees .UnitPriceCents}}</td>
      <td>{{rupees .TotalCents}}</td>
    </tr>
    {{end}}
  </table>
  <table cellpadding="4">
    <tr><td>Subtotal</td><td>{{rupees .SubtotalCents}}</td></tr>
    {{if .DiscountCents}}<tr><td>Discount</td><td>-{{rupees .DiscountCents}}</td></tr>{{end}}
    {{if .ShippingCents}}<tr><td>Shipping</td><td>{{rupees .ShippingCents}}</td></tr>{{end}}
    <tr><td>Taxable value</td><td>{{rupees .Tax.TaxableCents}}</td></tr>
    <tr><td>CGST ({{.Tax.HalfPercent}}%)</td><td>{{rupees .Tax.CGSTCents}}</td></tr>
    <tr><td>SGST ({{.Tax.HalfPercent}}%)</td><td>{{rupees .Tax.SGSTCents}}</td></tr>
    <tr><td><strong>Total ({{.Currency}})</strong></td><td><strong>{{rupees .TotalCents}}</strong></td></tr>
  </table>
  <p>Thank you for shopping with {{.SellerName}}.</p>
</body>
</html>`))

// buildInvoice assembles the invoice view of a paid order.
func buildInvoice(order *models.Order, invoiceNumber string, cfg config.InvoiceConfig, tax TaxBreakdown) *Invoice {
	inv := &Invoice{
		Number:          invoiceNumber,
		IssuedAt:        time.Now(),
		SellerName:      cfg.SellerName,
		SellerGSTIN:     cfg.SellerGSTIN,
		SellerAddress:   cfg.SellerAddress,
		CustomerName:    order.ShippingAddress.Name,
		ShippingAddress: order.ShippingAddress,
		OrderNumber:     order.OrderNumber,
		SubtotalCents:   int64(order.SubtotalCents),
		DiscountCents:   int64(order.DiscountCents),
		ShippingCents:   int64(order.ShippingCents),
		Tax:             tax,
		TotalCents:      int64(order.TotalCents),
		Currency:        order.Currency,
	}
	for _, item := range order.Items {
		inv.Lines = append(inv.Lines, InvoiceLine{
			Name:           item.Name,
			SKU:            item.SKU,
			Qty:            item.Qty,
			UnitPriceCents: int64(item.UnitPriceCents),
			TotalCents:     int64(item.TotalCents),
		})
	}
	return inv
}

func renderHTML(inv *Invoice) (string, error) {
	var buf bytes.Buffer
	if err := invoiceTemplate.Execute(&buf, inv); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "rendering invoice")
	}
	return buf.String(), nil
}

func invoiceNumberFor(prefix string, orderNumber int64) string {
	return fmt.Sprintf("%s-%d", prefix, orderNumber)
}
