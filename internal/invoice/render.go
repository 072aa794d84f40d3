package invoice

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/ariefcatur/go-storefront/internal/orders"
)

type Invoice struct {
	To      string
	Subject string
	Body    string
}

var invoiceTmpl = template.Must(template.New("invoice").Parse(`Hello,

Thank you for your order {{.Order.ID}}.
Payment reference: {{.TransactionID}}

{{range .Order.Items}}{{.ProductName}} x{{.Quantity}} @ {{.Price.StringFixed 2}} = {{.Subtotal.StringFixed 2}}
{{end}}
Total: {{.Order.Total.StringFixed 2}}
Status: {{.Order.Status}}
`))

// Render builds the invoice mail for o.
func Render(o orders.Order, p Payload) (Invoice, error) {
	var buf bytes.Buffer
	err := invoiceTmpl.Execute(&buf, struct {
		Order         orders.Order
		TransactionID string
	}{o, p.TransactionID})
	if err != nil {
		return Invoice{}, fmt.Errorf("render invoice: %w", err)
	}
	to := p.Email
	if to == "" {
		to = o.UserEmail
	}
	return Invoice{
		To:      to,
		Subject: fmt.Sprintf("Invoice for order %s", o.ID),
		Body:    buf.String(),
	}, nil
}
