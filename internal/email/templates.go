package email

import (
	"bytes"
	"html/template"
	textTemplate "text/template"

	ierr "github.com/petalpost/petalpost/internal/errors"
)

// InvoiceView is the data every invoice template renders
type InvoiceView struct {
	InvoiceNumber string
	CustomerName  string
	CycleMonth    string
	AmountDue     string
	Currency      string
	IsTopup       bool
	IsProrated    bool
	DeliveryDates []string
	LineItems     []InvoiceLine
	PaymentLink   string
}

// InvoiceLine is one priced row in the email body
type InvoiceLine struct {
	Description string
	Amount      string
}

// Renderer turns an invoice view into subject and bodies
type Renderer interface {
	RenderInvoice(view *InvoiceView) (subject, html, text string, err error)
}

const invoiceSubject = `{{if .IsTopup}}Top-up invoice{{else}}Your flower invoice{{end}} {{.InvoiceNumber}} for {{.CycleMonth}}`

const invoiceHTML = `<p>Hi {{.CustomerName}},</p>
<p>{{if .IsTopup}}Your plan changed after this month was paid, so here is the difference.{{else}}Here is your invoice for {{.CycleMonth}}{{if .IsProrated}}, covering only the deliveries still ahead of you{{end}}.{{end}}</p>
<table>
{{range .LineItems}}<tr><td>{{.Description}}</td><td>{{$.Currency}} {{.Amount}}</td></tr>
{{end}}<tr><td><strong>Amount due</strong></td><td><strong>{{.Currency}} {{.AmountDue}}</strong></td></tr>
</table>
{{if .DeliveryDates}}<p>Deliveries: {{range $i, $d := .DeliveryDates}}{{if $i}}, {{end}}{{$d}}{{end}}</p>{{end}}
{{if .PaymentLink}}<p><a href="{{.PaymentLink}}">Pay now</a></p>{{end}}
`

const invoiceText = `Hi {{.CustomerName}},

Invoice {{.InvoiceNumber}} for {{.CycleMonth}}
{{range .LineItems}}- {{.Description}}: {{$.Currency}} {{.Amount}}
{{end}}Amount due: {{.Currency}} {{.AmountDue}}
{{if .PaymentLink}}
Pay now: {{.PaymentLink}}
{{end}}`

type templateRenderer struct {
	subject *textTemplate.Template
	html    *template.Template
	text    *textTemplate.Template
}

// NewTemplateRenderer parses the built-in invoice templates
func NewTemplateRenderer() Renderer {
	return &templateRenderer{
		subject: textTemplate.Must(textTemplate.New("subject").Parse(invoiceSubject)),
		html:    template.Must(template.New("html").Parse(invoiceHTML)),
		text:    textTemplate.Must(textTemplate.New("text").Parse(invoiceText)),
	}
}

func (r *templateRenderer) RenderInvoice(view *InvoiceView) (string, string, string, error) {
	var subject, html, text bytes.Buffer
	if err := r.subject.Execute(&subject, view); err != nil {
		return "", "", "", renderErr(err)
	}
	if err := r.html.Execute(&html, view); err != nil {
		return "", "", "", renderErr(err)
	}
	if err := r.text.Execute(&text, view); err != nil {
		return "", "", "", renderErr(err)
	}
	return subject.String(), html.String(), text.String(), nil
}

func renderErr(err error) error {
	return ierr.WithError(err).
		WithHint("Invoice email could not be rendered").
		Mark(ierr.ErrSystem)
}
