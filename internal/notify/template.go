package notify

import (
	"bytes"
	"fmt"
	"text/template"
)

// Message kinds.
const (
	KindPayoutApproved       = "payout_approved"
	KindPayoutPaid           = "payout_paid"
	KindBulkPayoutsGenerated = "bulk_payouts_generated"
	KindPaymentInfoRequested = "payment_info_requested"
)

var defaultTemplates = map[string]string{
	KindPayoutApproved: `Payout {{.PeriodID}} approved
Vendor: {{.VendorName}}
Amount: {{printf "%.2f" .Amount}}
Approved by: {{.Actor}}{{if .Notes}}
Notes: {{.Notes}}{{end}}`,
	KindPayoutPaid: `Hello {{.VendorName}},

Your payout of {{printf "%.2f" .Amount}} has been sent.
Reference: {{.Reference}}
Method: {{.Method}}`,
	KindBulkPayoutsGenerated: `Bulk payouts generated for week starting {{.WeekStart}}
Processed: {{.Processed}} of {{.Total}} vendors`,
	KindPaymentInfoRequested: `Hello {{.VendorName}},

Please add or confirm your payout details (bank account or mobile money) in the vendor dashboard so we can settle your earnings.`,
}

var defaultSubjects = map[string]string{
	KindPayoutApproved:       "Payout approved",
	KindPayoutPaid:           "Your payout has been sent",
	KindBulkPayoutsGenerated: "Bulk payouts generated",
	KindPaymentInfoRequested: "Action needed: add your payout details",
}

// TemplateData provides fields for rendering notification content.
type TemplateData struct {
	PeriodID   string
	VendorName string
	Amount     float64
	Actor      string
	Notes      string
	Reference  string
	Method     string
	WeekStart  string
	Processed  int
	Total      int
}

// Templates renders message bodies by kind.
type Templates struct {
	bodies map[string]*template.Template
}

// NewTemplates parses the default templates, replaced by any overrides.
func NewTemplates(overrides map[string]string) (*Templates, error) {
	t := &Templates{bodies: make(map[string]*template.Template)}
	for kind, text := range defaultTemplates {
		if override, ok := overrides[kind]; ok && override != "" {
			text = override
		}
		parsed, err := template.New(kind).Parse(text)
		if err != nil {
			return nil, fmt.Errorf("notify template %s: %w", kind, err)
		}
		t.bodies[kind] = parsed
	}
	return t, nil
}

// Render builds a message of the given kind.
func (t *Templates) Render(kind string, audience Audience, data TemplateData) (Message, error) {
	if t == nil {
		return Message{}, fmt.Errorf("notify template %s: nil templates", kind)
	}
	tpl, ok := t.bodies[kind]
	if !ok {
		return Message{}, fmt.Errorf("notify template %s: unknown kind", kind)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return Message{}, err
	}
	return Message{
		Kind:     kind,
		Audience: audience,
		Subject:  defaultSubjects[kind],
		Body:     buf.String(),
	}, nil
}
