package agent

import (
	"strings"
	"testing"

	"github.com/docuflow/waagent/pkg/config"
)

func TestFormatMessageSubstitutesAllFields(t *testing.T) {
	doc := DocumentSummary{
		InvoiceNumber: "INV-2026-014",
		Date:          "2026-08-30T14:02:11",
		VendorName:    "Acme Trading Co",
		VATID:         "310123456700003",
		Currency:      "SAR",
		Total:         1150,
		VATTotal:      150,
		LineItems: []LineItem{
			{Description: "Office chairs", Quantity: 4, UnitPrice: 250},
		},
	}

	got := FormatMessage(config.DefaultTemplate, doc)

	for _, want := range []string{
		"Invoice #INV-2026-014",
		"2026-08-30",          // time component stripped
		"Acme Trading Co",
		"310123456700003",
		"1. Office chairs",
		"4 x 250.00 = 1,000.00",
		"SAR 1,000.00",        // subtotal
		"VAT (15%)",
		"SAR 1,150.00",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("formatted message missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "{") {
		t.Errorf("unsubstituted placeholder remains:\n%s", got)
	}
}

func TestFormatMessageDefaults(t *testing.T) {
	got := FormatMessage(config.DefaultTemplate, DocumentSummary{})

	for _, want := range []string{
		"Invoice #Unknown",
		"*Date:* N/A",
		"*From:* Vendor",
		"*VAT ID:* N/A",
		"No items",
		"SAR 0.00",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("formatted message missing %q:\n%s", want, got)
		}
	}
}

func TestFormatMessageEmptyTemplate(t *testing.T) {
	if got := FormatMessage("", DocumentSummary{Total: 10}); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestFormatMessageUnknownPlaceholderUntouched(t *testing.T) {
	got := FormatMessage("{invoice_number} {mystery}", DocumentSummary{InvoiceNumber: "X1"})
	if got != "X1 {mystery}" {
		t.Errorf("got %q", got)
	}
}

func TestFormatLineItemsComputesMissingTotal(t *testing.T) {
	got := formatLineItems([]LineItem{
		{Description: "Paper", Quantity: 3, UnitPrice: 12.5},
		{Quantity: 1, UnitPrice: 5, LineTotal: 5},
	})

	if !strings.Contains(got, "3 x 12.50 = 37.50") {
		t.Errorf("computed line total missing:\n%s", got)
	}
	if !strings.Contains(got, "2. Item") {
		t.Errorf("description default missing:\n%s", got)
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.00"},
		{5, "5.00"},
		{1234.5, "1,234.50"},
		{1234567.891, "1,234,567.89"},
		{-9876.5, "-9,876.50"},
	}

	for _, tt := range tests {
		if got := formatAmount(tt.in); got != tt.want {
			t.Errorf("formatAmount(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
