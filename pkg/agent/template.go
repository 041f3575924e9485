package agent

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// LineItem is one invoice line in a document summary.
type LineItem struct {
	Description string
	Quantity    float64
	UnitPrice   float64
	LineTotal   float64
}

// DocumentSummary holds the extracted fields used to format an outbound
// message from the template.
type DocumentSummary struct {
	InvoiceNumber string
	Date          string
	VendorName    string
	VATID         string
	Currency      string
	Total         float64
	VATTotal      float64
	LineItems     []LineItem
}

// FormatMessage substitutes the summary's fields into the template.
// Unknown placeholders are left untouched; missing values render as
// sensible defaults so the message is always presentable.
func FormatMessage(template string, doc DocumentSummary) string {
	if template == "" {
		return ""
	}

	date := doc.Date
	if idx := strings.Index(date, "T"); idx > 0 {
		date = date[:idx]
	}
	if date == "" {
		date = "N/A"
	}

	subtotal := doc.Total - doc.VATTotal
	if subtotal < 0 {
		subtotal = doc.Total
	}

	vatRate := 15.0
	if subtotal > 0 {
		vatRate = math.Round(doc.VATTotal / subtotal * 100)
	}

	vendor := doc.VendorName
	if vendor == "" {
		vendor = "Vendor"
	}
	vatID := doc.VATID
	if vatID == "" {
		vatID = "N/A"
	}
	number := doc.InvoiceNumber
	if number == "" {
		number = "Unknown"
	}
	currency := doc.Currency
	if currency == "" {
		currency = "SAR"
	}

	replacements := map[string]string{
		"{vendor_name}":    vendor,
		"{vat_id}":         vatID,
		"{invoice_number}": number,
		"{total}":          formatAmount(doc.Total),
		"{subtotal}":       formatAmount(subtotal),
		"{vat_total}":      formatAmount(doc.VATTotal),
		"{vat_rate}":       strconv.FormatFloat(vatRate, 'f', -1, 64),
		"{currency}":       currency,
		"{date}":           date,
		"{line_items}":     formatLineItems(doc.LineItems),
	}

	text := template
	for placeholder, value := range replacements {
		text = strings.ReplaceAll(text, placeholder, value)
	}
	return text
}

// formatLineItems renders line items as a numbered, readable list.
func formatLineItems(items []LineItem) string {
	if len(items) == 0 {
		return "No items"
	}

	var lines []string
	for i, item := range items {
		desc := item.Description
		if desc == "" {
			desc = "Item"
		}
		total := item.LineTotal
		if total == 0 {
			total = item.Quantity * item.UnitPrice
		}
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, desc))
		lines = append(lines, fmt.Sprintf("   %s x %s = %s",
			strconv.FormatFloat(item.Quantity, 'f', -1, 64),
			formatAmount(item.UnitPrice),
			formatAmount(total)))
	}
	return strings.Join(lines, "\n")
}

// formatAmount renders a monetary value with thousands separators and two
// decimals.
func formatAmount(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}

	s := strconv.FormatFloat(v, 'f', 2, 64)
	parts := strings.SplitN(s, ".", 2)
	intPart := parts[0]

	var b strings.Builder
	for i, digit := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteRune(',')
		}
		b.WriteRune(digit)
	}

	out := b.String() + "." + parts[1]
	if neg {
		out = "-" + out
	}
	return out
}
