package email_filter

import (
	"strings"

	"github.com/customeros/mailscan/interfaces"
)

// DefaultInvoiceKeywords are used when no keywords are configured.
var DefaultInvoiceKeywords = []string{
	"invoice", "bill", "payment", "due date", "amount due", "total", "tax", "subtotal",
}

type invoiceClassifier struct {
	keywords []string
}

// NewInvoiceClassifier builds a keyword classifier. Keywords are matched as
// case-insensitive substrings.
func NewInvoiceClassifier(keywords []string) interfaces.InvoiceClassifier {
	normalized := make([]string, 0, len(keywords))
	seen := make(map[string]bool, len(keywords))
	for _, keyword := range keywords {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword == "" || seen[keyword] {
			continue
		}
		seen[keyword] = true
		normalized = append(normalized, keyword)
	}
	if len(normalized) == 0 {
		normalized = append(normalized, DefaultInvoiceKeywords...)
	}
	return &invoiceClassifier{keywords: normalized}
}

func (c *invoiceClassifier) Classify(text string) bool {
	if text == "" {
		return false
	}
	lowerText := strings.ToLower(text)
	for _, keyword := range c.keywords {
		if strings.Contains(lowerText, keyword) {
			return true
		}
	}
	return false
}

// MatchedKeywords lists every configured keyword found in text, in
// configuration order.
func (c *invoiceClassifier) MatchedKeywords(text string) []string {
	if text == "" {
		return nil
	}
	lowerText := strings.ToLower(text)
	var matched []string
	for _, keyword := range c.keywords {
		if strings.Contains(lowerText, keyword) {
			matched = append(matched, keyword)
		}
	}
	return matched
}
