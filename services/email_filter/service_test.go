package email_filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInvoiceClassifier_Classify(t *testing.T) {
	classifier := NewInvoiceClassifier(DefaultInvoiceKeywords)

	tests := []struct {
		name     string
		text     string
		expected bool
	}{
		{"bill keyword", "Please find attached your Bill", true},
		{"no keyword", "Meeting notes for Tuesday", false},
		{"empty text", "", false},
		{"upper case", "INVOICE #2024-001", true},
		{"mixed case phrase", "Amount Due: 120 EUR", true},
		{"substring match", "Subtotal 50.00", true},
		{"multi line ocr", "ACME Ltd\nItem 1\nTOTAL 99.00\n", true},
		{"whitespace only", "   \n\t", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, classifier.Classify(tt.text))
		})
	}
}

func TestInvoiceClassifier_ConfigurableKeywords(t *testing.T) {
	classifier := NewInvoiceClassifier([]string{" Rechnung ", "FACTURE", ""})

	assert.True(t, classifier.Classify("Ihre rechnung vom 1. Mai"))
	assert.True(t, classifier.Classify("Votre facture"))
	assert.False(t, classifier.Classify("Your invoice"))
}

func TestInvoiceClassifier_EmptyConfigFallsBackToDefaults(t *testing.T) {
	classifier := NewInvoiceClassifier(nil)

	assert.True(t, classifier.Classify("invoice"))
	assert.True(t, classifier.Classify("tax"))
}

func TestInvoiceClassifier_MatchedKeywords(t *testing.T) {
	classifier := NewInvoiceClassifier(DefaultInvoiceKeywords)

	matched := classifier.MatchedKeywords("Invoice 42: Subtotal 10, Tax 2, Total 12")

	assert.Equal(t, []string{"invoice", "total", "tax", "subtotal"}, matched)
	assert.Nil(t, classifier.MatchedKeywords(""))
	assert.Empty(t, classifier.MatchedKeywords("hello"))
}
