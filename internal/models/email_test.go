package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmail_AggregateInvoiceFlag(t *testing.T) {
	tests := []struct {
		name        string
		attachments []EmailAttachment
		expected    bool
	}{
		{"no attachments", nil, false},
		{"none invoice", []EmailAttachment{{IsInvoice: false}, {IsInvoice: false}}, false},
		{"one invoice", []EmailAttachment{{IsInvoice: false}, {IsInvoice: true}}, true},
		{"all invoice", []EmailAttachment{{IsInvoice: true}, {IsInvoice: true}}, true},
		{"unavailable invoice still counts", []EmailAttachment{{IsInvoice: true, Unavailable: true}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			email := &Email{Attachments: tt.attachments, IsInvoice: !tt.expected}

			got := email.AggregateInvoiceFlag()

			assert.Equal(t, tt.expected, got)
			assert.Equal(t, tt.expected, email.IsInvoice)
		})
	}
}

func TestEmail_SubjectDoesNotAffectInvoiceFlag(t *testing.T) {
	email := &Email{Subject: "Invoice #42", Body: "amount due: 100"}

	assert.False(t, email.AggregateInvoiceFlag())
}
