package dto

// EmailProcessed is published after an email record is persisted.
type EmailProcessed struct {
	EmailID            string `json:"emailId"`
	MessageID          string `json:"messageId"`
	BatchID            string `json:"batchId"`
	Subject            string `json:"subject"`
	Sender             string `json:"sender"`
	IsInvoice          bool   `json:"isInvoice"`
	AttachmentCount    int    `json:"attachmentCount"`
	InvoiceAttachments int    `json:"invoiceAttachments"`
}

// FetchRequested asks a consumer to run one batch.
type FetchRequested struct {
	RequestedBy string `json:"requestedBy"`
}
