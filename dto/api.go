package dto

type DownloadAttachmentRequest struct {
	Filename string `json:"filename"`
}

type FetchEmailsResponse struct {
	Message string `json:"message"`
	BatchResult
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Details string `json:"details,omitempty"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
