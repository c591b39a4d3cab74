package errors

import (
	"net/http"

	"github.com/pkg/errors"

	"github.com/customeros/mailscan/dto"
	mailscan_errors "github.com/customeros/mailscan/errors"
)

// HTTPStatus maps a pipeline error to the response code the REST surface
// returns for it.
func HTTPStatus(err error) int {
	if errors.Is(err, mailscan_errors.ErrBatchInProgress) {
		return http.StatusConflict
	}

	switch mailscan_errors.KindOf(err) {
	case mailscan_errors.KindInvalidKey:
		return http.StatusBadRequest
	case mailscan_errors.KindNotFound:
		return http.StatusNotFound
	case mailscan_errors.KindConnection, mailscan_errors.KindAuth, mailscan_errors.KindProtocol:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func NewErrorResponse(message string, err error) dto.ErrorResponse {
	response := dto.ErrorResponse{Error: message}
	if err == nil {
		return response
	}
	if kind := mailscan_errors.KindOf(err); kind != mailscan_errors.KindUnknown {
		response.Kind = string(kind)
	}
	response.Details = err.Error()
	return response
}
