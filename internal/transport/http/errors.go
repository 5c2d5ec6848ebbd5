package httptransport

import (
	"net/http"

	"github.com/teralab/chatorder/internal/apperr"
)

// kindToStatus maps error classification kinds to HTTP status codes.
// Recoverable conversation errors never reach this map: the engine turns
// them into a 200 recovery message. This mapping covers transport-level
// failures only.
var kindToStatus = map[string]int{
	apperr.KindValidation:      http.StatusBadRequest,
	apperr.KindOutOfStock:      http.StatusServiceUnavailable,
	apperr.KindCollaborator:    http.StatusServiceUnavailable,
	apperr.KindPaymentProvider: http.StatusBadGateway,
	apperr.KindSessionExpired:  http.StatusGone,
	apperr.KindTimeout:         http.StatusGatewayTimeout,
	apperr.KindCanceled:        http.StatusRequestTimeout,
}

func httpStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if s, ok := kindToStatus[apperr.Kind(err)]; ok {
		return s
	}
	return http.StatusInternalServerError
}
