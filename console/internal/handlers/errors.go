package handlers

import (
	"errors"
	"net/http"

	"github.com/telhawk-systems/alarm-console/common/httputil"
	"github.com/telhawk-systems/alarm-console/console/internal/detail"
	"github.com/telhawk-systems/alarm-console/console/internal/store"
	"github.com/telhawk-systems/alarm-console/console/internal/synchronizer"
)

// Error codes returned alongside the message.
const (
	CodeInvalidRequest   = "invalid_request"
	CodeNotFound         = "alarm_not_found"
	CodeConflict         = "update_conflict"
	CodeDeleteRejected   = "delete_rejected"
	CodeStoreUnavailable = "store_unavailable"
	CodeStillProcessing  = "still_processing"
	CodeChangeRejected   = "change_rejected"
	CodeStoreError       = "store_error"
)

// statusFor maps a service error onto an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrAlarmNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, store.ErrUpdateConflict):
		return http.StatusConflict, CodeConflict
	case errors.Is(err, synchronizer.ErrDeleteRejected):
		return http.StatusConflict, CodeDeleteRejected
	case errors.Is(err, store.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, CodeStoreUnavailable
	case errors.Is(err, detail.ErrStillProcessing):
		return http.StatusTooManyRequests, CodeStillProcessing
	case errors.Is(err, detail.ErrChangeDisabled), errors.Is(err, detail.ErrValueNotAllowed):
		return http.StatusBadRequest, CodeChangeRejected
	default:
		return http.StatusBadGateway, CodeStoreError
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	httputil.WriteCodedError(w, status, code, err.Error())
}
