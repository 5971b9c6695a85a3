package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Resinat/Relayview/internal/orchestrator"
	"github.com/Resinat/Relayview/internal/surface"
)

// Error codes of the error envelope.
const (
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeUnavailable     = "UNAVAILABLE"
	CodePayloadTooLarge = "PAYLOAD_TOO_LARGE"
	CodeInternal        = "INTERNAL"
)

func writeInvalidArgument(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeInvalidArgument, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

func writePayloadTooLarge(w http.ResponseWriter, limit int64) {
	msg := "request body too large"
	if limit > 0 {
		msg = "request body too large (max " + strconv.FormatInt(limit, 10) + " bytes)"
	}
	WriteError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge, msg)
}

func writeDecodeBodyError(w http.ResponseWriter, err error) {
	var tooLarge *requestBodyTooLargeError
	if errors.As(err, &tooLarge) {
		writePayloadTooLarge(w, tooLarge.Limit)
		return
	}
	writeInvalidArgument(w, err.Error())
}

// writeDomainError maps orchestrator and surface errors to HTTP responses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		WriteError(w, http.StatusInternalServerError, CodeInternal, "internal server error")
	case errors.Is(err, orchestrator.ErrInvalidDescriptor), errors.Is(err, surface.ErrUnknownCommand):
		writeInvalidArgument(w, err.Error())
	case errors.Is(err, surface.ErrNotConnected):
		WriteError(w, http.StatusServiceUnavailable, CodeUnavailable, err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, CodeInternal, "internal server error")
	}
}
