package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"VibingStorage/logger"
	"VibingStorage/repository"
	"VibingStorage/storage"
)

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to encode response", logger.ErrorField(err))
	}
}

// statusFor maps catalog and storage errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case repository.IsValidation(err):
		return http.StatusBadRequest
	case repository.IsNotFound(err), errors.Is(err, storage.ErrNotExist):
		return http.StatusNotFound
	}
	if perr, ok := repository.IsPersistence(err); ok {
		switch perr.Kind {
		case repository.KindConstraint:
			return http.StatusConflict
		case repository.KindTimeout, repository.KindConnection:
			return http.StatusServiceUnavailable
		}
	}
	return http.StatusInternalServerError
}

// writeError logs err under op and answers with its mapped status. Server
// side failures never leak their message to the client.
func writeError(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		logger.Error("["+op+"] request failed", logger.ErrorField(err))
		msg = http.StatusText(status)
	} else {
		logger.Debug("["+op+"] request rejected", logger.Int("status", status), logger.ErrorField(err))
	}
	http.Error(w, msg, status)
}
