package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datatools/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datatools/pkg/logging"
)

// ApiResponse is the envelope of every successful response.
type ApiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// ValidationErrorBody is returned with HTTP 400 for malformed requests.
type ValidationErrorBody struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	Fields  []apperrors.FieldError `json:"fields"`
}

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// ValidationErrorResponse writes HTTP 400 listing every invalid field.
func ValidationErrorResponse(w http.ResponseWriter, verr *apperrors.ValidationError) error {
	return WriteJSON(w, http.StatusBadRequest, ValidationErrorBody{
		Error:   "validation_failed",
		Message: verr.Error(),
		Fields:  verr.Fields,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// writeServiceError maps a service error to a response: validation errors to
// 400, missing resources to 404 and everything else to 500 with errorCode.
// The 500 body carries the sanitized error; the full error is only logged.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, err error, errorCode, logMessage string) {
	var writeErr error
	if verr, ok := apperrors.AsValidationError(err); ok {
		writeErr = ValidationErrorResponse(w, verr)
	} else if errors.Is(err, apperrors.ErrNotFound) {
		writeErr = ErrorResponse(w, http.StatusNotFound, "not_found", err.Error())
	} else {
		logger.Error(logMessage, zap.Error(err))
		writeErr = ErrorResponse(w, http.StatusInternalServerError, errorCode, logging.SanitizeError(err))
	}
	if writeErr != nil {
		logger.Error("Failed to write error response", zap.Error(writeErr))
	}
}

// writeData writes a success envelope with status.
func writeData(w http.ResponseWriter, logger *zap.Logger, status int, data any) {
	if err := WriteJSON(w, status, ApiResponse{Success: true, Data: data}); err != nil {
		logger.Error("Failed to write response", zap.Error(err))
	}
}
