package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/litterly/waste-classification-service/orchestrator"
	"github.com/litterly/waste-classification-service/vision"
)

type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"error"`
	Message string `json:"message"`
}

type errorMapping struct {
	StatusCode int
	Code       string
	Message    string
}

// mapClassifyError maps orchestrator outcomes to HTTP error responses.
func mapClassifyError(err error) errorMapping {
	var cerr *orchestrator.ClassificationError

	switch {
	case errors.Is(err, orchestrator.ErrMissingInput):
		return errorMapping{http.StatusBadRequest, "missing_input", MsgMissingInput}
	case errors.Is(err, orchestrator.ErrInvalidImageType):
		return errorMapping{http.StatusBadRequest, "invalid_image_type", MsgInvalidImageType}
	case errors.Is(err, vision.ErrModelNotLoaded):
		return errorMapping{http.StatusInternalServerError, "model_not_loaded", MsgModelNotLoaded}
	case errors.As(err, &cerr):
		msg := cerr.Message
		if cerr.Cause != nil {
			msg = cerr.Cause.Error()
		}
		return errorMapping{http.StatusInternalServerError, "classification_failed", msg}
	default:
		return errorMapping{http.StatusInternalServerError, "internal_error", MsgPredictionFailed}
	}
}

func writeClassifyError(w http.ResponseWriter, err error) {
	m := mapClassifyError(err)
	sendErrorResponse(w, m.Code, m.Message, m.StatusCode)
}

func sendErrorResponse(w http.ResponseWriter, code, message string, status int) {
	writeJSON(w, status, ErrorResponse{
		Success: false,
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
