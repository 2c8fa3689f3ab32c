package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"expensewizard/internal/core"
	"expensewizard/internal/log"
	"expensewizard/internal/wizard"
)

const (
	msgSaved    = "saved"
	msgTryAgain = "could not save the expense, please try again"
)

type fieldMessage struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Fields  []fieldMessage `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// writeError maps a domain error to a status and a user-facing message.
// validationStatus is the status used for field errors; the plain API and
// the wizard differ there.
func writeError(w http.ResponseWriter, r *http.Request, err error, validationStatus int) {
	logger := log.FromContext(r.Context())

	var (
		stepErr *wizard.StepError
		verrs   core.ValidationErrors
		tooBig  *http.MaxBytesError
	)
	switch {
	case errors.As(err, &tooBig):
		writeMessage(w, http.StatusRequestEntityTooLarge, "too_large", "request body too large")
	case errors.Is(err, errBadRequest):
		writeMessage(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.As(err, &stepErr):
		writeJSON(w, validationStatus, validationResponse(stepErr.Errs))
	case errors.As(err, &verrs):
		writeJSON(w, validationStatus, validationResponse(verrs))
	case errors.Is(err, wizard.ErrSubmissionInFlight):
		writeMessage(w, http.StatusConflict, "submission_in_flight", "a submission is already in progress")
	case errors.Is(err, wizard.ErrNotLastStep):
		writeMessage(w, http.StatusConflict, "not_last_step", "finish the remaining steps before submitting")
	case errors.Is(err, wizard.ErrUnknownField):
		writeMessage(w, http.StatusBadRequest, "unknown_field", err.Error())
	case errors.Is(err, core.ErrAttachmentResolution):
		logger.WarnContext(r.Context(), "Receipt could not be stored",
			log.FieldOperation, log.OpResolve,
			log.FieldError, err)
		writeMessage(w, http.StatusUnprocessableEntity, "attachment_failed", "the receipt could not be stored, please try again")
	case errors.Is(err, core.ErrPersistenceFailure):
		writeMessage(w, http.StatusInternalServerError, "persistence_failed", msgTryAgain)
	default:
		logger.ErrorContext(r.Context(), "Unhandled request error",
			log.FieldErrorType, log.ErrorTypeInternal,
			log.FieldError, err)
		writeMessage(w, http.StatusInternalServerError, "internal_error", msgTryAgain)
	}
}

func validationResponse(errs core.ValidationErrors) errorResponse {
	resp := errorResponse{
		Error:   "validation_failed",
		Message: "please fix " + strings.Join(errs.Fields(), ", "),
		Fields:  make([]fieldMessage, 0, len(errs)),
	}
	for _, fe := range errs {
		resp.Fields = append(resp.Fields, fieldMessage{Field: fe.Field, Message: fe.Err.Error()})
	}
	return resp
}
