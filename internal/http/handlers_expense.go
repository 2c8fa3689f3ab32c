package http

import (
	"net/http"

	"expensewizard/internal/core"
	"expensewizard/internal/log"
	"expensewizard/internal/services"
	"expensewizard/internal/sheets"
)

type submitResponse struct {
	Message        string          `json:"message"`
	ID             int64           `json:"id"`
	ExternalSyncOK bool            `json:"externalSyncOk"`
	ExternalID     string          `json:"externalId,omitempty"`
	Expense        sheets.Document `json:"expense"`
}

func newSubmitResponse(res services.Result) submitResponse {
	return submitResponse{
		Message:        msgSaved,
		ID:             res.PrimaryID(),
		ExternalSyncOK: res.ExternalSyncOK,
		ExternalID:     res.ExternalID,
		Expense:        sheets.NewDocument(res.Expense),
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"categories":    s.catalog.Categories(),
		"miscellaneous": s.catalog.Miscellaneous(),
		"users":         s.catalog.Users(),
	})
}

func (s *Server) handleSubCategories(w http.ResponseWriter, r *http.Request) {
	category := pathParam(r, "category")
	subs, err := s.catalog.SubCategories(category)
	if err != nil {
		writeMessage(w, http.StatusNotFound, "unknown_category", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"category":      category,
		"subCategories": subs,
	})
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.service.ListExpenses(r.Context())
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to list expenses",
			log.FieldOperation, log.OpList,
			log.FieldErrorType, log.ErrorTypeDatabase,
			log.FieldError, err)
		writeMessage(w, http.StatusInternalServerError, "list_failed", "could not load expenses, please try again")
		return
	}

	docs := make([]sheets.Document, 0, len(expenses))
	for _, e := range expenses {
		docs = append(docs, sheets.NewDocument(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"expenses": docs})
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, http.StatusBadRequest)
		return
	}

	c, err := req.Candidate(core.DateOf(s.now()))
	if err != nil {
		writeError(w, r, err, http.StatusBadRequest)
		return
	}

	res, err := s.service.Submit(r.Context(), c, nil)
	if err != nil {
		writeError(w, r, err, http.StatusBadRequest)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Expense created",
		log.FieldOperation, log.OpCreate,
		log.FieldExpenseID, res.PrimaryID(),
		log.FieldCategory, res.Expense.Category,
		log.FieldAmount, res.Expense.Amount.String())
	writeJSON(w, http.StatusCreated, newSubmitResponse(res))
}
