package http

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"

	"expensewizard/internal/core"
	"expensewizard/internal/log"
	"expensewizard/internal/wizard"
)

type attachmentView struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int    `json:"size"`
}

type recordView struct {
	User        string          `json:"user"`
	Category    string          `json:"category"`
	SubCategory string          `json:"subCategory"`
	Description string          `json:"description"`
	Amount      string          `json:"amount"`
	Date        string          `json:"date"`
	ReceiptURL  string          `json:"receiptUrl"`
	Notes       string          `json:"notes"`
	Attachment  *attachmentView `json:"attachment,omitempty"`
}

type wizardView struct {
	ID         string          `json:"id"`
	Step       int             `json:"step"`
	Total      int             `json:"total"`
	StepID     wizard.StepID   `json:"stepId"`
	Title      string          `json:"title"`
	Fields     []string        `json:"fields"`
	Options    []string        `json:"options,omitempty"`
	CanAdvance bool            `json:"canAdvance"`
	Submitting bool            `json:"submitting"`
	Visible    []wizard.StepID `json:"visibleSteps"`
	Record     recordView      `json:"record"`
}

// view renders the engine state together with the choices the current step offers.
func (s *Server) view(id string, st wizard.State) wizardView {
	d := st.Draft
	v := wizardView{
		ID:         id,
		Step:       st.Step,
		Total:      st.Total,
		StepID:     st.Current.ID,
		Title:      st.Current.Title,
		Fields:     st.Current.Fields,
		CanAdvance: st.CanAdvance,
		Submitting: st.Submitting,
		Visible:    st.Visible,
		Record: recordView{
			User:        d.User,
			Category:    d.Category,
			SubCategory: d.SubCategory,
			Description: d.Description,
			Amount:      d.Amount,
			Date:        d.Date.String(),
			ReceiptURL:  d.ReceiptURL,
			Notes:       d.Notes,
		},
	}
	if d.Attachment.HasReceipt() {
		v.Record.Attachment = &attachmentView{
			Filename:    d.Attachment.Filename,
			ContentType: d.Attachment.ContentType,
			Size:        len(d.Attachment.Data),
		}
	}

	switch st.Current.ID {
	case wizard.StepUser:
		v.Options = s.catalog.Users()
	case wizard.StepCategory:
		v.Options = s.catalog.Categories()
	case wizard.StepSubCategory:
		v.Options, _ = s.catalog.SubCategories(d.Category)
	}
	return v
}

// engine looks up the session named in the path, answering 404 when it is gone.
func (s *Server) engine(w http.ResponseWriter, r *http.Request) (string, *wizard.Engine, bool) {
	id := pathParam(r, "id")
	e, ok := s.sessions.Get(id)
	if !ok {
		writeMessage(w, http.StatusNotFound, "unknown_session", "wizard session not found or expired")
		return id, nil, false
	}
	return id, e, true
}

func (s *Server) handleCreateWizard(w http.ResponseWriter, r *http.Request) {
	id, e := s.sessions.Create()
	log.FromContext(r.Context()).DebugContext(r.Context(), "Wizard session started", log.FieldSession, id)
	writeJSON(w, http.StatusCreated, s.view(id, e.Snapshot()))
}

func (s *Server) handleGetWizard(w http.ResponseWriter, r *http.Request) {
	id, e, ok := s.engine(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.view(id, e.Snapshot()))
}

func (s *Server) handleDeleteWizard(w http.ResponseWriter, r *http.Request) {
	id, e, ok := s.engine(w, r)
	if !ok {
		return
	}
	if err := e.Reset(); err != nil {
		writeError(w, r, err, http.StatusUnprocessableEntity)
		return
	}
	s.sessions.Delete(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetField(w http.ResponseWriter, r *http.Request) {
	id, e, ok := s.engine(w, r)
	if !ok {
		return
	}
	var req fieldRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, http.StatusUnprocessableEntity)
		return
	}
	if err := e.SetField(pathParam(r, "field"), req.Value); err != nil {
		writeError(w, r, err, http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, http.StatusOK, s.view(id, e.Snapshot()))
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, (*wizard.Engine).Advance)
}

func (s *Server) handleRetreat(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, (*wizard.Engine).Retreat)
}

func (s *Server) transition(w http.ResponseWriter, r *http.Request, move func(*wizard.Engine) error) {
	id, e, ok := s.engine(w, r)
	if !ok {
		return
	}
	if err := move(e); err != nil {
		var stepErr *wizard.StepError
		if errors.As(err, &stepErr) {
			log.FromContext(r.Context()).DebugContext(r.Context(), "Step incomplete",
				log.FieldSession, id,
				log.FieldStep, string(stepErr.Step),
				log.FieldFields, stepErr.Fields())
		}
		writeError(w, r, err, http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, http.StatusOK, s.view(id, e.Snapshot()))
}

func (s *Server) handleAttachment(w http.ResponseWriter, r *http.Request) {
	id, e, ok := s.engine(w, r)
	if !ok {
		return
	}

	if r.ContentLength > s.maxUploadBytes {
		writeMessage(w, http.StatusRequestEntityTooLarge, "too_large", "the receipt is too large")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeMessage(w, http.StatusRequestEntityTooLarge, "too_large", "the receipt is too large")
			return
		}
		writeMessage(w, http.StatusBadRequest, "bad_request", "expected a multipart upload with a file field")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "bad_request", "expected a multipart upload with a file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, err, http.StatusUnprocessableEntity)
		return
	}
	if len(data) == 0 {
		writeMessage(w, http.StatusBadRequest, "empty_file", "the receipt is empty")
		return
	}

	att := &core.Attachment{
		Filename:    filepath.Base(header.Filename),
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}
	if err := e.Attach(att); err != nil {
		writeError(w, r, err, http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, http.StatusOK, s.view(id, e.Snapshot()))
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	id, e, ok := s.engine(w, r)
	if !ok {
		return
	}

	res, err := e.Submit(r.Context())
	if err != nil {
		writeError(w, r, err, http.StatusUnprocessableEntity)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Wizard submission saved",
		log.FieldSession, id,
		log.FieldOperation, log.OpSubmit,
		log.FieldExpenseID, res.PrimaryID(),
		log.FieldExternalID, res.ExternalID)

	resp := struct {
		submitResponse
		Wizard wizardView `json:"wizard"`
	}{newSubmitResponse(res), s.view(id, e.Snapshot())}
	writeJSON(w, http.StatusCreated, resp)
}
