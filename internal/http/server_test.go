package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensewizard/internal/attachments"
	"expensewizard/internal/catalog"
	"expensewizard/internal/core"
	"expensewizard/internal/metrics"
	"expensewizard/internal/middleware/ratelimit"
	"expensewizard/internal/services"
	"expensewizard/internal/sheets"
	"expensewizard/internal/sheets/memory"
	"expensewizard/internal/storage"
	"expensewizard/internal/wizard"
)

var fixedNow = func() time.Time { return time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC) }

// pngHeader is enough for http.DetectContentType to report image/png.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

type testEnv struct {
	deps   Deps
	store  *storage.MemoryStore
	mirror *memory.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	rules := core.NewRules(catalog.Default(), core.DefaultPolicy())
	store := storage.NewMemoryStore()
	mirror := memory.New()
	return &testEnv{
		deps: Deps{
			Service:    services.NewExpenseService(rules, store, mirror),
			Catalog:    catalog.Default(),
			Rules:      rules,
			Metrics:    metrics.New(),
			SessionTTL: time.Hour,
			Clock:      fixedNow,
		},
		store:  store,
		mirror: mirror,
	}
}

func (e *testEnv) handler() http.Handler {
	return NewServer(":0", e.deps).Handler
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func newWizard(t *testing.T, h http.Handler) wizardView {
	t.Helper()
	rr := do(t, h, http.MethodPost, "/api/wizards", nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[wizardView](t, rr)
}

func setField(t *testing.T, h http.Handler, id, field, value string) *httptest.ResponseRecorder {
	t.Helper()
	return do(t, h, http.MethodPut, "/api/wizards/"+id+"/fields/"+field, fieldRequest{Value: value})
}

func advance(t *testing.T, h http.Handler, id string) *httptest.ResponseRecorder {
	t.Helper()
	return do(t, h, http.MethodPost, "/api/wizards/"+id+"/advance", nil)
}

// fillWizard walks a new wizard to the receipt step for Tyler / Home / Cleaner / 45.
func fillWizard(t *testing.T, h http.Handler) string {
	t.Helper()
	id := newWizard(t, h).ID
	for _, f := range []struct{ field, value string }{
		{core.FieldUser, "Tyler"},
		{core.FieldCategory, "Home"},
		{core.FieldSubCategory, "Cleaner"},
		{core.FieldAmount, "45"},
	} {
		require.Equal(t, http.StatusOK, setField(t, h, id, f.field, f.value).Code)
		require.Equal(t, http.StatusOK, advance(t, h, id).Code)
	}
	rr := advance(t, h, id)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 7, decode[wizardView](t, rr).Step)
	return id
}

func TestHealthAndSecurityHeaders(t *testing.T) {
	h := newTestEnv(t).handler()

	rr := do(t, h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
}

func TestCategories(t *testing.T) {
	h := newTestEnv(t).handler()

	rr := do(t, h, http.MethodGet, "/api/categories", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode[struct {
		Categories    []string `json:"categories"`
		Miscellaneous string   `json:"miscellaneous"`
		Users         []string `json:"users"`
	}](t, rr)
	assert.Equal(t, catalog.Default().Categories(), body.Categories)
	assert.Equal(t, "Misc (please describe)", body.Miscellaneous)
	assert.Equal(t, []string{"Tyler", "Alexa"}, body.Users)

	tests := []struct {
		name     string
		path     string
		wantCode int
		wantSubs []string
	}{
		{"plain name", "/api/categories/Home/subcategories", http.StatusOK,
			[]string{"Utilities", "Furniture", "Maintenance", "Supplies", "Cleaner"}},
		{"escaped name", "/api/categories/Food%20%26%20Beverage/subcategories", http.StatusOK,
			[]string{"Groceries", "Restaurants", "Coffee", "Snacks"}},
		{"unknown", "/api/categories/Boats/subcategories", http.StatusNotFound, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, http.MethodGet, tt.path, nil)
			require.Equal(t, tt.wantCode, rr.Code, rr.Body.String())
			if tt.wantSubs != nil {
				got := decode[struct {
					SubCategories []string `json:"subCategories"`
				}](t, rr)
				assert.Equal(t, tt.wantSubs, got.SubCategories)
			}
		})
	}
}

func TestCreateExpense(t *testing.T) {
	env := newTestEnv(t)
	h := env.handler()

	valid := expenseRequest{
		User: "Tyler", Category: "Home", SubCategory: "Cleaner",
		Amount: "45", Date: "2024-03-15",
	}

	rr := do(t, h, http.MethodPost, "/api/expenses", valid)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	resp := decode[submitResponse](t, rr)
	assert.Equal(t, msgSaved, resp.Message)
	assert.Equal(t, int64(1), resp.ID)
	assert.True(t, resp.ExternalSyncOK)
	assert.Equal(t, "mem:1", resp.ExternalID)
	assert.Equal(t, "45.00", resp.Expense.Amount)
	assert.Equal(t, "2024-03-15", resp.Expense.Date)
	assert.Equal(t, "", resp.Expense.Description)

	require.Len(t, env.mirror.Documents(), 1)

	rr = do(t, h, http.MethodGet, "/api/expenses", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[struct {
		Expenses []sheets.Document `json:"expenses"`
	}](t, rr)
	require.Len(t, list.Expenses, 1)
	assert.Equal(t, resp.Expense, list.Expenses[0])
}

func TestCreateExpenseRejected(t *testing.T) {
	h := newTestEnv(t).handler()

	tests := []struct {
		name       string
		body       any
		wantCode   int
		wantFields []string
	}{
		{
			name:       "invalid amount",
			body:       expenseRequest{User: "Tyler", Category: "Home", SubCategory: "Cleaner", Amount: "-3", Date: "2024-03-15"},
			wantCode:   http.StatusBadRequest,
			wantFields: []string{core.FieldAmount},
		},
		{
			name:       "missing everything",
			body:       expenseRequest{},
			wantCode:   http.StatusBadRequest,
			wantFields: []string{core.FieldUser, core.FieldCategory, core.FieldSubCategory, core.FieldAmount},
		},
		{
			name:       "sub-category of another category",
			body:       expenseRequest{User: "Alexa", Category: "Home", SubCategory: "Vet", Amount: "10", Date: "2024-03-15"},
			wantCode:   http.StatusBadRequest,
			wantFields: []string{core.FieldSubCategory},
		},
		{
			name:       "malformed date",
			body:       expenseRequest{User: "Tyler", Category: "Home", SubCategory: "Cleaner", Amount: "10", Date: "15/03/2024"},
			wantCode:   http.StatusBadRequest,
			wantFields: []string{core.FieldDate},
		},
		{name: "malformed json", body: `{"user":`, wantCode: http.StatusBadRequest},
		{name: "unknown field", body: `{"user":"Tyler","colour":"red"}`, wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, http.MethodPost, "/api/expenses", tt.body)
			require.Equal(t, tt.wantCode, rr.Code, rr.Body.String())
			if tt.wantFields == nil {
				return
			}
			resp := decode[errorResponse](t, rr)
			var fields []string
			for _, f := range resp.Fields {
				fields = append(fields, f.Field)
			}
			assert.Equal(t, tt.wantFields, fields)
			assert.True(t, strings.HasPrefix(resp.Message, "please fix "), resp.Message)
		})
	}
}

func TestCreateExpenseDefaultsDateToToday(t *testing.T) {
	env := newTestEnv(t)
	h := env.handler()

	for _, date := range []string{"", "   "} {
		rr := do(t, h, http.MethodPost, "/api/expenses", expenseRequest{
			User: "Tyler", Category: "Home", SubCategory: "Cleaner", Amount: "45", Date: date,
		})
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		assert.Equal(t, "2024-05-01", decode[submitResponse](t, rr).Expense.Date)
	}
}

func TestCreateExpenseExternalFailureStillSaved(t *testing.T) {
	env := newTestEnv(t)
	env.mirror.FailWith(sheets.AuthError(errors.New("token revoked")))
	h := env.handler()

	rr := do(t, h, http.MethodPost, "/api/expenses", expenseRequest{
		User: "Alexa", Category: "Gifts", SubCategory: "Birthday", Amount: "12,50", Date: "2024-03-15",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	resp := decode[submitResponse](t, rr)
	assert.Equal(t, msgSaved, resp.Message)
	assert.False(t, resp.ExternalSyncOK)
	assert.Empty(t, resp.ExternalID)
	assert.Equal(t, "12.50", resp.Expense.Amount)

	stored, err := env.store.ListExpenses(context.Background())
	require.NoError(t, err)
	assert.Len(t, stored, 1)
	assert.Empty(t, env.mirror.Documents())
}

type failingStore struct{}

func (failingStore) CreateExpense(context.Context, core.ExpenseRecord) (core.StoredExpense, error) {
	return core.StoredExpense{}, errors.New("disk full")
}

func (failingStore) ListExpenses(context.Context) ([]core.StoredExpense, error) {
	return nil, errors.New("disk full")
}

func TestPrimaryFailureAsksToRetry(t *testing.T) {
	env := newTestEnv(t)
	env.deps.Service = services.NewExpenseService(env.deps.Rules, failingStore{}, env.mirror)
	h := env.handler()

	rr := do(t, h, http.MethodPost, "/api/expenses", expenseRequest{
		User: "Tyler", Category: "Home", SubCategory: "Cleaner", Amount: "45", Date: "2024-03-15",
	})
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, msgTryAgain, decode[errorResponse](t, rr).Message)
	assert.Empty(t, env.mirror.Documents())

	rr = do(t, h, http.MethodGet, "/api/expenses", nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	// The wizard keeps the record so the user can retry.
	id := fillWizard(t, h)
	rr = do(t, h, http.MethodPost, "/api/wizards/"+id+"/submit", nil)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	rr = do(t, h, http.MethodGet, "/api/wizards/"+id, nil)
	state := decode[wizardView](t, rr)
	assert.Equal(t, 7, state.Step)
	assert.Equal(t, "Cleaner", state.Record.SubCategory)
}

func TestWizardHappyPath(t *testing.T) {
	env := newTestEnv(t)
	h := env.handler()

	start := newWizard(t, h)
	assert.Equal(t, 1, start.Step)
	assert.Equal(t, 7, start.Total)
	assert.Equal(t, []string{"Tyler", "Alexa"}, start.Options)
	assert.Equal(t, "2024-05-01", start.Record.Date)
	assert.False(t, start.CanAdvance)

	id := fillWizard(t, h)

	rr := do(t, h, http.MethodGet, "/api/wizards/"+id, nil)
	state := decode[wizardView](t, rr)
	assert.NotContains(t, state.Visible, wizard.StepDescription)
	assert.Equal(t, "45", state.Record.Amount)

	rr = do(t, h, http.MethodPost, "/api/wizards/"+id+"/submit", nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	resp := decode[struct {
		submitResponse
		Wizard wizardView `json:"wizard"`
	}](t, rr)
	assert.Equal(t, msgSaved, resp.Message)
	assert.Equal(t, int64(1), resp.ID)
	assert.Equal(t, "Tyler", resp.Expense.User)
	assert.Equal(t, "Home", resp.Expense.Category)
	assert.Equal(t, "Cleaner", resp.Expense.SubCategory)
	assert.Equal(t, "45.00", resp.Expense.Amount)
	assert.Equal(t, "2024-05-01", resp.Expense.Date)
	assert.Equal(t, 1, resp.Wizard.Step)
	assert.Empty(t, resp.Wizard.Record.User)

	docs := env.mirror.Documents()
	require.Len(t, docs, 1)
	assert.Equal(t, int64(1), docs[0].ID)
}

func TestWizardGateFailure(t *testing.T) {
	env := newTestEnv(t)
	h := env.handler()
	id := newWizard(t, h).ID

	rr := advance(t, h, id)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	resp := decode[errorResponse](t, rr)
	assert.Equal(t, "please fix user", resp.Message)
	require.Len(t, resp.Fields, 1)
	assert.Equal(t, core.FieldUser, resp.Fields[0].Field)

	rr = do(t, h, http.MethodGet, "/api/wizards/"+id, nil)
	assert.Equal(t, 1, decode[wizardView](t, rr).Step)

	rr = do(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `spese_wizard_gate_failures_total{step="user"} 1`)
	assert.Contains(t, rr.Body.String(), "spese_wizard_sessions 1")
}

func TestWizardMiscShowsDescription(t *testing.T) {
	h := newTestEnv(t).handler()
	id := newWizard(t, h).ID

	misc := catalog.Default().Miscellaneous()
	require.Equal(t, http.StatusOK, setField(t, h, id, core.FieldUser, "Alexa").Code)
	require.Equal(t, http.StatusOK, advance(t, h, id).Code)
	require.Equal(t, http.StatusOK, setField(t, h, id, core.FieldCategory, misc).Code)
	rr := advance(t, h, id)
	require.Equal(t, http.StatusOK, rr.Code)
	state := decode[wizardView](t, rr)
	assert.Equal(t, []string{"Other"}, state.Options)

	require.Equal(t, http.StatusOK, setField(t, h, id, core.FieldSubCategory, "Other").Code)
	rr = advance(t, h, id)
	require.Equal(t, http.StatusOK, rr.Code)
	state = decode[wizardView](t, rr)
	assert.Equal(t, 4, state.Step)
	assert.Equal(t, wizard.StepDescription, state.StepID)

	rr = do(t, h, http.MethodPost, "/api/wizards/"+id+"/retreat", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 3, decode[wizardView](t, rr).Step)
}

func TestWizardCategoryChangeClearsSubCategory(t *testing.T) {
	h := newTestEnv(t).handler()
	id := newWizard(t, h).ID

	require.Equal(t, http.StatusOK, setField(t, h, id, core.FieldCategory, "Home").Code)
	require.Equal(t, http.StatusOK, setField(t, h, id, core.FieldSubCategory, "Cleaner").Code)
	rr := setField(t, h, id, core.FieldCategory, "Home")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[wizardView](t, rr).Record.SubCategory)
}

func TestWizardErrors(t *testing.T) {
	h := newTestEnv(t).handler()
	id := newWizard(t, h).ID

	tests := []struct {
		name     string
		method   string
		path     string
		body     any
		wantCode int
	}{
		{"unknown session", http.MethodGet, "/api/wizards/nope", nil, http.StatusNotFound},
		{"unknown session advance", http.MethodPost, "/api/wizards/nope/advance", nil, http.StatusNotFound},
		{"unknown field", http.MethodPut, "/api/wizards/" + id + "/fields/colour", fieldRequest{Value: "red"}, http.StatusBadRequest},
		{"bad date", http.MethodPut, "/api/wizards/" + id + "/fields/date", fieldRequest{Value: "yesterday"}, http.StatusUnprocessableEntity},
		{"bad body", http.MethodPut, "/api/wizards/" + id + "/fields/user", `{"val":1}`, http.StatusBadRequest},
		{"submit early", http.MethodPost, "/api/wizards/" + id + "/submit", nil, http.StatusConflict},
		{"upload without file", http.MethodPost, "/api/wizards/" + id + "/attachment", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantCode, rr.Code, rr.Body.String())
		})
	}
}

func TestWizardSubCategoryOutsideCategory(t *testing.T) {
	h := newTestEnv(t).handler()
	id := newWizard(t, h).ID

	rr := setField(t, h, id, core.FieldSubCategory, "Cleaner")
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code, rr.Body.String())

	require.Equal(t, http.StatusOK, setField(t, h, id, core.FieldCategory, "Home").Code)
	rr = setField(t, h, id, core.FieldSubCategory, "Vet")
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code, rr.Body.String())
	resp := decode[errorResponse](t, rr)
	require.Len(t, resp.Fields, 1)
	assert.Equal(t, core.FieldSubCategory, resp.Fields[0].Field)

	rr = do(t, h, http.MethodGet, "/api/wizards/"+id, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	rec := decode[wizardView](t, rr).Record
	assert.Equal(t, "Home", rec.Category)
	assert.Empty(t, rec.SubCategory)
}

func TestWizardDelete(t *testing.T) {
	h := newTestEnv(t).handler()
	id := newWizard(t, h).ID

	rr := do(t, h, http.MethodDelete, "/api/wizards/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = do(t, h, http.MethodGet, "/api/wizards/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

type blockingService struct {
	*services.ExpenseService
	started chan struct{}
	release chan struct{}
}

func (b *blockingService) Persist(ctx context.Context, rec core.ExpenseRecord, att *core.Attachment) (services.Result, error) {
	close(b.started)
	<-b.release
	return b.ExpenseService.Persist(ctx, rec, att)
}

func TestWizardSubmitInFlight(t *testing.T) {
	env := newTestEnv(t)
	blocking := &blockingService{
		ExpenseService: env.deps.Service.(*services.ExpenseService),
		started:        make(chan struct{}),
		release:        make(chan struct{}),
	}
	env.deps.Service = blocking
	h := env.handler()
	id := fillWizard(t, h)

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		req := httptest.NewRequest(http.MethodPost, "/api/wizards/"+id+"/submit", nil)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		done <- rr
	}()
	<-blocking.started

	assert.Equal(t, http.StatusConflict, do(t, h, http.MethodPost, "/api/wizards/"+id+"/submit", nil).Code)
	assert.Equal(t, http.StatusConflict, setField(t, h, id, core.FieldAmount, "1").Code)
	assert.Equal(t, http.StatusConflict, do(t, h, http.MethodPost, "/api/wizards/"+id+"/retreat", nil).Code)

	close(blocking.release)
	rr := <-done
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	stored, err := env.store.ListExpenses(context.Background())
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func multipartBody(t *testing.T, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestWizardReceiptUpload(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()
	local, err := attachments.NewLocalStore(dir, "/uploads", nil)
	require.NoError(t, err)
	env.deps.Service = services.NewExpenseService(env.deps.Rules, env.store, env.mirror,
		services.WithAttachmentResolver(local))
	env.deps.UploadDir = dir
	env.deps.UploadPath = "/uploads"
	h := env.handler()
	id := fillWizard(t, h)

	body, ctype := multipartBody(t, "receipt.png", pngHeader)
	req := httptest.NewRequest(http.MethodPost, "/api/wizards/"+id+"/attachment", body)
	req.Header.Set("Content-Type", ctype)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	state := decode[wizardView](t, rr)
	require.NotNil(t, state.Record.Attachment)
	assert.Equal(t, "receipt.png", state.Record.Attachment.Filename)
	assert.Equal(t, len(pngHeader), state.Record.Attachment.Size)

	rr = do(t, h, http.MethodPost, "/api/wizards/"+id+"/submit", nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	resp := decode[submitResponse](t, rr)
	require.True(t, strings.HasPrefix(resp.Expense.ReceiptURL, "/uploads/"), resp.Expense.ReceiptURL)
	assert.True(t, strings.HasSuffix(resp.Expense.ReceiptURL, ".png"))

	rr = do(t, h, http.MethodGet, resp.Expense.ReceiptURL, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, pngHeader, rr.Body.Bytes())

	rr = do(t, h, http.MethodGet, "/uploads/", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestWizardReceiptTooLarge(t *testing.T) {
	env := newTestEnv(t)
	env.deps.MaxUploadBytes = 128
	h := env.handler()
	id := newWizard(t, h).ID

	body, ctype := multipartBody(t, "big.png", bytes.Repeat([]byte{'x'}, 1024))
	req := httptest.NewRequest(http.MethodPost, "/api/wizards/"+id+"/attachment", body)
	req.Header.Set("Content-Type", ctype)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t)
	env.deps.Limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: 2})
	h := env.handler()

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/wizards", nil).Code)
	}
	rr := do(t, h, http.MethodPost, "/api/wizards", nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))

	// Reads are not counted.
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/categories", nil).Code)
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t)
	env.deps.AllowedOrigins = []string{"https://app.example"}
	h := env.handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/wizards", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, "https://app.example", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/categories", nil)
	req.Header.Set("Origin", "https://evil.example")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}
