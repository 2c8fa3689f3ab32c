package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"expensewizard/internal/log"
	ports "expensewizard/internal/sheets"

	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Header is the column layout of the expenses sheet.
var Header = []string{
	"Date", "User", "Category", "Sub-Category", "Description",
	"Amount", "Receipt", "Notes", "ID", "Created At",
}

// Config selects the spreadsheet and the service account used to write it.
type Config struct {
	SpreadsheetID string
	// SheetName is the base tab name; the current year is prefixed unless
	// the name already starts with one.
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	expensesSheet string
	logger        *log.Logger
}

var _ ports.ExternalSync = (*Client)(nil)

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}

	creds, err := loadCredentials(cfg)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return NewWithService(svc, cfg.SpreadsheetID, cfg.SheetName, logger), nil
}

// NewWithService wraps an already configured Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string, logger *log.Logger) *Client {
	if sheetName == "" {
		sheetName = "Expenses"
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		expensesSheet: yearPrefixedName(sheetName, time.Now().Year()),
		logger:        logger.WithComponent(log.ComponentSheets),
	}
}

func loadCredentials(cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		return []byte(cfg.CredentialsJSON), nil
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

// SyncExpense appends one row to the expenses sheet and returns the updated range.
func (c *Client) SyncExpense(ctx context.Context, doc ports.Document) (string, error) {
	if c.svc == nil {
		return "", ports.AuthError(errors.New("sheets service not initialized"))
	}

	rng := fmt.Sprintf("%s!A:%s", c.expensesSheet, columnLetter(len(Header)))
	vr := &gsheet.ValueRange{Values: [][]any{Row(doc)}}

	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		err = classify(err)
		c.logger.WarnContext(ctx, "Sheets append failed",
			log.FieldExpenseID, doc.ID,
			log.FieldErrorType, string(ports.KindOf(err)),
			log.FieldError, err)
		return "", err
	}

	ref := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	c.logger.DebugContext(ctx, "Sheets row appended",
		log.FieldExpenseID, doc.ID,
		log.FieldExternalID, ref)
	return ref, nil
}

// Row lays out a document in Header order.
func Row(doc ports.Document) []any {
	return []any{
		doc.Date,
		doc.User,
		doc.Category,
		doc.SubCategory,
		doc.Description,
		doc.Amount,
		doc.ReceiptURL,
		doc.Notes,
		strconv.FormatInt(doc.ID, 10),
		doc.CreatedAt,
	}
}

// classify maps Sheets API failures onto sync error kinds.
func classify(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return ports.AuthError(err)
		case http.StatusBadRequest, http.StatusNotFound:
			return ports.SchemaError(err)
		}
	}
	return ports.NetworkError(err)
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}

// columnLetter converts a 1-based column count to its A1 letter.
func columnLetter(n int) string {
	var s string
	for n > 0 {
		n--
		s = string(rune('A'+n%26)) + s
		n /= 26
	}
	return s
}
