package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"

	"expensewizard/internal/core"
	"expensewizard/internal/log"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no record has the requested id.
var ErrNotFound = errors.New("expense not found")

var expenseColumns = []string{
	"id", "submitter", "category", "sub_category", "description",
	"amount", "expense_date", "receipt_url", "notes", "created_at",
}

type SQLiteRepository struct {
	db     *sql.DB
	qb     sq.StatementBuilderType
	logger *log.Logger
	now    func() time.Time
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; AUTOINCREMENT then hands out ids in commit order.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentStorage)
	logger.Debug("SQLite schema ready", "db_path", dbPath, "schema_version", version)

	return &SQLiteRepository{
		db:     db,
		qb:     sq.StatementBuilder.PlaceholderFormat(sq.Question).RunWith(db),
		logger: logger,
		now:    time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateExpense inserts rec and returns it with its assigned id and creation time.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, rec core.ExpenseRecord) (core.StoredExpense, error) {
	createdAt := r.now().UTC().Truncate(time.Second)

	var id int64
	err := r.qb.Insert("expenses").
		Columns(expenseColumns[1:]...).
		Values(
			rec.User,
			rec.Category,
			rec.SubCategory,
			rec.Description,
			rec.Amount.String(),
			rec.Date.String(),
			rec.ReceiptURL,
			rec.Notes,
			createdAt.Format(time.RFC3339),
		).
		Suffix("RETURNING id").
		QueryRowContext(ctx).
		Scan(&id)
	if err != nil {
		return core.StoredExpense{}, fmt.Errorf("create expense: %w", err)
	}

	r.logger.InfoContext(ctx, "Expense saved to SQLite",
		log.FieldExpenseID, id,
		log.FieldCategory, rec.Category,
		log.FieldAmount, rec.Amount.String(),
		log.FieldDate, rec.Date.String())

	return core.StoredExpense{ID: id, CreatedAt: createdAt, ExpenseRecord: rec}, nil
}

// ListExpenses returns every record in id order.
func (r *SQLiteRepository) ListExpenses(ctx context.Context) ([]core.StoredExpense, error) {
	rows, err := r.qb.Select(expenseColumns...).
		From("expenses").
		OrderBy("id").
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.StoredExpense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}

// GetExpense retrieves a single expense by ID
func (r *SQLiteRepository) GetExpense(ctx context.Context, id int64) (core.StoredExpense, error) {
	row := r.qb.Select(expenseColumns...).
		From("expenses").
		Where(sq.Eq{"id": id}).
		QueryRowContext(ctx)

	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.StoredExpense{}, ErrNotFound
	}
	return e, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExpense(s scanner) (core.StoredExpense, error) {
	var (
		e                       core.StoredExpense
		amount, date, createdAt string
	)
	err := s.Scan(
		&e.ID,
		&e.User,
		&e.Category,
		&e.SubCategory,
		&e.Description,
		&amount,
		&date,
		&e.ReceiptURL,
		&e.Notes,
		&createdAt,
	)
	if err != nil {
		return core.StoredExpense{}, fmt.Errorf("scan expense: %w", err)
	}

	if e.Amount, err = core.ParseAmount(amount); err != nil {
		return core.StoredExpense{}, fmt.Errorf("expense %d: stored amount %q: %w", e.ID, amount, err)
	}
	if e.Date, err = core.ParseDate(date); err != nil {
		return core.StoredExpense{}, fmt.Errorf("expense %d: stored date %q: %w", e.ID, date, err)
	}
	if e.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return core.StoredExpense{}, fmt.Errorf("expense %d: stored created_at %q: %w", e.ID, createdAt, err)
	}
	return e, nil
}
