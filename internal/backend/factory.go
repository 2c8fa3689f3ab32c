// Package backend builds the primary store and the external mirror selected
// by configuration.
package backend

import (
	"context"
	"fmt"

	"expensewizard/internal/amqp"
	"expensewizard/internal/config"
	"expensewizard/internal/log"
	"expensewizard/internal/services"
	"expensewizard/internal/sheets"
	gsheet "expensewizard/internal/sheets/google"
	"expensewizard/internal/sheets/memory"
	"expensewizard/internal/storage"
)

type Factory struct {
	cfg    *config.Config
	logger *log.Logger
}

func NewFactory(cfg *config.Config, logger *log.Logger) *Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &Factory{cfg: cfg, logger: logger.WithComponent(log.ComponentApp)}
}

// PrimaryStore opens the store named by DATA_BACKEND.
func (f *Factory) PrimaryStore() (services.PrimaryStore, error) {
	switch f.cfg.DataBackend {
	case config.BackendMemory:
		f.logger.Info("Initialized memory primary store")
		return storage.NewMemoryStore(), nil
	case config.BackendSQLite:
		repo, err := storage.NewSQLiteRepository(f.cfg.SQLiteDBPath, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite primary store", "db_path", f.cfg.SQLiteDBPath)
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported data backend: %s", f.cfg.DataBackend)
	}
}

// ExternalSync builds the mirror named by EXTERNAL_SYNC. A nil result means
// records are kept in the primary store only.
func (f *Factory) ExternalSync(ctx context.Context) (sheets.ExternalSync, error) {
	switch f.cfg.ExternalSync {
	case config.SyncNone, "":
		f.logger.Info("External sync disabled")
		return nil, nil
	case config.SyncMemory:
		f.logger.Info("Initialized in-memory external mirror")
		return memory.New(), nil
	case config.SyncSheets:
		cli, err := f.Sheets(ctx)
		if err != nil {
			return nil, err
		}
		return cli, nil
	case config.SyncAMQP:
		cli, err := amqp.NewClient(f.cfg.AMQPURL, f.cfg.AMQPExchange, f.cfg.AMQPQueue, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize AMQP client: %w", err)
		}
		f.logger.Info("Initialized AMQP client",
			"exchange", f.cfg.AMQPExchange,
			"queue", f.cfg.AMQPQueue)
		return cli, nil
	default:
		return nil, fmt.Errorf("unsupported external sync: %s", f.cfg.ExternalSync)
	}
}

// Sheets builds the Google Sheets client; the worker uses it directly.
func (f *Factory) Sheets(ctx context.Context) (*gsheet.Client, error) {
	cli, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   f.cfg.GoogleSpreadsheetID,
		SheetName:       f.cfg.GoogleSheetName,
		CredentialsJSON: f.cfg.GoogleServiceAccountJSON,
		CredentialsFile: f.cfg.GoogleServiceAccountFile,
	}, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	f.logger.Info("Initialized Google Sheets client", "spreadsheet_id", f.cfg.GoogleSpreadsheetID)
	return cli, nil
}
