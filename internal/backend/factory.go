package backend

import (
	"context"
	"fmt"
	"log/slog"

	"fintrack/internal/amqp"
	applog "fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/storage"
	"fintrack/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger     *slog.Logger
	dialPolicy amqp.DialPolicy
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger:     logger.With(applog.FieldComponent, applog.ComponentBackend),
		dialPolicy: amqp.DefaultDialPolicy(),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		repo services.Repository
		ping PingFunc
	)
	switch config.Type {
	case SQLiteBackend:
		sqliteRepo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		repo, ping = sqliteRepo, sqliteRepo.Ping
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	case MemoryBackend:
		repo = memory.New()
		ping = func(context.Context) error { return nil }
		f.logger.Warn("Initialized memory backend; data is lost on restart")
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	ledger := services.NewLedgerService(repo, f.publisher(ctx, config))

	return &BackendResult{
		Ledger:  ledger,
		Ping:    ping,
		Cleanup: ledger.Close,
	}, nil
}

// publisher connects to the broker when configured. A broker that cannot be
// reached leaves the ledger running without events.
func (f *DefaultFactory) publisher(ctx context.Context, config Config) services.EventPublisher {
	if config.AMQPURL == "" {
		f.logger.Info("AMQP not configured, ledger events disabled")
		return nil
	}

	client, err := amqp.NewClient(ctx, config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.dialPolicy)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without events", applog.FieldError, err)
		return nil
	}

	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client
}
