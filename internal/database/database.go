package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/librarease/assetgroups/internal/config"
	"github.com/librarease/assetgroups/internal/usecase"
)

// implements usecase.Repository
type service struct {
	db     *gorm.DB
	logger *slog.Logger
	name   string
}

// New connects to postgres using the DB_* settings and migrates the schema.
func New(cfg config.Config, logger *slog.Logger) (*service, error) {
	return open(cfg.DSN(), cfg, logger)
}

func open(dsn string, cfg config.Config, logger *slog.Logger) (*service, error) {
	gormDB, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: NewSlogGormLogger(logger, cfg.LogLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if cfg.OTelEnabled {
		if err := gormDB.Use(tracing.NewPlugin()); err != nil {
			return nil, fmt.Errorf("register tracing plugin: %w", err)
		}
	}

	db, err := gormDB.DB()
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.DBMaxOpenConnections)
	db.SetMaxIdleConns(cfg.DBMaxIdleConnections)

	if err := migrate(gormDB); err != nil {
		return nil, err
	}

	return &service{db: gormDB, logger: logger, name: cfg.DBDatabase}, nil
}

func migrate(db *gorm.DB) error {
	// migrate the schema
	if err := db.AutoMigrate(
		Asset{},
		Group{},
		AssetGroup{},
	); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

type txKey struct{}

// conn returns the transaction carried by ctx, or the pool when there is none.
func (s *service) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return s.db.WithContext(ctx)
}

func (s *service) Transaction(ctx context.Context, opt usecase.TxOptions, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	}, &sql.TxOptions{ReadOnly: opt.ReadOnly})
	return translateError(err)
}

// Health checks the health of the database connection by pinging the database.
// It returns a map with keys indicating various health statistics.
func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)
	stats["driver"] = config.DB_DRIVER_POSTGRES

	db, err := s.db.DB()
	if err != nil {
		stats["status"] = "down"
		stats["error"] = err.Error()
		return stats
	}

	// Ping the database
	if err := db.PingContext(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		s.logger.Error("db down", slog.String("err", err.Error()))
		return stats
	}

	// Database is up, add more statistics
	stats["status"] = "up"
	stats["message"] = "It's healthy"

	dbStats := db.Stats()
	stats["open_connections"] = strconv.Itoa(dbStats.OpenConnections)
	stats["in_use"] = strconv.Itoa(dbStats.InUse)
	stats["idle"] = strconv.Itoa(dbStats.Idle)
	stats["wait_count"] = strconv.FormatInt(dbStats.WaitCount, 10)
	stats["wait_duration"] = dbStats.WaitDuration.String()
	stats["max_idle_closed"] = strconv.FormatInt(dbStats.MaxIdleClosed, 10)
	stats["max_lifetime_closed"] = strconv.FormatInt(dbStats.MaxLifetimeClosed, 10)

	if dbStats.MaxOpenConnections > 0 && dbStats.InUse >= dbStats.MaxOpenConnections {
		stats["message"] = "The database is experiencing heavy load."
	}

	if dbStats.WaitCount > 1000 {
		stats["message"] = "The database has a high number of wait events, indicating potential bottlenecks."
	}

	return stats
}

// Close closes the database connection.
func (s *service) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	s.logger.Info("disconnected from database", slog.String("database", s.name))
	return db.Close()
}
