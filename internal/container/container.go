package container

import (
	"context"
	"fmt"

	"loostaar/adapters/association"
	"loostaar/adapters/memory"
	"loostaar/adapters/postgres"
	"loostaar/app"
	"loostaar/internal"
	"loostaar/internal/config"
	"loostaar/internal/migration"
	"loostaar/ports"

	"github.com/jmoiron/sqlx"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config

	// Infrastructure
	DB *sqlx.DB

	// Ports
	Test ports.AssociationTest
	Runs ports.RunRepository

	// Services
	LeaveOneOut *app.LeaveOneOutService
	Analysis    *app.AnalysisService

	logger *internal.Logger
}

// New creates a container with the configured association backend and an
// in-memory run store
func New(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	test, err := association.New(cfg.Association)
	if err != nil {
		return nil, err
	}
	return NewWithTest(cfg, test)
}

// NewWithTest creates a container around an explicit association test
func NewWithTest(cfg *config.Config, test ports.AssociationTest) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	c := &Container{
		Config: cfg,
		Test:   test,
		Runs:   memory.NewRunRepository(),
		logger: internal.DefaultLogger.With("container"),
	}
	if err := c.initServices(); err != nil {
		return nil, err
	}
	return c, nil
}

// InitWithDatabase migrates db and switches run storage to PostgreSQL
func (c *Container) InitWithDatabase(ctx context.Context, db *sqlx.DB) error {
	if db == nil {
		return fmt.Errorf("database connection cannot be nil")
	}

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database connection test failed: %w", err)
	}

	if err := migration.NewRunner().Run(ctx, db); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}

	c.DB = db
	c.Runs = postgres.NewRunRepository(db)
	c.Analysis = app.NewAnalysisService(c.LeaveOneOut, c.Runs)

	c.logger.Info("run storage: postgres")
	return nil
}

// initServices builds the leave-one-out and analysis services from config
func (c *Container) initServices() error {
	a := c.Config.Analysis

	policy, err := app.ParseOmnibusPolicy(a.OmnibusPolicy)
	if err != nil {
		return err
	}

	c.LeaveOneOut, err = app.NewLeaveOneOutService(c.Test,
		app.WithOmnibusPolicy(policy),
		app.WithRareVariantThreshold(a.RareVariantThreshold),
		app.WithCallPolicy(app.CallPolicy{
			Timeout: a.TestTimeout,
			Retries: a.TestRetries,
			Backoff: a.RetryBackoff,
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize leave-one-out service: %w", err)
	}

	c.Analysis = app.NewAnalysisService(c.LeaveOneOut, c.Runs)
	return nil
}

// Shutdown releases infrastructure
func (c *Container) Shutdown(ctx context.Context) error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
