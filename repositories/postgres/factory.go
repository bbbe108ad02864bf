package postgres

import (
	"context"

	"github.com/fieldops/accessctl/config"
	"github.com/fieldops/accessctl/repositories"
	"go.uber.org/zap"
)

// RepositoryFactory creates and manages all repositories
type RepositoryFactory struct {
	db     *DB
	logger *zap.Logger
}

// NewRepositoryFactory opens the database and, when enabled, applies pending
// migrations before any repository is handed out.
func NewRepositoryFactory(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*RepositoryFactory, error) {
	db, err := NewDB(cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	if cfg.Database.AutoMigrate {
		if err := db.RunMigrations(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}

	return &RepositoryFactory{db: db, logger: logger}, nil
}

// NewRepositories creates all repository instances
func (f *RepositoryFactory) NewRepositories() *repositories.Repositories {
	return &repositories.Repositories{
		Companies: NewCompanyRepository(f.db, f.logger),
		Profiles:  NewProfileRepository(f.db, f.logger),
		Policies:  NewPolicyRepository(f.db, f.logger),
		AuditLogs: NewAuditRepository(f.db, f.logger),
	}
}

// GetTransactionManager returns a transaction manager
func (f *RepositoryFactory) GetTransactionManager() repositories.TransactionManager {
	return NewTransactionManager(f.db, f.logger)
}

// GetDB returns the database connection
func (f *RepositoryFactory) GetDB() *DB {
	return f.db
}

// Close closes the database connection
func (f *RepositoryFactory) Close() error {
	return f.db.Close()
}
