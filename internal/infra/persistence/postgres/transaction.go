// Package postgres contains the concrete implementation of the persistence layer using GORM and PostgreSQL.
package postgres

import (
	"context"
	"fmt"
	"time"

	"kitchenline/internal/domain/repository"

	"gorm.io/gorm"
)

// gormTransactionManager implements the domain's TransactionManager interface using GORM.
type gormTransactionManager struct {
	db           *gorm.DB
	pollInterval time.Duration
}

// gormRepositoryFactory holds one GORM transaction and creates repositories bound to it.
type gormRepositoryFactory struct {
	tx           *gorm.DB // In GORM, a transaction object *gorm.Tx is also a *gorm.DB
	pollInterval time.Duration
}

func (f *gormRepositoryFactory) NewActorRepository() repository.ActorRepository {
	return NewActorRepository(f.tx, f.pollInterval)
}

func (f *gormRepositoryFactory) NewOrderRepository() repository.OrderRepository {
	return NewOrderRepository(f.tx, f.pollInterval)
}

func (f *gormRepositoryFactory) NewNotificationRepository() repository.NotificationRepository {
	return NewNotificationRepository(f.tx, f.pollInterval)
}

func (f *gormRepositoryFactory) NewCredentialRepository() repository.CredentialRepository {
	return NewCredentialRepository(f.tx)
}

// NewTransactionManager is the constructor for gormTransactionManager.
func NewTransactionManager(db *gorm.DB, pollInterval time.Duration) repository.TransactionManager {
	return &gormTransactionManager{db: db, pollInterval: pollInterval}
}

// Execute runs the given function within a single database transaction.
func (tm *gormTransactionManager) Execute(ctx context.Context, fn func(repoFactory repository.RepositoryFactory) error) error {
	tx := tm.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return classify(tx.Error, "failed to begin transaction")
	}

	// Roll back on panic, then re-panic so the caller's recovery still sees it.
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	factory := &gormRepositoryFactory{tx: tx, pollInterval: tm.pollInterval}

	err := fn(factory)
	if err != nil {
		if rbErr := tx.Rollback().Error; rbErr != nil {
			return fmt.Errorf("transaction rollback failed: %v (original error: %w)", rbErr, err)
		}

		return err
	}

	if err := tx.Commit().Error; err != nil {
		return classify(err, "failed to commit transaction")
	}

	return nil
}
