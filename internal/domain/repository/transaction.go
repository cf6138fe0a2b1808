package repository

import "context"

// TransactionManager defines the interface for managing store transactions.
// This allows the use case layer to handle transactions without depending on a specific store driver.
type TransactionManager interface {
	// Execute runs fn within a single transaction.
	// If fn returns an error, nothing fn wrote is committed. Otherwise all of it is.
	// Backends may run fn more than once when the store aborts on contention, so fn
	// must not have effects outside the repositories it is handed.
	Execute(ctx context.Context, fn func(txRepoFactory RepositoryFactory) error) error
}

// RepositoryFactory provides repository instances bound to a specific transaction.
type RepositoryFactory interface {
	// NewActorRepository returns an ActorRepository bound to the current transaction.
	NewActorRepository() ActorRepository

	// NewOrderRepository returns an OrderRepository bound to the current transaction.
	NewOrderRepository() OrderRepository

	// NewNotificationRepository returns a NotificationRepository bound to the current transaction.
	NewNotificationRepository() NotificationRepository

	// NewCredentialRepository returns a CredentialRepository bound to the current transaction.
	NewCredentialRepository() CredentialRepository
}
