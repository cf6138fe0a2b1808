package firestore

import (
	"context"

	"kitchenline/internal/domain/repository"

	"cloud.google.com/go/firestore"
)

type transactionManager struct {
	client *firestore.Client
}

// NewTransactionManager returns a TransactionManager over Firestore
// transactions. Firestore retries fn on contention, so fn must be free of
// side effects outside the repositories it is given.
func NewTransactionManager(client *firestore.Client) repository.TransactionManager {
	return &transactionManager{client: client}
}

func (tm *transactionManager) Execute(ctx context.Context, fn func(txRepoFactory repository.RepositoryFactory) error) error {
	return tm.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		return fn(&repositoryFactory{session{client: tm.client, tx: tx}})
	})
}

type repositoryFactory struct {
	s session
}

func (f *repositoryFactory) NewActorRepository() repository.ActorRepository {
	return &actorRepository{f.s}
}

func (f *repositoryFactory) NewOrderRepository() repository.OrderRepository {
	return &orderRepository{f.s}
}

func (f *repositoryFactory) NewNotificationRepository() repository.NotificationRepository {
	return &notificationRepository{f.s}
}

func (f *repositoryFactory) NewCredentialRepository() repository.CredentialRepository {
	return &credentialRepository{f.s}
}
