// Package memory is an in-process document store. It backs development runs
// and tests, and mirrors the contract of the Firestore and Postgres backends:
// serialized transactions, store-assigned IDs and asynchronous change feeds.
package memory

import (
	"context"
	"maps"
	"sync"

	"kitchenline/internal/domain/entity"
	"kitchenline/internal/domain/repository"

	"github.com/google/uuid"
)

type record[T any] struct {
	seq   int64
	value T
}

type state struct {
	seq           int64
	actors        map[string]record[entity.Actor]
	orders        map[string]record[entity.Order]
	notifications map[string]record[entity.Notification]
	credentials   map[string]record[entity.Credential]
	emails        map[string]string
}

func newState() *state {
	return &state{
		actors:        make(map[string]record[entity.Actor]),
		orders:        make(map[string]record[entity.Order]),
		notifications: make(map[string]record[entity.Notification]),
		credentials:   make(map[string]record[entity.Credential]),
		emails:        make(map[string]string),
	}
}

func (st *state) clone() *state {
	return &state{
		seq:           st.seq,
		actors:        maps.Clone(st.actors),
		orders:        maps.Clone(st.orders),
		notifications: maps.Clone(st.notifications),
		credentials:   maps.Clone(st.credentials),
		emails:        maps.Clone(st.emails),
	}
}

func (st *state) nextSeq() int64 {
	st.seq++

	return st.seq
}

// Store holds every collection in memory.
type Store struct {
	// writeMu serializes writers so a committing transaction never overwrites
	// a concurrent write.
	writeMu sync.Mutex

	mu sync.RWMutex
	st *state

	watchMu  sync.Mutex
	watchers map[*watcher]struct{}
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		st:       newState(),
		watchers: make(map[*watcher]struct{}),
	}
}

func newID() string {
	return uuid.NewString()
}

// view runs read against the committed state.
func (s *Store) view(read func(st *state)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	read(s.st)
}

// update applies write to a copy of the committed state and publishes it when
// write succeeds. Collections touched are reported to watchers.
func (s *Store) update(write func(st *state, dirty map[string]bool) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	draft := s.st.clone()
	s.mu.RUnlock()

	dirty := make(map[string]bool)
	if err := write(draft, dirty); err != nil {
		return err
	}

	s.mu.Lock()
	s.st = draft
	s.mu.Unlock()

	s.notify(dirty)

	return nil
}

type transactionManager struct {
	store *Store
}

// NewTransactionManager returns a TransactionManager over store.
func NewTransactionManager(store *Store) repository.TransactionManager {
	return &transactionManager{store: store}
}

// Execute runs fn against a private draft of the store and publishes the draft
// only when fn succeeds.
func (tm *transactionManager) Execute(ctx context.Context, fn func(txRepoFactory repository.RepositoryFactory) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return tm.store.update(func(draft *state, dirty map[string]bool) error {
		return fn(&repositoryFactory{store: tm.store, tx: &txState{st: draft, dirty: dirty}})
	})
}

type txState struct {
	st    *state
	dirty map[string]bool
}

type repositoryFactory struct {
	store *Store
	tx    *txState
}

func (f *repositoryFactory) NewActorRepository() repository.ActorRepository {
	return &actorRepository{store: f.store, tx: f.tx}
}

func (f *repositoryFactory) NewOrderRepository() repository.OrderRepository {
	return &orderRepository{store: f.store, tx: f.tx}
}

func (f *repositoryFactory) NewNotificationRepository() repository.NotificationRepository {
	return &notificationRepository{store: f.store, tx: f.tx}
}

func (f *repositoryFactory) NewCredentialRepository() repository.CredentialRepository {
	return &credentialRepository{store: f.store, tx: f.tx}
}

// read runs fn against the transaction draft when there is one, otherwise
// against the committed state.
func read(s *Store, tx *txState, fn func(st *state)) {
	if tx != nil {
		fn(tx.st)

		return
	}
	s.view(fn)
}

// write runs fn inside the transaction when there is one, otherwise as a
// single-operation transaction of its own.
func write(s *Store, tx *txState, collection string, fn func(st *state) error) error {
	if tx != nil {
		if err := fn(tx.st); err != nil {
			return err
		}
		tx.dirty[collection] = true

		return nil
	}

	return s.update(func(st *state, dirty map[string]bool) error {
		if err := fn(st); err != nil {
			return err
		}
		dirty[collection] = true

		return nil
	})
}
