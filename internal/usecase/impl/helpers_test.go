package impl

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"kitchenline/config"
	"kitchenline/internal/domain/entity"
	"kitchenline/internal/domain/repository"
	"kitchenline/internal/domain/service"
	"kitchenline/internal/infra/persistence/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	testWait = 2 * time.Second
	testTick = 5 * time.Millisecond
)

func newDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestConfig() *config.Config {
	cfg := &config.Config{
		App:  &config.AppConfig{Role: string(entity.RoleCook), DefaultDeliveryFee: 300},
		Auth: &config.AuthConfig{BcryptCost: 4, TokenExpiry: time.Hour},
		Feed: &config.FeedConfig{InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond, MaxElapsedTime: 50 * time.Millisecond},
	}
	cfg.SecretKey.Access = "test_access_secret_key_very_long_for_testing"

	return cfg
}

// testStore bundles the in-memory backend the use cases run against.
type testStore struct {
	store         *memory.Store
	tx            repository.TransactionManager
	actors        repository.ActorRepository
	orders        repository.OrderRepository
	notifications repository.NotificationRepository
	credentials   repository.CredentialRepository
}

func newTestStore() *testStore {
	store := memory.NewStore()

	return &testStore{
		store:         store,
		tx:            memory.NewTransactionManager(store),
		actors:        memory.NewActorRepository(store),
		orders:        memory.NewOrderRepository(store),
		notifications: memory.NewNotificationRepository(store),
		credentials:   memory.NewCredentialRepository(store),
	}
}

func (s *testStore) seedActor(t *testing.T, role entity.Role, name string, verified bool) *entity.Actor {
	t.Helper()

	now := time.Now()
	actor := &entity.Actor{
		ID:        uuid.NewString(),
		Role:      role,
		Email:     name + "@example.com",
		Profile:   entity.Profile{DisplayName: name},
		Verified:  verified,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.actors.CreateActor(context.Background(), actor))

	return actor
}

func (s *testStore) seedOrder(t *testing.T, customer, cook *entity.Actor, status entity.OrderStatus) *entity.Order {
	t.Helper()

	order := entity.NewOrder(customer.ID, cook.ID, []entity.OrderItem{{Name: "Laksa", UnitPrice: 1200, Quantity: 2}}, 300, "1 Harbour St", time.Now())
	order.Status = status
	require.NoError(t, s.orders.CreateOrder(context.Background(), order))

	return order
}

func (s *testStore) notificationsFor(t *testing.T, recipientID string) []*entity.Notification {
	t.Helper()

	notifications, err := s.notifications.ListNotifications(context.Background(), repository.NotificationQuery{RecipientID: recipientID})
	require.NoError(t, err)

	return notifications
}

// faultyActors fails FindActorByID while failing is set, and CreateActor
// while failCreates is set.
type faultyActors struct {
	repository.ActorRepository

	failing     atomic.Bool
	failCreates atomic.Bool
	finds       atomic.Int32
}

func (f *faultyActors) CreateActor(ctx context.Context, actor *entity.Actor) error {
	if f.failCreates.Load() {
		return repository.Unavailable(context.DeadlineExceeded)
	}

	return f.ActorRepository.CreateActor(ctx, actor)
}

func (f *faultyActors) FindActorByID(ctx context.Context, id string) (*entity.Actor, error) {
	f.finds.Add(1)
	if f.failing.Load() {
		return nil, repository.Unavailable(context.DeadlineExceeded)
	}

	return f.ActorRepository.FindActorByID(ctx, id)
}

// mockPublisher records published notification events.
type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishNotificationEvent(ctx context.Context, event *service.NotificationEvent) error {
	args := m.Called(ctx, event)

	return args.Error(0)
}

func (m *mockPublisher) Close() error {
	return nil
}

// countingMetrics counts the calls the use cases make.
type countingMetrics struct {
	service.NopMetrics

	mu            sync.Mutex
	transitions   []string
	notifications map[string]int
	sessions      []string
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{notifications: make(map[string]int)}
}

func (m *countingMetrics) OrderTransitioned(from, to string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, from+"->"+to)
}

func (m *countingMetrics) NotificationCreated(notificationType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications[notificationType]++
}

func (m *countingMetrics) SessionResolved(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = append(m.sessions, outcome)
}

func (m *countingMetrics) sessionOutcomes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]string(nil), m.sessions...)
}
