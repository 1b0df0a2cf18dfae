package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/goerp/internal/events"
	"github.com/wyfcoding/goerp/internal/hr/domain"
)

type stagedEvent struct {
	exchange string
	event    events.DomainEvent
}

// memoryStore 内存版 Store，模拟邮箱与 user_id 唯一约束
type memoryStore struct {
	byEmail map[string]*domain.Employee
	byUser  map[int]*domain.Employee
	staged  []stagedEvent
	nextID  int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		byEmail: make(map[string]*domain.Employee),
		byUser:  make(map[int]*domain.Employee),
	}
}

func (s *memoryStore) insert(e *domain.Employee) bool {
	if _, ok := s.byEmail[e.Email]; ok {
		return false
	}
	if e.UserID != nil {
		if _, ok := s.byUser[*e.UserID]; ok {
			return false
		}
	}
	s.nextID++
	e.ID = s.nextID
	s.byEmail[e.Email] = e
	if e.UserID != nil {
		s.byUser[*e.UserID] = e
	}
	return true
}

func (s *memoryStore) CreateEmployee(_ context.Context, e *domain.Employee) (bool, error) {
	return s.insert(e), nil
}

func (s *memoryStore) InsertEmployeeForUser(_ context.Context, e *domain.Employee) (bool, error) {
	return s.insert(e), nil
}

func (s *memoryStore) StageEvent(_ context.Context, exchange string, event events.DomainEvent) error {
	s.staged = append(s.staged, stagedEvent{exchange: exchange, event: event})
	return nil
}

type memoryTxRunner struct {
	store *memoryStore
}

func (r *memoryTxRunner) InTx(ctx context.Context, fn func(store domain.Store) error) error {
	return fn(r.store)
}

func newServiceWithStore() (*HRService, *memoryStore) {
	store := newMemoryStore()
	return NewHRService(&memoryTxRunner{store: store}, nil), store
}

func TestCreateEmployee(t *testing.T) {
	ctx := context.Background()

	t.Run("creates record and stages employee event", func(t *testing.T) {
		service, store := newServiceWithStore()

		employee, err := service.CreateEmployee(ctx, CreateEmployeeCommand{
			Email:      "dev@example.com",
			FirstName:  "Wei",
			LastName:   "Zhang",
			Department: "engineering",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.EmployeeStatusActive, employee.Status)
		assert.False(t, employee.JoiningDate.IsZero())

		require.Len(t, store.staged, 1)
		assert.Equal(t, events.EmployeeExchange, store.staged[0].exchange)
		created, ok := store.staged[0].event.(events.EmployeeCreated)
		require.True(t, ok)
		assert.Equal(t, employee.ID, created.EmployeeID)
		assert.Equal(t, "engineering", created.Department)
	})

	t.Run("duplicate email is rejected", func(t *testing.T) {
		service, store := newServiceWithStore()
		cmd := CreateEmployeeCommand{
			Email: "dev@example.com", FirstName: "Wei", LastName: "Zhang", Department: "engineering",
		}

		_, err := service.CreateEmployee(ctx, cmd)
		require.NoError(t, err)
		_, err = service.CreateEmployee(ctx, cmd)

		assert.ErrorIs(t, err, domain.ErrEmployeeExists)
		assert.Len(t, store.staged, 1, "no event for rejected create")
	})
}

func TestApplyUserCreated(t *testing.T) {
	ctx := context.Background()
	event := &events.UserCreated{
		UserID: 9, Username: "wzhang", Email: "wzhang@example.com", Role: "employee",
	}

	t.Run("creates pending record for employee role", func(t *testing.T) {
		service, store := newServiceWithStore()

		outcome, err := service.ApplyUserCreated(ctx, event)
		require.NoError(t, err)
		assert.Equal(t, events.OutcomeApplied, outcome)

		record := store.byUser[9]
		require.NotNil(t, record)
		assert.Equal(t, domain.EmployeeStatusPending, record.Status)
		assert.Equal(t, "unassigned", record.Department)
		assert.Empty(t, store.staged, "pending records emit no employee event")
	})

	t.Run("admin role needs no record", func(t *testing.T) {
		service, store := newServiceWithStore()

		outcome, err := service.ApplyUserCreated(ctx, &events.UserCreated{
			UserID: 10, Username: "root", Email: "root@example.com", Role: "admin",
		})
		require.NoError(t, err)
		assert.Equal(t, events.OutcomeApplied, outcome)
		assert.Empty(t, store.byUser)
	})

	t.Run("redelivery keeps the original record", func(t *testing.T) {
		service, store := newServiceWithStore()

		_, err := service.ApplyUserCreated(ctx, event)
		require.NoError(t, err)
		outcome, err := service.ApplyUserCreated(ctx, event)
		require.NoError(t, err)

		assert.Equal(t, events.OutcomeAlreadyApplied, outcome)
		assert.Len(t, store.byUser, 1)
	})
}
