package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/wyfcoding/goerp/internal/events"
	"github.com/wyfcoding/goerp/internal/identity/domain"
)

type stagedEvent struct {
	exchange string
	event    events.DomainEvent
}

type memoryStore struct {
	users  map[string]*domain.User
	staged []stagedEvent
}

func (s *memoryStore) CreateUser(_ context.Context, u *domain.User) (bool, error) {
	if _, ok := s.users[u.Username]; ok {
		return false, nil
	}
	u.ID = len(s.users) + 1
	s.users[u.Username] = u
	return true, nil
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

func newServiceWithStore() (*IdentityService, *memoryStore) {
	store := &memoryStore{users: make(map[string]*domain.User)}
	return NewIdentityService(&memoryTxRunner{store: store}, nil), store
}

func TestRegisterUser(t *testing.T) {
	ctx := context.Background()
	cmd := RegisterUserCommand{
		Username: "wzhang",
		Email:    "wzhang@example.com",
		Password: "secret-password",
		Role:     domain.RoleEmployee,
	}

	t.Run("hashes password and stages user event", func(t *testing.T) {
		service, store := newServiceWithStore()

		user, err := service.RegisterUser(ctx, cmd)
		require.NoError(t, err)
		assert.NotEqual(t, cmd.Password, user.PasswordHash)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(cmd.Password)))

		require.Len(t, store.staged, 1)
		assert.Equal(t, events.UserExchange, store.staged[0].exchange)
		created, ok := store.staged[0].event.(events.UserCreated)
		require.True(t, ok)
		assert.Equal(t, user.ID, created.UserID)
		assert.Equal(t, "employee", created.Role)
	})

	t.Run("duplicate username is rejected", func(t *testing.T) {
		service, store := newServiceWithStore()

		_, err := service.RegisterUser(ctx, cmd)
		require.NoError(t, err)
		_, err = service.RegisterUser(ctx, cmd)

		assert.ErrorIs(t, err, domain.ErrUserExists)
		assert.Len(t, store.staged, 1)
	})

	t.Run("unknown role is rejected", func(t *testing.T) {
		service, _ := newServiceWithStore()

		bad := cmd
		bad.Role = "superuser"
		_, err := service.RegisterUser(ctx, bad)
		assert.Error(t, err)
	})
}
