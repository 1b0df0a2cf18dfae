package application

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/goerp/internal/events"
	"github.com/wyfcoding/goerp/internal/payroll/domain"
)

// memoryStore 内存版 Store，模拟 employee_id 唯一约束
type memoryStore struct {
	records map[int]*domain.SalaryRecord
}

func (s *memoryStore) InsertSalaryRecord(_ context.Context, r *domain.SalaryRecord) (bool, error) {
	if _, ok := s.records[r.EmployeeID]; ok {
		return false, nil
	}
	r.ID = len(s.records) + 1
	s.records[r.EmployeeID] = r
	return true, nil
}

type memoryTxRunner struct {
	store *memoryStore
}

func (r *memoryTxRunner) InTx(ctx context.Context, fn func(store domain.Store) error) error {
	return fn(r.store)
}

func newServiceWithStore() (*PayrollService, *memoryStore) {
	store := &memoryStore{records: make(map[int]*domain.SalaryRecord)}
	return NewPayrollService(&memoryTxRunner{store: store}, nil), store
}

func TestApplyEmployeeCreated(t *testing.T) {
	ctx := context.Background()
	joined := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	event := &events.EmployeeCreated{
		EmployeeID:  11,
		Email:       "dev@example.com",
		Department:  "engineering",
		JoiningDate: joined,
	}

	t.Run("initializes salary from department pay grade", func(t *testing.T) {
		service, store := newServiceWithStore()

		outcome, err := service.ApplyEmployeeCreated(ctx, event)
		require.NoError(t, err)
		assert.Equal(t, events.OutcomeApplied, outcome)

		record := store.records[11]
		require.NotNil(t, record)
		assert.True(t, record.BaseSalary.Equal(decimal.NewFromInt(9000)))
		assert.Equal(t, "CNY", record.Currency)
		assert.Equal(t, joined, record.EffectiveFrom)
	})

	t.Run("unknown department falls back to base grade", func(t *testing.T) {
		service, store := newServiceWithStore()

		_, err := service.ApplyEmployeeCreated(ctx, &events.EmployeeCreated{
			EmployeeID: 12, Email: "x@example.com", Department: "mystery",
		})
		require.NoError(t, err)
		assert.True(t, store.records[12].BaseSalary.Equal(decimal.NewFromInt(5000)))
	})

	t.Run("redelivery keeps the original record", func(t *testing.T) {
		service, store := newServiceWithStore()

		_, err := service.ApplyEmployeeCreated(ctx, event)
		require.NoError(t, err)
		outcome, err := service.ApplyEmployeeCreated(ctx, event)
		require.NoError(t, err)

		assert.Equal(t, events.OutcomeAlreadyApplied, outcome)
		assert.Len(t, store.records, 1)
	})
}
