package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/uniedit/paycore/internal/module/coordinator/entity"
	"github.com/uniedit/paycore/internal/module/coordinator/plugin"
)

// memoryStore keeps aggregates in a map so service behavior can be tested
// without a database.
type memoryStore struct {
	mu           sync.Mutex
	instructions map[uuid.UUID]*entity.PaymentInstruction
	saves        int
	saveErr      error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{instructions: make(map[uuid.UUID]*entity.PaymentInstruction)}
}

func (s *memoryStore) FindInstruction(_ context.Context, id uuid.UUID) (*entity.PaymentInstruction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	in, ok := s.instructions[id]
	if !ok {
		return nil, ErrInstructionNotFound
	}
	return in, nil
}

func (s *memoryStore) FindInstructionByPayment(_ context.Context, paymentID uuid.UUID) (*entity.PaymentInstruction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, in := range s.instructions {
		if in.Payment(paymentID) != nil {
			return in, nil
		}
	}
	return nil, ErrPaymentNotFound
}

func (s *memoryStore) FindInstructionByCredit(_ context.Context, creditID uuid.UUID) (*entity.PaymentInstruction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, in := range s.instructions {
		if in.Credit(creditID) != nil {
			return in, nil
		}
	}
	return nil, ErrCreditNotFound
}

func (s *memoryStore) SaveInstruction(_ context.Context, in *entity.PaymentInstruction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.instructions[in.ID] = in
	return nil
}

// countingLocker records acquisitions so the lock discipline is observable.
type countingLocker struct {
	keys []string
}

func (l *countingLocker) Acquire(_ context.Context, key string) (func(), error) {
	l.keys = append(l.keys, key)
	return func() {}, nil
}

func newTestService(pl *mockPlugin) (*Service, *memoryStore, *countingLocker) {
	store := newMemoryStore()
	lock := &countingLocker{}
	svc := NewService(newEngine(pl, nil), store, lock, nil, nil)
	return svc, store, lock
}

func TestService_CreateInstruction(t *testing.T) {
	pl := newMockPlugin()
	pl.On("CheckPaymentInstruction", mock.Anything, mock.Anything).Return(nil).Once()
	svc, store, _ := newTestService(pl)

	in, res, err := svc.CreateInstruction(context.Background(), 100, "EUR", paymentSystem, map[string]any{"payment_method": "pm_1"})

	require.NoError(t, err)
	assert.Equal(t, entity.InstructionStateValid, in.State)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 1, store.saves)

	v, err := in.ExtendedData.Get("payment_method")
	require.NoError(t, err)
	assert.Equal(t, "pm_1", v)
}

func TestService_CreateInstruction_InvalidStillSaved(t *testing.T) {
	b := plugin.NewErrorBuilder()
	b.AddDataError("currency", "unsupported")

	pl := newMockPlugin()
	pl.On("CheckPaymentInstruction", mock.Anything, mock.Anything).Return(b.Build()).Once()
	svc, store, _ := newTestService(pl)

	in, res, err := svc.CreateInstruction(context.Background(), 100, "XXX", paymentSystem, nil)

	require.NoError(t, err)
	assert.Equal(t, entity.InstructionStateInvalid, in.State)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, 1, store.saves, "invalid instructions are persisted too")
}

func TestService_Approve_LocksAndSaves(t *testing.T) {
	pl := newMockPlugin()
	pl.On("CheckPaymentInstruction", mock.Anything, mock.Anything).Return(nil).Once()
	pl.On("Approve", mock.Anything, mock.Anything, false).
		Run(respond("success", "none", 50)).Return(nil).Once()
	svc, store, lock := newTestService(pl)

	in, _, err := svc.CreateInstruction(context.Background(), 100, "EUR", paymentSystem, nil)
	require.NoError(t, err)
	p, err := svc.CreatePayment(context.Background(), in.ID, 50)
	require.NoError(t, err)

	res, err := svc.Approve(context.Background(), p.ID, 50)

	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, entity.PaymentStateApproved, p.State)
	// create instruction, create payment, approve
	assert.Equal(t, 3, store.saves)
	require.Len(t, lock.keys, 2)
	assert.Equal(t, "instruction:"+in.ID.String(), lock.keys[1])
	pl.AssertExpectations(t)
}

func TestService_Approve_SavesOnFatalError(t *testing.T) {
	boom := errors.New("gateway exploded")
	pl := newMockPlugin()
	pl.On("CheckPaymentInstruction", mock.Anything, mock.Anything).Return(nil).Once()
	pl.On("Approve", mock.Anything, mock.Anything, false).Return(boom).Once()
	svc, store, _ := newTestService(pl)

	in, _, err := svc.CreateInstruction(context.Background(), 100, "EUR", paymentSystem, nil)
	require.NoError(t, err)
	p, err := svc.CreatePayment(context.Background(), in.ID, 50)
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), p.ID, 50)

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 3, store.saves, "aggregate with retained reservation must be saved")
	assert.Equal(t, entity.PaymentStateApproving, p.State)
}

func TestService_PaymentNotFound(t *testing.T) {
	svc, _, _ := newTestService(newMockPlugin())

	_, err := svc.Approve(context.Background(), uuid.New(), 10)

	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestService_CreateCredit(t *testing.T) {
	pl := newMockPlugin()
	pl.On("CheckPaymentInstruction", mock.Anything, mock.Anything).Return(nil).Once()
	svc, _, _ := newTestService(pl)

	in, _, err := svc.CreateInstruction(context.Background(), 100, "EUR", paymentSystem, nil)
	require.NoError(t, err)

	t.Run("independent", func(t *testing.T) {
		cr, err := svc.CreateCredit(context.Background(), in.ID, nil, 25)
		require.NoError(t, err)
		assert.True(t, cr.IsIndependent())
	})

	t.Run("dependent requires approved payment", func(t *testing.T) {
		p, err := svc.CreatePayment(context.Background(), in.ID, 50)
		require.NoError(t, err)

		_, err = svc.CreateCredit(context.Background(), in.ID, &p.ID, 25)
		assert.ErrorIs(t, err, ErrInvalidPayment)
	})

	t.Run("unknown payment", func(t *testing.T) {
		unknown := uuid.New()
		_, err := svc.CreateCredit(context.Background(), in.ID, &unknown, 25)
		assert.ErrorIs(t, err, ErrPaymentNotFound)
	})
}

func TestService_CloseInstruction(t *testing.T) {
	pl := newMockPlugin()
	pl.On("CheckPaymentInstruction", mock.Anything, mock.Anything).Return(nil).Once()
	svc, _, _ := newTestService(pl)

	in, _, err := svc.CreateInstruction(context.Background(), 100, "EUR", paymentSystem, nil)
	require.NoError(t, err)

	closed, err := svc.CloseInstruction(context.Background(), in.ID)

	require.NoError(t, err)
	assert.Equal(t, entity.InstructionStateClosed, closed.State)
}
