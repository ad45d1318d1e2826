package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/fluxgate/internal/apperror"
	"github.com/sakif/fluxgate/internal/metrics"
)

func newTestLedger() (*CreditLedger, *fakeUserRepo, *fakeSessions) {
	users := newFakeUserRepo()
	sessions := newFakeSessions(users)
	return NewCreditLedger(users, sessions, metrics.Nop{}, discardLogger()), users, sessions
}

func TestHasSufficient_Boundary(t *testing.T) {
	ledger, users, sessions := newTestLedger()
	token := sessions.login(users.seed("a@example.com", 5))
	ctx := context.Background()

	assert.True(t, ledger.HasSufficient(ctx, token, 4))
	assert.True(t, ledger.HasSufficient(ctx, token, 5), "credits == amount must be sufficient")
	assert.False(t, ledger.HasSufficient(ctx, token, 6))
}

func TestHasSufficient_UnknownTokenFailsClosed(t *testing.T) {
	ledger, _, _ := newTestLedger()
	assert.False(t, ledger.HasSufficient(context.Background(), "nope", 0))
	assert.False(t, ledger.HasSufficient(context.Background(), "", 0))
}

func TestBalance(t *testing.T) {
	ledger, users, sessions := newTestLedger()
	token := sessions.login(users.seed("a@example.com", 7))

	balance, ok := ledger.Balance(context.Background(), token)
	require.True(t, ok)
	assert.Equal(t, int64(7), balance)

	_, ok = ledger.Balance(context.Background(), "nope")
	assert.False(t, ok)
}

func TestAdjust(t *testing.T) {
	ledger, users, sessions := newTestLedger()
	id := users.seed("a@example.com", 3)
	token := sessions.login(id)
	ctx := context.Background()

	assert.True(t, ledger.Adjust(ctx, token, 10))
	assert.Equal(t, int64(13), users.credits(id))

	// Adjust is unconditional; bounds are Reserve's job.
	assert.True(t, ledger.Adjust(ctx, token, -20))
	assert.Equal(t, int64(-7), users.credits(id))

	assert.False(t, ledger.Adjust(ctx, "nope", 1))
}

func TestAdjust_StoreFailureIsFalse(t *testing.T) {
	ledger, users, sessions := newTestLedger()
	token := sessions.login(users.seed("a@example.com", 3))
	users.adjustErr = errDatabaseDown

	assert.False(t, ledger.Adjust(context.Background(), token, 1))
}

func TestGrant(t *testing.T) {
	ledger, users, sessions := newTestLedger()
	id := users.seed("a@example.com", 0)
	token := sessions.login(id)
	ctx := context.Background()

	balance, err := ledger.Grant(ctx, token, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(20), balance)

	_, err = ledger.Grant(ctx, token, 0)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = ledger.Grant(ctx, "nope", 20)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestReserve(t *testing.T) {
	ledger, users, sessions := newTestLedger()
	id := users.seed("a@example.com", 3)
	token := sessions.login(id)
	ctx := context.Background()

	tests := []struct {
		name    string
		token   string
		amount  int64
		wantErr error
		wantBal int64
	}{
		{name: "covered", token: token, amount: 2, wantBal: 1},
		{name: "exactly the rest", token: token, amount: 1, wantBal: 0},
		{name: "empty balance", token: token, amount: 1, wantErr: apperror.ErrInsufficientCredits, wantBal: 0},
		{name: "unknown token", token: "nope", amount: 1, wantErr: apperror.ErrUnauthorized, wantBal: 0},
		{name: "zero amount", token: token, amount: 0, wantErr: apperror.ErrValidation, wantBal: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hold, err := ledger.Reserve(ctx, tt.token, tt.amount)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, hold)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantBal, hold.Balance())
				assert.Equal(t, id, hold.UserID())
				assert.Equal(t, tt.amount, hold.Amount())
			}
			assert.Equal(t, tt.wantBal, users.credits(id))
		})
	}
}

func TestReserve_StoreFailure(t *testing.T) {
	ledger, users, sessions := newTestLedger()
	id := users.seed("a@example.com", 3)
	token := sessions.login(id)
	users.debitErr = errDatabaseDown

	_, err := ledger.Reserve(context.Background(), token, 1)
	assert.ErrorIs(t, err, errDatabaseDown)
	assert.NotErrorIs(t, err, apperror.ErrInsufficientCredits)
	assert.Equal(t, int64(3), users.credits(id))
}

func TestReserve_ConcurrentLastCredit(t *testing.T) {
	ledger, users, sessions := newTestLedger()
	id := users.seed("a@example.com", 1)
	token := sessions.login(id)

	const workers = 50
	var wins, denied atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := ledger.Reserve(context.Background(), token, 1)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, apperror.ErrInsufficientCredits):
				denied.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(workers-1), denied.Load())
	assert.Equal(t, int64(0), users.credits(id))
}

func TestHold_Refund(t *testing.T) {
	ledger, users, sessions := newTestLedger()
	id := users.seed("a@example.com", 5)
	token := sessions.login(id)
	ctx := context.Background()

	hold, err := ledger.Reserve(ctx, token, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), users.credits(id))

	require.NoError(t, hold.Refund(ctx))
	assert.Equal(t, int64(5), users.credits(id))
	assert.Equal(t, int64(5), hold.Balance())

	// second refund is a no-op
	require.NoError(t, hold.Refund(ctx))
	assert.Equal(t, int64(5), users.credits(id))
}

func TestHold_RefundSurvivesReloginAndCanceledContext(t *testing.T) {
	ledger, users, sessions := newTestLedger()
	id := users.seed("a@example.com", 1)
	token := sessions.login(id)

	hold, err := ledger.Reserve(context.Background(), token, 1)
	require.NoError(t, err)

	// The user logs in elsewhere, which kills the token the hold came from.
	sessions.login(id)
	_, ok := sessions.Validate(context.Background(), token)
	require.False(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, hold.Refund(ctx))
	assert.Equal(t, int64(1), users.credits(id))
}

func TestHold_RefundFailureCanBeRetried(t *testing.T) {
	ledger, users, sessions := newTestLedger()
	id := users.seed("a@example.com", 1)
	token := sessions.login(id)
	ctx := context.Background()

	hold, err := ledger.Reserve(ctx, token, 1)
	require.NoError(t, err)

	users.adjustErr = errDatabaseDown
	assert.ErrorIs(t, hold.Refund(ctx), errDatabaseDown)
	assert.Equal(t, int64(0), users.credits(id))

	users.adjustErr = nil
	require.NoError(t, hold.Refund(ctx))
	assert.Equal(t, int64(1), users.credits(id))
}
