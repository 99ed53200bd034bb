package vault

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	addrA = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	addrB = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	addrC = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	addrD = common.HexToAddress("0x00000000000000000000000000000000000000d4")
)

const startTime int64 = 1_700_000_000

// fakeTransfer 可注入失败的转账原语
type fakeTransfer struct {
	creditErr error
	debitErr  error
	credits   []*big.Int
	debits    []*big.Int
	debitTo   []common.Address
}

func (f *fakeTransfer) Credit(_ context.Context, _ common.Address, amount *big.Int) error {
	if f.creditErr != nil {
		return f.creditErr
	}
	f.credits = append(f.credits, new(big.Int).Set(amount))
	return nil
}

func (f *fakeTransfer) Debit(_ context.Context, to common.Address, amount *big.Int) error {
	if f.debitErr != nil {
		return f.debitErr
	}
	f.debits = append(f.debits, new(big.Int).Set(amount))
	f.debitTo = append(f.debitTo, to)
	return nil
}

type testEnv struct {
	v        *Vault
	clock    *ManualClock
	transfer *fakeTransfer
	events   *EventRecorder
}

func newTestVault(t *testing.T, owner, heir common.Address) *testEnv {
	t.Helper()
	env := &testEnv{
		clock:    NewManualClock(startTime),
		transfer: &fakeTransfer{},
		events:   NewEventRecorder(),
	}
	v, err := New(owner, heir, WithClock(env.clock), WithTransfer(env.transfer), WithEventSink(env.events))
	require.NoError(t, err)
	env.v = v
	return env
}

func TestNew_InitialState(t *testing.T) {
	env := newTestVault(t, addrA, addrB)

	st := env.v.Status()
	assert.Equal(t, addrA, st.Owner)
	assert.Equal(t, addrB, st.Heir)
	assert.Equal(t, startTime, st.LastActivity)
	assert.Equal(t, "0", st.Balance.String())
	assert.False(t, st.CanHeirClaim)
	assert.Equal(t, InactivityPeriod, st.TimeUntilClaimable)
	assert.Empty(t, env.events.Events())
}

func TestNew_RejectsInvalidParties(t *testing.T) {
	_, err := New(addrA, addrA)
	assert.ErrorIs(t, err, ErrInvalidHeir, "heir equal to creator")

	_, err = New(addrA, common.Address{})
	assert.ErrorIs(t, err, ErrInvalidHeir, "zero heir")

	_, err = New(common.Address{}, addrB)
	assert.ErrorIs(t, err, ErrInvalidOwner, "zero creator")
}

func TestDepositThenWithdraw(t *testing.T) {
	env := newTestVault(t, addrA, addrB)
	ctx := context.Background()

	require.NoError(t, env.v.Deposit(ctx, addrA, big.NewInt(10)))
	callTime := env.clock.Advance(3600)
	require.NoError(t, env.v.Withdraw(ctx, addrA, big.NewInt(5)))

	assert.Equal(t, "5", env.v.Balance().String())
	assert.Equal(t, callTime, env.v.LastActivity())
	require.Len(t, env.transfer.debits, 1)
	assert.Equal(t, "5", env.transfer.debits[0].String())
	assert.Equal(t, addrA, env.transfer.debitTo[0])

	evs := env.events.Events()
	require.Len(t, evs, 2)
	assert.Equal(t, Deposited{From: addrA, Amount: big.NewInt(10)}, evs[0])
	assert.Equal(t, Withdrawn{To: addrA, Amount: big.NewInt(5)}, evs[1])
}

func TestDeposit_AnyoneCanDepositWithoutTouchingHeartbeat(t *testing.T) {
	env := newTestVault(t, addrA, addrB)
	env.clock.Advance(100)

	require.NoError(t, env.v.Deposit(context.Background(), addrC, big.NewInt(7)))

	assert.Equal(t, "7", env.v.Balance().String())
	assert.Equal(t, startTime, env.v.LastActivity())
	assert.Equal(t, addrA, env.v.Owner())
	assert.Equal(t, addrB, env.v.Heir())
}

func TestDeposit_CreditFailureLeavesStateUntouched(t *testing.T) {
	env := newTestVault(t, addrA, addrB)
	env.transfer.creditErr = errors.New("sender broke")

	err := env.v.Deposit(context.Background(), addrC, big.NewInt(7))
	assert.ErrorIs(t, err, ErrTransferFailed)
	assert.Equal(t, "0", env.v.Balance().String())
	assert.Empty(t, env.events.Events())
}

func TestDeposit_RejectsInvalidAmounts(t *testing.T) {
	env := newTestVault(t, addrA, addrB)
	ctx := context.Background()

	assert.ErrorIs(t, env.v.Deposit(ctx, addrC, nil), ErrInvalidAmount)
	assert.ErrorIs(t, env.v.Deposit(ctx, addrC, big.NewInt(-1)), ErrInvalidAmount)

	require.NoError(t, env.v.Deposit(ctx, addrC, MaxUint256))
	assert.ErrorIs(t, env.v.Deposit(ctx, addrC, big.NewInt(1)), ErrInvalidAmount)
	assert.Equal(t, MaxUint256.String(), env.v.Balance().String())
	assert.Len(t, env.transfer.credits, 1)
}

func TestWithdraw_Guards(t *testing.T) {
	env := newTestVault(t, addrA, addrB)
	ctx := context.Background()
	require.NoError(t, env.v.Deposit(ctx, addrA, big.NewInt(10)))
	env.clock.Advance(50)

	assert.ErrorIs(t, env.v.Withdraw(ctx, addrB, big.NewInt(1)), ErrUnauthorized)
	assert.ErrorIs(t, env.v.Withdraw(ctx, addrA, big.NewInt(11)), ErrInsufficientBalance)
	assert.ErrorIs(t, env.v.Withdraw(ctx, addrA, big.NewInt(-3)), ErrInvalidAmount)

	// 守卫失败不刷新心跳
	assert.Equal(t, startTime, env.v.LastActivity())
	assert.Equal(t, "10", env.v.Balance().String())
	assert.Empty(t, env.transfer.debits)
}

func TestWithdraw_ZeroAmountIsHeartbeat(t *testing.T) {
	env := newTestVault(t, addrA, addrB)
	ctx := context.Background()
	require.NoError(t, env.v.Deposit(ctx, addrC, big.NewInt(3)))
	env.events.Drain()

	var last int64
	for i := 0; i < 5; i++ {
		last = env.clock.Advance(86400)
		require.NoError(t, env.v.Withdraw(ctx, addrA, big.NewInt(0)))
		assert.Equal(t, last, env.v.LastActivity())
		assert.Equal(t, "3", env.v.Balance().String())
	}

	assert.Empty(t, env.transfer.debits)
	evs := env.events.Events()
	require.Len(t, evs, 5)
	assert.Equal(t, HeartbeatUpdated{Owner: addrA, Timestamp: last}, evs[4])
}

func TestWithdraw_TransferFailureKeepsHeartbeat(t *testing.T) {
	env := newTestVault(t, addrA, addrB)
	ctx := context.Background()
	require.NoError(t, env.v.Deposit(ctx, addrC, big.NewInt(10)))
	env.events.Drain()

	cause := errors.New("recipient rejected")
	env.transfer.debitErr = cause
	callTime := env.clock.Advance(1000)

	err := env.v.Withdraw(ctx, addrA, big.NewInt(4))
	assert.ErrorIs(t, err, ErrTransferFailed)
	assert.ErrorIs(t, err, cause)

	assert.Equal(t, "10", env.v.Balance().String())
	assert.Equal(t, callTime, env.v.LastActivity())
	assert.Empty(t, env.events.Events())
}

// balanceSpy 在 Debit 回调中观察金库余额
type balanceSpy struct {
	v    *Vault
	seen *big.Int
}

func (p *balanceSpy) Credit(context.Context, common.Address, *big.Int) error { return nil }

func (p *balanceSpy) Debit(context.Context, common.Address, *big.Int) error {
	// 回调期间持有锁，直接读取内部字段
	p.seen = new(big.Int).Set(p.v.balance)
	return nil
}

func TestWithdraw_BalanceDebitedBeforeExternalCall(t *testing.T) {
	spy := &balanceSpy{}
	v, err := New(addrA, addrB, WithClock(NewManualClock(startTime)), WithTransfer(spy))
	require.NoError(t, err)
	spy.v = v

	require.NoError(t, v.Deposit(context.Background(), addrA, big.NewInt(10)))
	require.NoError(t, v.Withdraw(context.Background(), addrA, big.NewInt(6)))

	require.NotNil(t, spy.seen)
	assert.Equal(t, "4", spy.seen.String())
}

func TestWithdraw_JournalRunsBeforeDebit(t *testing.T) {
	clock := NewManualClock(startTime)
	transfer := &fakeTransfer{}
	var journaled []State
	v, err := New(addrA, addrB, WithClock(clock), WithTransfer(transfer), WithJournal(func(st State) error {
		// 落盘时还没有付款
		assert.Empty(t, transfer.debits)
		journaled = append(journaled, st)
		return nil
	}))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, v.Deposit(ctx, addrC, big.NewInt(10)))
	require.NoError(t, v.Withdraw(ctx, addrA, big.NewInt(0)))
	assert.Empty(t, journaled, "heartbeat does not move value")

	callTime := clock.Advance(60)
	require.NoError(t, v.Withdraw(ctx, addrA, big.NewInt(6)))
	require.Len(t, journaled, 1)
	assert.Equal(t, "4", journaled[0].Balance)
	assert.Equal(t, callTime, journaled[0].LastActivity)
	assert.Len(t, transfer.debits, 1)
}

func TestWithdraw_JournalFailureAbortsBeforeDebit(t *testing.T) {
	transfer := &fakeTransfer{}
	cause := errors.New("disk gone")
	v, err := New(addrA, addrB, WithClock(NewManualClock(startTime)), WithTransfer(transfer),
		WithJournal(func(State) error { return cause }))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, v.Deposit(ctx, addrC, big.NewInt(10)))

	err = v.Withdraw(ctx, addrA, big.NewInt(6))
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrTransferFailed)
	assert.Empty(t, transfer.debits)
	assert.Equal(t, "10", v.Balance().String())
}

func TestUpdateHeir(t *testing.T) {
	env := newTestVault(t, addrA, addrB)
	env.clock.Advance(500)

	assert.ErrorIs(t, env.v.UpdateHeir(addrA, addrA), ErrInvalidHeir)
	assert.ErrorIs(t, env.v.UpdateHeir(addrA, common.Address{}), ErrInvalidHeir)
	assert.ErrorIs(t, env.v.UpdateHeir(addrB, addrC), ErrUnauthorized)
	assert.Equal(t, addrB, env.v.Heir())

	require.NoError(t, env.v.UpdateHeir(addrA, addrC))
	assert.Equal(t, addrC, env.v.Heir())
	// 更换继承人不算心跳
	assert.Equal(t, startTime, env.v.LastActivity())

	evs := env.events.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, HeirUpdated{OldHeir: addrB, NewHeir: addrC}, evs[0])
}

func TestClaimOwnership_BeforeThresholdFails(t *testing.T) {
	env := newTestVault(t, addrA, addrB)
	env.clock.Advance(InactivityPeriod / 2)

	err := env.v.ClaimOwnership(addrB, addrC)
	assert.ErrorIs(t, err, ErrInactivityPeriodNotReached)
	assert.Equal(t, addrA, env.v.Owner())
	assert.Equal(t, addrB, env.v.Heir())
	assert.Empty(t, env.events.Events())
}

func TestClaimOwnership_Boundary(t *testing.T) {
	env := newTestVault(t, addrA, addrB)

	env.clock.Set(startTime + InactivityPeriod - 1)
	assert.False(t, env.v.CanHeirClaim())
	assert.Equal(t, int64(1), env.v.TimeUntilClaimable())
	assert.ErrorIs(t, env.v.ClaimOwnership(addrB, addrC), ErrInactivityPeriodNotReached)

	env.clock.Set(startTime + InactivityPeriod)
	assert.True(t, env.v.CanHeirClaim())
	assert.Equal(t, int64(0), env.v.TimeUntilClaimable())
	require.NoError(t, env.v.ClaimOwnership(addrB, addrC))
	assert.Equal(t, addrB, env.v.Owner())
}

func TestClaimOwnership_SuccessAndOldOwnerLocksOut(t *testing.T) {
	env := newTestVault(t, addrA, addrB)
	ctx := context.Background()
	require.NoError(t, env.v.Deposit(ctx, addrA, big.NewInt(9)))
	env.events.Drain()

	claimTime := env.clock.Advance(InactivityPeriod + 1)
	require.NoError(t, env.v.ClaimOwnership(addrB, addrC))

	st := env.v.Status()
	assert.Equal(t, addrB, st.Owner)
	assert.Equal(t, addrC, st.Heir)
	assert.Equal(t, claimTime, st.LastActivity)
	assert.False(t, st.CanHeirClaim)

	evs := env.events.Events()
	require.Len(t, evs, 2)
	assert.Equal(t, OwnershipClaimed{OldOwner: addrA, NewOwner: addrB, NewHeir: addrC}, evs[0])
	assert.Equal(t, HeirUpdated{OldHeir: addrB, NewHeir: addrC}, evs[1])

	assert.ErrorIs(t, env.v.Withdraw(ctx, addrA, big.NewInt(1)), ErrUnauthorized)
	require.NoError(t, env.v.Withdraw(ctx, addrB, big.NewInt(9)))
	assert.Equal(t, "0", env.v.Balance().String())
}

func TestClaimOwnership_GuardOrder(t *testing.T) {
	env := newTestVault(t, addrA, addrB)

	// 非 heir 调用，即使时间未到也先报 Unauthorized
	assert.ErrorIs(t, env.v.ClaimOwnership(addrC, addrD), ErrUnauthorized)
	assert.ErrorIs(t, env.v.ClaimOwnership(addrA, addrD), ErrUnauthorized)

	env.clock.Advance(InactivityPeriod)
	assert.ErrorIs(t, env.v.ClaimOwnership(addrB, common.Address{}), ErrInvalidHeir)
	assert.Equal(t, addrA, env.v.Owner())
}

func TestClaimOwnership_SelfSuccessionRejected(t *testing.T) {
	env := newTestVault(t, addrA, addrB)
	env.clock.Advance(InactivityPeriod)

	err := env.v.ClaimOwnership(addrB, addrB)
	assert.ErrorIs(t, err, ErrInvalidHeir)
	assert.Equal(t, addrA, env.v.Owner())
	assert.Equal(t, addrB, env.v.Heir())

	// 把旧 owner 指定为新继承人是允许的
	require.NoError(t, env.v.ClaimOwnership(addrB, addrA))
	assert.Equal(t, addrB, env.v.Owner())
	assert.Equal(t, addrA, env.v.Heir())
}

func TestHeartbeatResetsClaimWindow(t *testing.T) {
	env := newTestVault(t, addrA, addrB)
	ctx := context.Background()

	env.clock.Advance(InactivityPeriod - 10)
	require.NoError(t, env.v.Withdraw(ctx, addrA, big.NewInt(0)))

	env.clock.Advance(20)
	assert.ErrorIs(t, env.v.ClaimOwnership(addrB, addrC), ErrInactivityPeriodNotReached)
	assert.Equal(t, InactivityPeriod-20, env.v.TimeUntilClaimable())
}

func TestLastActivity_NeverMovesBackwards(t *testing.T) {
	env := newTestVault(t, addrA, addrB)
	ctx := context.Background()

	env.clock.Set(startTime - 500)
	require.NoError(t, env.v.Withdraw(ctx, addrA, big.NewInt(0)))
	assert.Equal(t, startTime, env.v.LastActivity())

	evs := env.events.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, HeartbeatUpdated{Owner: addrA, Timestamp: startTime}, evs[0])
}

func TestRestore(t *testing.T) {
	env := newTestVault(t, addrA, addrB)
	require.NoError(t, env.v.Deposit(context.Background(), addrA, big.NewInt(42)))

	st := env.v.Snapshot()
	restored, err := Restore(st, WithClock(env.clock))
	require.NoError(t, err)
	assert.Equal(t, env.v.Status(), restored.Status())

	_, err = Restore(State{Owner: addrA, Heir: addrA, Balance: "1"})
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = Restore(State{Owner: addrA, Heir: common.Address{}, Balance: "1"})
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = Restore(State{Owner: addrA, Heir: addrB, Balance: "-1"})
	assert.ErrorIs(t, err, ErrInvalidState)
}
