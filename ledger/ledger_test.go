package ledger

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"heirvault/db"
	"heirvault/vault"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0xa11ce00000000000000000000000000000000001")
	bob   = common.HexToAddress("0xb0b0000000000000000000000000000000000002")
)

func TestCreditDebit(t *testing.T) {
	l, err := New()
	require.NoError(t, err)
	ctx := context.Background()

	err = l.Credit(ctx, alice, big.NewInt(10))
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	require.NoError(t, l.Fund(alice, big.NewInt(100)))
	require.NoError(t, l.Credit(ctx, alice, big.NewInt(60)))
	assert.Equal(t, "40", l.BalanceOf(alice).String())
	assert.Equal(t, "60", l.Custody().String())

	require.NoError(t, l.Debit(ctx, bob, big.NewInt(25)))
	assert.Equal(t, "25", l.BalanceOf(bob).String())
	assert.Equal(t, "35", l.Custody().String())

	// 托管不足时拒绝付出
	assert.Error(t, l.Debit(ctx, bob, big.NewInt(36)))
}

func TestUnlimitedCredit(t *testing.T) {
	l, err := New(WithUnlimitedCredit())
	require.NoError(t, err)

	require.NoError(t, l.Credit(context.Background(), alice, big.NewInt(1000)))
	assert.Equal(t, "0", l.BalanceOf(alice).String())
	assert.Equal(t, "1000", l.Custody().String())
}

func TestRejectAccept(t *testing.T) {
	l, err := New(WithUnlimitedCredit())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, l.Credit(ctx, alice, big.NewInt(50)))

	l.Reject(bob)
	err = l.Debit(ctx, bob, big.NewInt(10))
	assert.ErrorIs(t, err, ErrRecipientRejected)
	assert.Equal(t, "50", l.Custody().String())
	assert.Equal(t, "0", l.BalanceOf(bob).String())

	l.Accept(bob)
	require.NoError(t, l.Debit(ctx, bob, big.NewInt(10)))
	assert.Equal(t, "10", l.BalanceOf(bob).String())
}

func TestCanceledContext(t *testing.T) {
	l, err := New(WithUnlimitedCredit())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, l.Credit(ctx, alice, big.NewInt(1)), context.Canceled)
	assert.ErrorIs(t, l.Debit(ctx, bob, big.NewInt(1)), context.Canceled)
}

func TestFundRejectsInvalidAmount(t *testing.T) {
	l, err := New()
	require.NoError(t, err)
	assert.ErrorIs(t, l.Fund(alice, big.NewInt(-1)), vault.ErrInvalidAmount)
	assert.NoError(t, l.Fund(alice, vault.MaxUint256))
	assert.ErrorIs(t, l.Fund(alice, big.NewInt(1)), vault.ErrOverflow)
}

func TestWithStore_PersistsAndReloads(t *testing.T) {
	mgr, err := db.NewMemoryManager(nil)
	require.NoError(t, err)
	defer mgr.Close()

	l, err := New(WithStore(mgr))
	require.NoError(t, err)
	require.NoError(t, l.Fund(alice, big.NewInt(300)))
	require.NoError(t, l.Credit(context.Background(), alice, big.NewInt(100)))
	require.NoError(t, l.Debit(context.Background(), bob, big.NewInt(40)))

	reloaded, err := New(WithStore(mgr))
	require.NoError(t, err)
	assert.Equal(t, "200", reloaded.BalanceOf(alice).String())
	assert.Equal(t, "40", reloaded.BalanceOf(bob).String())
}

type failingStore struct{}

func (failingStore) SaveLedgerAccount(common.Address, *big.Int) error {
	return errors.New("disk full")
}

func (failingStore) LoadLedgerAccounts() (map[common.Address]*big.Int, error) {
	return nil, nil
}

func TestStoreFailureRollsBack(t *testing.T) {
	l, err := New(WithStore(failingStore{}), WithUnlimitedCredit())
	require.NoError(t, err)

	assert.Error(t, l.Credit(context.Background(), alice, big.NewInt(5)))
	assert.Equal(t, "0", l.Custody().String())
	assert.Equal(t, "0", l.BalanceOf(alice).String())
}

// 作为金库的转账实现时，拒收会变成 TransferFailed
func TestLedgerAsVaultTransfer(t *testing.T) {
	l, err := New()
	require.NoError(t, err)
	require.NoError(t, l.Fund(bob, big.NewInt(100)))

	v, err := vault.New(alice, bob, vault.WithTransfer(l))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, v.Deposit(ctx, bob, big.NewInt(70)))
	assert.Equal(t, "30", l.BalanceOf(bob).String())

	l.Reject(alice)
	err = v.Withdraw(ctx, alice, big.NewInt(20))
	assert.ErrorIs(t, err, vault.ErrTransferFailed)
	assert.ErrorIs(t, err, ErrRecipientRejected)
	assert.Equal(t, "70", v.Balance().String())

	l.Accept(alice)
	require.NoError(t, v.Withdraw(ctx, alice, big.NewInt(20)))
	assert.Equal(t, "20", l.BalanceOf(alice).String())
	assert.Equal(t, "50", l.Custody().String())
}
