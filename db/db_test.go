package db

import (
	"math/big"
	"testing"

	"heirvault/keys"
	"heirvault/vault"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	idA    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	owner  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	heir   = common.HexToAddress("0x2222222222222222222222222222222222222222")
	funder = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	mgr, err := NewMemoryManager(nil)
	require.NoError(t, err)
	t.Cleanup(mgr.Close)
	return mgr
}

func TestGetSet(t *testing.T) {
	mgr := newTestManager(t)

	_, err := mgr.Get("v1_vault_missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, IsNotFound(err))

	require.NoError(t, mgr.Set("v1_vault_x", []byte("hello")))
	got, err := mgr.Get("v1_vault_x")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	// 状态类 key 可以覆盖
	require.NoError(t, mgr.Set("v1_vault_x", []byte("world")))
	got, err = mgr.Get("v1_vault_x")
	require.NoError(t, err)
	assert.Equal(t, "world", string(got))
}

func TestAppendOnlyKeys(t *testing.T) {
	mgr := newTestManager(t)
	key := keys.KeyVaultEvent(idA.Hex(), 1)

	require.NoError(t, mgr.Set(key, []byte("first")))
	err := mgr.Set(key, []byte("second"))
	assert.ErrorIs(t, err, ErrAppendOnly)

	got, err := mgr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "first", string(got))
}

func TestScanOrdered(t *testing.T) {
	mgr := newTestManager(t)
	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, mgr.Set(keys.KeyVaultEvent(idA.Hex(), i), []byte{byte(i)}))
	}
	// 其他金库的事件不能混进来
	require.NoError(t, mgr.Set(keys.KeyVaultEvent(owner.Hex(), 1), []byte{9}))

	asc, err := mgr.ScanOrdered(keys.KeyVaultEventPrefix(idA.Hex()), 0, false)
	require.NoError(t, err)
	require.Len(t, asc, 5)
	assert.Equal(t, []byte{1}, asc[0].Value)

	desc, err := mgr.ScanOrdered(keys.KeyVaultEventPrefix(idA.Hex()), 2, true)
	require.NoError(t, err)
	require.Len(t, desc, 2)
	assert.Equal(t, []byte{5}, desc[0].Value)
	assert.Equal(t, []byte{4}, desc[1].Value)

	all, err := mgr.Scan(keys.KeyVaultEventPrefix(idA.Hex()))
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestCommitVaultAndEvents(t *testing.T) {
	mgr := newTestManager(t)

	rec := &VaultRecord{
		ID:        idA,
		Creator:   owner,
		CreatedAt: 1000,
		State: vault.State{
			Owner:        owner,
			Heir:         heir,
			LastActivity: 1000,
			Balance:      "0",
		},
	}
	require.NoError(t, mgr.CommitVault(rec, nil, 1000))
	assert.Equal(t, uint64(0), rec.EventSeq)

	rec.State.Balance = "100"
	events := []vault.Event{
		vault.Deposited{From: funder, Amount: big.NewInt(100)},
		vault.HeartbeatUpdated{Owner: owner, Timestamp: 1001},
	}
	require.NoError(t, mgr.CommitVault(rec, events, 1001))
	assert.Equal(t, uint64(2), rec.EventSeq)

	rec.State.Balance = "40"
	require.NoError(t, mgr.CommitVault(rec, []vault.Event{vault.Withdrawn{To: owner, Amount: big.NewInt(60)}}, 1002))

	loaded, err := mgr.GetVault(idA)
	require.NoError(t, err)
	assert.Equal(t, "40", loaded.State.Balance)
	assert.Equal(t, owner, loaded.State.Owner)
	assert.Equal(t, heir, loaded.State.Heir)
	assert.Equal(t, uint64(3), loaded.EventSeq)

	evs, err := mgr.ListEvents(idA, 0)
	require.NoError(t, err)
	require.Len(t, evs, 3)
	assert.Equal(t, vault.EventDeposited, evs[0].Kind)
	assert.Equal(t, vault.EventHeartbeatUpdated, evs[1].Kind)
	assert.Equal(t, vault.EventWithdrawn, evs[2].Kind)
	assert.JSONEq(t, `{"to":"`+owner.Hex()+`","amount":60}`, string(evs[2].Data))

	latest, err := mgr.ListEvents(idA, 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, uint64(2), latest[0].Seq)
	assert.Equal(t, uint64(3), latest[1].Seq)

	list, err := mgr.ListVaults()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, idA, list[0].ID)

	_, err = mgr.GetVault(heir)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCommitVault_RejectsSequenceReuse(t *testing.T) {
	mgr := newTestManager(t)
	rec := &VaultRecord{ID: idA, State: vault.State{Owner: owner, Heir: heir, Balance: "0"}}
	require.NoError(t, mgr.CommitVault(rec, []vault.Event{vault.HeirUpdated{OldHeir: heir, NewHeir: funder}}, 1))

	stale := &VaultRecord{ID: idA, State: vault.State{Owner: owner, Heir: heir, Balance: "0"}}
	err := mgr.CommitVault(stale, []vault.Event{vault.HeirUpdated{OldHeir: heir, NewHeir: funder}}, 2)
	assert.ErrorIs(t, err, ErrAppendOnly)

	// 失败的事务不能留下部分写入
	loaded, err := mgr.GetVault(idA)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), loaded.EventSeq)
}

func TestNextCreatorNonce(t *testing.T) {
	mgr := newTestManager(t)
	for want := uint64(0); want < 3; want++ {
		got, err := mgr.NextCreatorNonce(owner)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	got, err := mgr.NextCreatorNonce(heir)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), got)
}

func TestLedgerAccounts(t *testing.T) {
	mgr := newTestManager(t)
	require.NoError(t, mgr.SaveLedgerAccount(owner, big.NewInt(500)))
	require.NoError(t, mgr.SaveLedgerAccount(funder, big.NewInt(7)))
	require.NoError(t, mgr.SaveLedgerAccount(owner, big.NewInt(450)))

	accounts, err := mgr.LoadLedgerAccounts()
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "450", accounts[owner].String())
	assert.Equal(t, "7", accounts[funder].String())
}

func TestClosedManager(t *testing.T) {
	mgr, err := NewMemoryManager(nil)
	require.NoError(t, err)
	mgr.Close()
	mgr.Close()

	_, err = mgr.Get("v1_vault_x")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, mgr.Set("v1_vault_x", nil), ErrClosed)
}

func TestNewManager_OnDisk(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager(dir, nil)
	require.NoError(t, err)
	require.NoError(t, mgr.Set("v1_vault_disk", []byte("1")))
	mgr.Close()

	reopened, err := NewManager(dir, nil)
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.Get("v1_vault_disk")
	require.NoError(t, err)
	assert.Equal(t, "1", string(got))
}
