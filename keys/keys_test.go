package keys

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVaultKeys(t *testing.T) {
	id := "0xAbCdEf0000000000000000000000000000000001"

	assert.Equal(t, "v1_vault_0xabcdef0000000000000000000000000000000001", KeyVault(id))
	assert.Equal(t, "v1_vaultevent_0xabcdef0000000000000000000000000000000001_00000000000000000007", KeyVaultEvent(id, 7))
	assert.True(t, len(KeyVaultEventPrefix(id)) < len(KeyVaultEvent(id, 7)))
	assert.Equal(t, "vault_0xabcdef0000000000000000000000000000000001", StripVersion(KeyVault(id)))
}

func TestEventKeysSortBySequence(t *testing.T) {
	id := "0x01"
	assert.Less(t, KeyVaultEvent(id, 9), KeyVaultEvent(id, 10))
	assert.Less(t, KeyVaultEvent(id, 10), KeyVaultEvent(id, 100))
}

func TestParseVaultEventKey(t *testing.T) {
	id, seq, ok := ParseVaultEventKey(KeyVaultEvent("0xAB", 42))
	assert.True(t, ok)
	assert.Equal(t, "0xab", id)
	assert.Equal(t, uint64(42), seq)

	_, _, ok = ParseVaultEventKey(KeyVault("0xab"))
	assert.False(t, ok)
	_, _, ok = ParseVaultEventKey("v1_vaultevent_0xab_")
	assert.False(t, ok)
}

func TestCategorizeKey(t *testing.T) {
	assert.Equal(t, CategoryState, CategorizeKey(KeyVault("0x1")))
	assert.Equal(t, CategoryState, CategorizeKey(KeyLedgerAccount("0x1")))
	assert.Equal(t, CategoryState, CategorizeKey(KeyCreatorNonce("0x1")))
	assert.Equal(t, CategoryLog, CategorizeKey(KeyVaultEvent("0x1", 1)))
	assert.Equal(t, CategoryUnknown, CategorizeKey("other"))
	assert.True(t, IsAppendOnly(KeyVaultEvent("0x1", 1)))
	assert.False(t, IsAppendOnly(KeyVault("0x1")))
}
