// keys/keys.go
// 统一的 Key 定义包，供 db 和 registry 共同使用
package keys

import (
	"fmt"
	"strings"
)

// ===================== 版本控制 =====================
// 全局 Key 版本前缀（例如 "v1" → 产出 "v1_<key>"）
const KeyVersion = "v1"

// withVer 把版本号拼到最前面（保持下划线风格：v1_<...>）
func withVer(s string) string {
	if KeyVersion == "" {
		return s
	}
	return KeyVersion + "_" + s
}

// StripVersion 把带版本的键去掉版本前缀
func StripVersion(prefixed string) string {
	if KeyVersion == "" {
		return prefixed
	}
	return strings.TrimPrefix(prefixed, KeyVersion+"_")
}

// NormalizeAddress 地址统一转小写 hex，避免校验和大小写导致同一地址出现两个 key
func NormalizeAddress(addr string) string {
	return strings.ToLower(addr)
}

// ===================== 金库 =====================

// KeyVault 金库记录（owner/heir/心跳/余额快照）
// 例：v1_vault_<vaultID>
func KeyVault(vaultID string) string {
	return withVer("vault_" + NormalizeAddress(vaultID))
}

// KeyVaultPrefix 所有金库记录的前缀
func KeyVaultPrefix() string {
	return withVer("vault_")
}

// KeyVaultEvent 金库事件流水，seq 定长补零保证按序迭代
// 例：v1_vaultevent_<vaultID>_00000000000000000001
func KeyVaultEvent(vaultID string, seq uint64) string {
	return withVer(fmt.Sprintf("vaultevent_%s_%020d", NormalizeAddress(vaultID), seq))
}

// KeyVaultEventPrefix 某个金库全部事件的前缀
func KeyVaultEventPrefix(vaultID string) string {
	return withVer(fmt.Sprintf("vaultevent_%s_", NormalizeAddress(vaultID)))
}

// KeyCreatorNonce 创建者 nonce，用于派生金库地址
// 例：v1_nonce_<creator>
func KeyCreatorNonce(creator string) string {
	return withVer("nonce_" + NormalizeAddress(creator))
}

// ===================== 结算账本 =====================

// KeyLedgerAccount 外部账户余额
// 例：v1_ledger_<address>
func KeyLedgerAccount(addr string) string {
	return withVer("ledger_" + NormalizeAddress(addr))
}

func KeyLedgerAccountPrefix() string {
	return withVer("ledger_")
}

// ===================== 解析 =====================

// ParseVaultEventKey 从事件 key 中解析出金库 ID 与序号
func ParseVaultEventKey(key string) (vaultID string, seq uint64, ok bool) {
	rest := strings.TrimPrefix(key, withVer("vaultevent_"))
	if rest == key {
		return "", 0, false
	}
	idx := strings.LastIndex(rest, "_")
	if idx <= 0 || idx == len(rest)-1 {
		return "", 0, false
	}
	if _, err := fmt.Sscanf(rest[idx+1:], "%d", &seq); err != nil {
		return "", 0, false
	}
	return rest[:idx], seq, true
}
