// keys/category.go
// Key 分类：可变状态 vs 只追加流水
package keys

import "strings"

// KeyCategory 定义 Key 的存储归属
type KeyCategory int

const (
	CategoryState  KeyCategory = iota // 可变状态，允许覆盖
	CategoryLog                       // 只追加流水，写入后不可覆盖
	CategoryUnknown
)

// ========== 可变状态前缀 ==========
var statePrefixes = []string{
	"v1_vault_",  // 金库快照
	"v1_nonce_",  // 创建者 nonce
	"v1_ledger_", // 账本账户
}

// ========== 只追加前缀 ==========
var logPrefixes = []string{
	"v1_vaultevent_",
}

// CategorizeKey 判断 key 的类别
func CategorizeKey(key string) KeyCategory {
	for _, prefix := range logPrefixes {
		if strings.HasPrefix(key, prefix) {
			return CategoryLog
		}
	}
	for _, prefix := range statePrefixes {
		if strings.HasPrefix(key, prefix) {
			return CategoryState
		}
	}
	return CategoryUnknown
}

// IsAppendOnly 只追加的 key 已存在时不能覆盖
func IsAppendOnly(key string) bool {
	return CategorizeKey(key) == CategoryLog
}
