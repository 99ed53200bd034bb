package vault

import (
	"errors"
	"math/big"
)

// safe_math.go 提供带溢出检查的 big.Int 运算
// 金库余额与转账金额都按 uint256 语义处理

var (
	// ErrOverflow 加法溢出错误
	ErrOverflow = errors.New("arithmetic overflow")
	// ErrUnderflow 减法下溢错误（结果为负数）
	ErrUnderflow = errors.New("arithmetic underflow")
	// ErrAmountTooLong 金额字符串过长
	ErrAmountTooLong = errors.New("amount string too long")
)

// MaxAmountStringLen 金额字符串最大长度（78 字符足够表示 2^256-1）
const MaxAmountStringLen = 78

// MaxUint256 是 256 位无符号整数的最大值
var MaxUint256 = func() *big.Int {
	max := new(big.Int)
	max.Exp(big.NewInt(2), big.NewInt(256), nil)
	max.Sub(max, big.NewInt(1))
	return max
}()

// ValidateAmount 金额必须非空、非负且不超过 MaxUint256
func ValidateAmount(a *big.Int) error {
	if a == nil {
		return ErrInvalidAmount
	}
	if a.Sign() < 0 || a.Cmp(MaxUint256) > 0 {
		return ErrInvalidAmount
	}
	return nil
}

// SafeAdd 安全加法：a + b
// 如果结果超过 MaxUint256，返回 ErrOverflow
func SafeAdd(a, b *big.Int) (*big.Int, error) {
	if a == nil {
		a = big.NewInt(0)
	}
	if b == nil {
		b = big.NewInt(0)
	}
	if a.Sign() < 0 || b.Sign() < 0 {
		return nil, errors.New("negative value not allowed")
	}

	result := new(big.Int).Add(a, b)
	if result.Cmp(MaxUint256) > 0 {
		return nil, ErrOverflow
	}
	return result, nil
}

// SafeSub 安全减法：a - b
// 如果 a < b，返回 ErrUnderflow
func SafeSub(a, b *big.Int) (*big.Int, error) {
	if a == nil {
		a = big.NewInt(0)
	}
	if b == nil {
		b = big.NewInt(0)
	}
	if a.Sign() < 0 || b.Sign() < 0 {
		return nil, errors.New("negative value not allowed")
	}
	if a.Cmp(b) < 0 {
		return nil, ErrUnderflow
	}
	return new(big.Int).Sub(a, b), nil
}

// MustSub 安全减法，panic 版本（仅用于已验证不会下溢的场景）
func MustSub(a, b *big.Int) *big.Int {
	result, err := SafeSub(a, b)
	if err != nil {
		panic(err)
	}
	return result
}

// ParseAmount 安全解析十进制金额字符串
// 验证：
// 1. 长度不超过 MaxAmountStringLen
// 2. 只包含数字
// 3. 不超过 MaxUint256
func ParseAmount(s string) (*big.Int, error) {
	// 空字符串视为 0
	if s == "" {
		return big.NewInt(0), nil
	}
	if len(s) > MaxAmountStringLen {
		return nil, ErrAmountTooLong
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return nil, ErrInvalidAmount
		}
	}

	amount, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, ErrInvalidAmount
	}
	if amount.Cmp(MaxUint256) > 0 {
		return nil, ErrOverflow
	}
	return amount, nil
}
