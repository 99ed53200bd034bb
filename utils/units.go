package utils

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidUnits = errors.New("invalid amount")

// ParseUnits 把人类可读金额（如 "1.5"）按 decimals 换算成最小单位
// 小数位超过 decimals 或为负数时报错
func ParseUnits(s string, decimals int32) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidUnits)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUnits, s)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%w: negative %q", ErrInvalidUnits, s)
	}
	scaled := d.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("%w: %q has more than %d decimals", ErrInvalidUnits, s, decimals)
	}
	return scaled.BigInt(), nil
}

// FormatUnits 最小单位换算成人类可读金额，去掉末尾的 0
func FormatUnits(amount *big.Int, decimals int32) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -decimals).String()
}
