package client

import (
	"errors"
	"fmt"

	"heirvault/registry"
	"heirvault/types"
	"heirvault/vault"
)

// ErrOutcomeUnknown 写请求失败，但服务端可能已经执行
// 例如处理超时（TimeoutHandler 返回 503）或落盘失败时，金库可能已经提交；nonce 已被消耗，
// 不要原样重发，先用 Status / Events 确认结果
var ErrOutcomeUnknown = errors.New("outcome unknown")

// APIError 服务端返回的非 200 响应
type APIError struct {
	Op         string
	StatusCode int
	Code       string
	Message    string
	// Write 为 true 表示这是一个签名写请求
	Write bool
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("%s: status %d, body %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Op, e.Code, e.Message)
}

var codeSentinels = map[string]error{
	types.CodeUnauthorized:       vault.ErrUnauthorized,
	types.CodeInvalidHeir:        vault.ErrInvalidHeir,
	types.CodeInactivityNotEnded: vault.ErrInactivityPeriodNotReached,
	types.CodeInsufficient:       vault.ErrInsufficientBalance,
	types.CodeTransferFailed:     vault.ErrTransferFailed,
	types.CodeInvalidAmount:      vault.ErrInvalidAmount,
	types.CodeNotFound:           registry.ErrVaultNotFound,
	types.CodeUnavailable:        registry.ErrVaultUnavailable,
}

// Is 让 errors.Is(err, vault.ErrUnauthorized) 等判断在客户端同样可用
func (e *APIError) Is(target error) bool {
	if target == ErrOutcomeUnknown {
		return e.outcomeUnknown()
	}
	sentinel, ok := codeSentinels[e.Code]
	return ok && sentinel == target
}

// outcomeUnknown 写请求遇到内部错误或没有错误码的 5xx（超时）
func (e *APIError) outcomeUnknown() bool {
	if !e.Write {
		return false
	}
	if e.Code == types.CodeInternal {
		return true
	}
	return e.Code == "" && e.StatusCode >= 500
}
