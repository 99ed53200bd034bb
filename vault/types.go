package vault

import "errors"

// ========== 错误定义 ==========

var (
	// ErrUnauthorized 调用者不是当前操作要求的身份（owner / heir）
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidHeir 继承人为零地址，或与 owner 相同
	ErrInvalidHeir = errors.New("invalid heir")
	// ErrInvalidOwner 创建者为零地址
	ErrInvalidOwner = errors.New("invalid owner")
	// ErrInactivityPeriodNotReached 继承人在不活跃期满之前尝试接管
	ErrInactivityPeriodNotReached = errors.New("inactivity period not reached")
	// ErrInsufficientBalance 提取金额超过金库余额
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrTransferFailed 外部转账原语返回失败
	ErrTransferFailed = errors.New("transfer failed")
	// ErrInvalidAmount 金额为空、为负或超过 uint256
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidState 从快照恢复时数据不满足不变量
	ErrInvalidState = errors.New("invalid vault state")
)

// ========== 常量 ==========

// InactivityPeriod 不活跃阈值（秒）：30 天
// 金库整个生命周期内不可修改
const InactivityPeriod int64 = 30 * 24 * 60 * 60
