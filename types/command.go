package types

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Op 写操作类型
type Op string

const (
	OpCreate     Op = "create"
	OpDeposit    Op = "deposit"
	OpWithdraw   Op = "withdraw"
	OpUpdateHeir Op = "heir"
	OpClaim      Op = "claim"
)

var ErrBadCommand = errors.New("bad command")

// Command 被签名的命令内容
// Amount 是最小单位的十进制字符串
type Command struct {
	Op        Op     `json:"op"`
	Vault     string `json:"vault,omitempty"`
	Heir      string `json:"heir,omitempty"`
	Amount    string `json:"amount,omitempty"`
	Nonce     uint64 `json:"nonce"`
	Timestamp int64  `json:"timestamp"`
}

// SignedCommand 请求体：Payload 为 Command 的 JSON 原文，Signature 为 65 字节紧凑签名
// 两者都用 0x hex 传输，保证服务端拿到的字节与签名时完全一致
type SignedCommand struct {
	Payload   hexutil.Bytes `json:"payload"`
	Signature hexutil.Bytes `json:"signature"`
}

func (c *Command) Encode() ([]byte, error) {
	return json.Marshal(c)
}

// DecodeCommand 解析并检查命令是否与 want 匹配
func DecodeCommand(payload []byte, want Op) (*Command, error) {
	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadCommand, err)
	}
	if cmd.Op != want {
		return nil, fmt.Errorf("%w: op %q, expected %q", ErrBadCommand, cmd.Op, want)
	}
	return &cmd, nil
}
