package vault

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ========== 外部原语接口 ==========

// Transfer 价值转移原语，由宿主环境提供
// 实现方不得在回调中再次调用发起它的同一个金库（金库在整个操作期间持有锁）
type Transfer interface {
	// Credit 把 amount 从 from 转入托管；失败时金库余额不变
	Credit(ctx context.Context, from common.Address, amount *big.Int) error
	// Debit 把 amount 从托管支付给 to；失败会让整个提取操作失败
	Debit(ctx context.Context, to common.Address, amount *big.Int) error
}

// Clock 时间源，返回 unix 秒
// 假定对同一个金库单调不减，但金库本身不依赖这一点
type Clock interface {
	Now() int64
}

// EventSink 事件出口，尽力投递，不影响状态机结果
type EventSink interface {
	Emit(ev Event)
}

// nopTransfer 参考模型下的转账：永远成功
type nopTransfer struct{}

func (nopTransfer) Credit(context.Context, common.Address, *big.Int) error { return nil }
func (nopTransfer) Debit(context.Context, common.Address, *big.Int) error  { return nil }

type discardSink struct{}

func (discardSink) Emit(Event) {}
