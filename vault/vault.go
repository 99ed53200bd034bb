package vault

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Vault 带继承机制的托管金库
// owner 可以提取与指定继承人；owner 超过 InactivityPeriod 未活动时，heir 可以接管
type Vault struct {
	mu sync.Mutex

	owner        common.Address
	heir         common.Address
	lastActivity int64
	balance      *big.Int

	clock    Clock
	transfer Transfer
	sink     EventSink
	journal  func(State) error
}

// Option 金库构造选项
type Option func(*Vault)

// WithClock 替换时间源，默认 SystemClock
func WithClock(c Clock) Option {
	return func(v *Vault) {
		if c != nil {
			v.clock = c
		}
	}
}

// WithTransfer 注入转账原语，默认永远成功
func WithTransfer(t Transfer) Option {
	return func(v *Vault) {
		if t != nil {
			v.transfer = t
		}
	}
}

// WithEventSink 注入事件出口，默认丢弃
func WithEventSink(s EventSink) Option {
	return func(v *Vault) {
		if s != nil {
			v.sink = s
		}
	}
}

// WithJournal 提取时在调用 Debit 之前把已扣减的快照交给 fn 落盘
// fn 返回错误时放弃本次提取，余额恢复，不调用 Debit
func WithJournal(fn func(State) error) Option {
	return func(v *Vault) { v.journal = fn }
}

// Status 某一时刻的只读视图
type Status struct {
	Owner              common.Address
	Heir               common.Address
	LastActivity       int64
	Balance            *big.Int
	Now                int64
	CanHeirClaim       bool
	TimeUntilClaimable int64
}

// State 持久化快照，余额用十进制字符串保存
type State struct {
	Owner        common.Address `json:"owner"`
	Heir         common.Address `json:"heir"`
	LastActivity int64          `json:"lastActivity"`
	Balance      string         `json:"balance"`
}

func newVault(opts []Option) *Vault {
	v := &Vault{
		balance:  big.NewInt(0),
		clock:    SystemClock{},
		transfer: nopTransfer{},
		sink:     discardSink{},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// New 创建金库：creator 成为 owner，lastActivity 取创建时间
func New(creator, heir common.Address, opts ...Option) (*Vault, error) {
	if creator == (common.Address{}) {
		return nil, ErrInvalidOwner
	}
	if heir == (common.Address{}) || heir == creator {
		return nil, ErrInvalidHeir
	}

	v := newVault(opts)
	v.owner = creator
	v.heir = heir
	v.lastActivity = v.clock.Now()
	return v, nil
}

// Restore 从快照重建金库，重新校验不变量
func Restore(st State, opts ...Option) (*Vault, error) {
	if st.Owner == (common.Address{}) || st.Heir == (common.Address{}) {
		return nil, fmt.Errorf("%w: zero owner or heir", ErrInvalidState)
	}
	if st.Owner == st.Heir {
		return nil, fmt.Errorf("%w: owner equals heir", ErrInvalidState)
	}
	balance, err := ParseAmount(st.Balance)
	if err != nil {
		return nil, fmt.Errorf("%w: balance %q: %v", ErrInvalidState, st.Balance, err)
	}

	v := newVault(opts)
	v.owner = st.Owner
	v.heir = st.Heir
	v.lastActivity = st.LastActivity
	v.balance = balance
	return v, nil
}

// touch 刷新心跳；时钟回拨时保留原值，保证 lastActivity 不回退
func (v *Vault) touch() int64 {
	if now := v.clock.Now(); now > v.lastActivity {
		v.lastActivity = now
	}
	return v.lastActivity
}

// Deposit 任何人都可以存入
func (v *Vault) Deposit(ctx context.Context, from common.Address, amount *big.Int) error {
	if err := ValidateAmount(amount); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	newBalance, err := SafeAdd(v.balance, amount)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	amt := new(big.Int).Set(amount)
	if err := v.transfer.Credit(ctx, from, amt); err != nil {
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	v.balance = newBalance

	v.sink.Emit(Deposited{From: from, Amount: new(big.Int).Set(amt)})
	return nil
}

// Withdraw owner 提取；amount 为 0 时只刷新心跳
//
// 心跳在转账之前写入，转账失败时不回滚心跳，只恢复余额。
// 余额在外部调用前先扣减，外部调用期间看不到未扣减的余额。
func (v *Vault) Withdraw(ctx context.Context, caller common.Address, amount *big.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if caller != v.owner {
		return ErrUnauthorized
	}
	if err := ValidateAmount(amount); err != nil {
		return err
	}
	if amount.Cmp(v.balance) > 0 {
		return fmt.Errorf("%w: has %s, need %s", ErrInsufficientBalance, v.balance.String(), amount.String())
	}

	ts := v.touch()
	if amount.Sign() == 0 {
		v.sink.Emit(HeartbeatUpdated{Owner: v.owner, Timestamp: ts})
		return nil
	}

	prev := v.balance
	amt := new(big.Int).Set(amount)
	v.balance = MustSub(prev, amt)
	if v.journal != nil {
		if err := v.journal(v.snapshotLocked()); err != nil {
			v.balance = prev
			return fmt.Errorf("journal withdrawal: %w", err)
		}
	}
	if err := v.transfer.Debit(ctx, v.owner, amt); err != nil {
		v.balance = prev
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}

	v.sink.Emit(Withdrawn{To: v.owner, Amount: new(big.Int).Set(amount)})
	return nil
}

// UpdateHeir owner 更换继承人，不刷新心跳
func (v *Vault) UpdateHeir(caller, newHeir common.Address) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if caller != v.owner {
		return ErrUnauthorized
	}
	if newHeir == (common.Address{}) || newHeir == v.owner {
		return ErrInvalidHeir
	}

	old := v.heir
	v.heir = newHeir
	v.sink.Emit(HeirUpdated{OldHeir: old, NewHeir: newHeir})
	return nil
}

// ClaimOwnership 继承人在不活跃期满（含边界）后接管，并指定新的继承人
// 新继承人不能是调用者自己：接管后调用者即 owner，否则 owner == heir
func (v *Vault) ClaimOwnership(caller, newHeir common.Address) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if caller != v.heir {
		return ErrUnauthorized
	}
	if !v.claimableAt(v.clock.Now()) {
		return ErrInactivityPeriodNotReached
	}
	if newHeir == (common.Address{}) || newHeir == caller {
		return ErrInvalidHeir
	}

	oldOwner, oldHeir := v.owner, v.heir
	v.owner = caller
	v.heir = newHeir
	v.touch()

	v.sink.Emit(OwnershipClaimed{OldOwner: oldOwner, NewOwner: caller, NewHeir: newHeir})
	v.sink.Emit(HeirUpdated{OldHeir: oldHeir, NewHeir: newHeir})
	return nil
}

func (v *Vault) claimableAt(now int64) bool {
	return now >= v.lastActivity+InactivityPeriod
}

func (v *Vault) untilClaimableAt(now int64) int64 {
	remaining := v.lastActivity + InactivityPeriod - now
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ========== 只读查询 ==========

func (v *Vault) Balance() *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return new(big.Int).Set(v.balance)
}

func (v *Vault) Owner() common.Address {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.owner
}

func (v *Vault) Heir() common.Address {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.heir
}

func (v *Vault) LastActivity() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastActivity
}

// CanHeirClaim 当前时间是否已到达 lastActivity + InactivityPeriod
func (v *Vault) CanHeirClaim() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.claimableAt(v.clock.Now())
}

// TimeUntilClaimable 距离可接管还剩多少秒，已可接管时为 0
func (v *Vault) TimeUntilClaimable() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.untilClaimableAt(v.clock.Now())
}

// Status 一次性读取全部字段，保证各字段来自同一时刻
func (v *Vault) Status() Status {
	v.mu.Lock()
	defer v.mu.Unlock()
	now := v.clock.Now()
	return Status{
		Owner:              v.owner,
		Heir:               v.heir,
		LastActivity:       v.lastActivity,
		Balance:            new(big.Int).Set(v.balance),
		Now:                now,
		CanHeirClaim:       v.claimableAt(now),
		TimeUntilClaimable: v.untilClaimableAt(now),
	}
}

func (v *Vault) Snapshot() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshotLocked()
}

func (v *Vault) snapshotLocked() State {
	return State{
		Owner:        v.owner,
		Heir:         v.heir,
		LastActivity: v.lastActivity,
		Balance:      v.balance.String(),
	}
}
