// Package ledger 外部账户账本，为金库提供转入/转出原语
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"heirvault/logs"
	"heirvault/vault"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInsufficientFunds = errors.New("insufficient external funds")
	ErrRecipientRejected = errors.New("recipient rejected transfer")
)

// Store 账户余额持久化接口，db.Manager 实现了它
type Store interface {
	SaveLedgerAccount(addr common.Address, balance *big.Int) error
	LoadLedgerAccounts() (map[common.Address]*big.Int, error)
}

// Ledger 实现 vault.Transfer
// Credit 把外部账户的钱转入托管，Debit 把托管的钱付给外部账户
type Ledger struct {
	mu        sync.Mutex
	accounts  map[common.Address]*big.Int
	rejecting map[common.Address]struct{}
	custody   *big.Int

	unlimited bool
	store     Store
	logger    logs.Logger
}

var _ vault.Transfer = (*Ledger)(nil)

type Option func(*Ledger)

// WithUnlimitedCredit 存款不检查外部余额，余额不足时视为外部铸造
func WithUnlimitedCredit() Option {
	return func(l *Ledger) { l.unlimited = true }
}

func WithStore(s Store) Option {
	return func(l *Ledger) { l.store = s }
}

func WithLogger(logger logs.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// New 创建账本；配置了 Store 时从存储加载已有余额
func New(opts ...Option) (*Ledger, error) {
	l := &Ledger{
		accounts:  make(map[common.Address]*big.Int),
		rejecting: make(map[common.Address]struct{}),
		custody:   big.NewInt(0),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.store != nil {
		loaded, err := l.store.LoadLedgerAccounts()
		if err != nil {
			return nil, fmt.Errorf("load ledger accounts: %w", err)
		}
		for addr, bal := range loaded {
			l.accounts[addr] = bal
		}
	}
	return l, nil
}

func (l *Ledger) balanceLocked(addr common.Address) *big.Int {
	if bal, ok := l.accounts[addr]; ok {
		return bal
	}
	return big.NewInt(0)
}

// setLocked 更新余额并落盘，落盘失败时回滚内存值
func (l *Ledger) setLocked(addr common.Address, balance *big.Int) error {
	prev, had := l.accounts[addr]
	l.accounts[addr] = balance
	if l.store == nil {
		return nil
	}
	if err := l.store.SaveLedgerAccount(addr, balance); err != nil {
		if had {
			l.accounts[addr] = prev
		} else {
			delete(l.accounts, addr)
		}
		return fmt.Errorf("persist ledger account %s: %w", addr.Hex(), err)
	}
	return nil
}

// Fund 给外部账户加钱（水龙头/测试用）
func (l *Ledger) Fund(addr common.Address, amount *big.Int) error {
	if err := vault.ValidateAmount(amount); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	next, err := vault.SafeAdd(l.balanceLocked(addr), amount)
	if err != nil {
		return err
	}
	return l.setLocked(addr, next)
}

// BalanceOf 外部账户余额
func (l *Ledger) BalanceOf(addr common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.balanceLocked(addr))
}

// HasAccount 账户是否出现过（水龙头只给新账户注入一次）
func (l *Ledger) HasAccount(addr common.Address) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.accounts[addr]
	return ok
}

// Custody 当前托管总额
func (l *Ledger) Custody() *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.custody)
}

// SetCustody 重启后按金库余额总和恢复托管额
func (l *Ledger) SetCustody(total *big.Int) {
	l.mu.Lock()
	l.custody = new(big.Int).Set(total)
	l.mu.Unlock()
}

// Reject 让 addr 拒收后续转账
func (l *Ledger) Reject(addr common.Address) {
	l.mu.Lock()
	l.rejecting[addr] = struct{}{}
	l.mu.Unlock()
}

func (l *Ledger) Accept(addr common.Address) {
	l.mu.Lock()
	delete(l.rejecting, addr)
	l.mu.Unlock()
}

func (l *Ledger) Credit(ctx context.Context, from common.Address, amount *big.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	bal := l.balanceLocked(from)
	if bal.Cmp(amount) < 0 {
		if !l.unlimited {
			return fmt.Errorf("%w: %s has %s, need %s", ErrInsufficientFunds, from.Hex(), bal, amount)
		}
		// 外部铸造：余额不足部分凭空补齐
		bal = new(big.Int).Set(amount)
	}
	if err := l.setLocked(from, new(big.Int).Sub(bal, amount)); err != nil {
		return err
	}
	l.custody.Add(l.custody, amount)
	return nil
}

func (l *Ledger) Debit(ctx context.Context, to common.Address, amount *big.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.rejecting[to]; ok {
		if l.logger != nil {
			l.logger.Warn("[ledger] %s rejected transfer of %s", to.Hex(), amount)
		}
		return fmt.Errorf("%w: %s", ErrRecipientRejected, to.Hex())
	}
	if l.custody.Cmp(amount) < 0 {
		return fmt.Errorf("custody underflow: has %s, pay %s", l.custody, amount)
	}
	next, err := vault.SafeAdd(l.balanceLocked(to), amount)
	if err != nil {
		return err
	}
	if err := l.setLocked(to, next); err != nil {
		return err
	}
	l.custody.Sub(l.custody, amount)
	return nil
}
