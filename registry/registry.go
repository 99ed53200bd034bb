// Package registry 管理多个金库：创建、按 ID 路由操作、持久化快照与事件
package registry

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"heirvault/db"
	"heirvault/logs"
	"heirvault/vault"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	lru "github.com/hashicorp/golang-lru"
	"github.com/spaolacci/murmur3"
)

var (
	ErrVaultNotFound = errors.New("vault not found")
	ErrVaultExists   = errors.New("vault already exists")
	// ErrVaultUnavailable 内存状态尚未写回磁盘，写回成功前拒绝新的操作
	ErrVaultUnavailable = errors.New("vault unavailable")
)

const (
	defaultCacheSize = 1024
	// lockStripes 锁分片数，金库 ID 经 murmur3 映射到固定的锁上
	lockStripes = 256
)

// Observer 每个持久化成功的事件都会回调一次
type Observer func(id common.Address, ev vault.Event)

// trackingTransfer 记录本次操作是否真的移动了外部资金
type trackingTransfer struct {
	next  vault.Transfer
	moved bool
}

func (t *trackingTransfer) Credit(ctx context.Context, from common.Address, amount *big.Int) error {
	if t.next != nil {
		if err := t.next.Credit(ctx, from, amount); err != nil {
			return err
		}
	}
	t.moved = true
	return nil
}

func (t *trackingTransfer) Debit(ctx context.Context, to common.Address, amount *big.Int) error {
	if t.next != nil {
		if err := t.next.Debit(ctx, to, amount); err != nil {
			return err
		}
	}
	t.moved = true
	return nil
}

// entry 缓存中的已加载金库
type entry struct {
	v        *vault.Vault
	rec      *db.VaultRecord
	recorder *vault.EventRecorder
	transfer *trackingTransfer

	// journaled 本次操作已在付款前把扣减写入磁盘
	journaled bool
	// dirty 为 true 时内存领先于磁盘，pending 是尚未写入的事件
	dirty   bool
	pending []vault.Event
}

type Registry struct {
	store    *db.Manager
	transfer vault.Transfer
	clock    vault.Clock
	logger   logs.Logger
	observer Observer

	cacheSize int
	cache     *lru.Cache
	// locks 与缓存分开，缓存淘汰后同一金库仍落在同一把锁上
	locks [lockStripes]sync.Mutex
	// pinned 写回失败、但外部资金已经移动的金库，不参与缓存淘汰
	pinned sync.Map
}

type Option func(*Registry)

func WithTransfer(t vault.Transfer) Option { return func(r *Registry) { r.transfer = t } }
func WithClock(c vault.Clock) Option       { return func(r *Registry) { r.clock = c } }
func WithLogger(l logs.Logger) Option      { return func(r *Registry) { r.logger = l } }
func WithObserver(o Observer) Option       { return func(r *Registry) { r.observer = o } }

func WithCacheSize(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.cacheSize = n
		}
	}
}

func New(store *db.Manager, opts ...Option) (*Registry, error) {
	if store == nil {
		return nil, errors.New("registry: nil store")
	}
	r := &Registry{
		store:     store,
		clock:     vault.SystemClock{},
		cacheSize: defaultCacheSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	cache, err := lru.New(r.cacheSize)
	if err != nil {
		return nil, err
	}
	r.cache = cache
	return r, nil
}

func (r *Registry) logf(level int, format string, v ...interface{}) {
	if r.logger == nil {
		return
	}
	switch level {
	case logs.LevelError:
		r.logger.Error(format, v...)
	case logs.LevelWarning:
		r.logger.Warn(format, v...)
	default:
		r.logger.Info(format, v...)
	}
}

func (r *Registry) lockFor(id common.Address) *sync.Mutex {
	return &r.locks[murmur3.Sum32(id.Bytes())%lockStripes]
}

// newEntry 构造缓存项；vault 由调用方创建后填入 e.v
func (r *Registry) newEntry(rec *db.VaultRecord) *entry {
	return &entry{
		rec:      rec,
		recorder: vault.NewEventRecorder(),
		transfer: &trackingTransfer{next: r.transfer},
	}
}

func (r *Registry) vaultOptions(e *entry) []vault.Option {
	return []vault.Option{
		vault.WithClock(r.clock),
		vault.WithTransfer(e.transfer),
		vault.WithEventSink(e.recorder),
		vault.WithJournal(r.journalFor(e)),
	}
}

// journalFor 付款前把已扣减的快照写盘，失败时金库放弃提取
func (r *Registry) journalFor(e *entry) func(vault.State) error {
	return func(st vault.State) error {
		next := *e.rec
		next.State = st
		if err := r.store.CommitVault(&next, nil, r.clock.Now()); err != nil {
			return fmt.Errorf("persist vault %s: %w", next.ID.Hex(), err)
		}
		e.rec = &next
		e.journaled = true
		return nil
	}
}

// load 调用方必须持有 id 的锁
func (r *Registry) load(id common.Address) (*entry, error) {
	if pinned, ok := r.pinned.Load(id); ok {
		return pinned.(*entry), nil
	}
	if cached, ok := r.cache.Get(id); ok {
		return cached.(*entry), nil
	}
	rec, err := r.store.GetVault(id)
	if db.IsNotFound(err) {
		return nil, fmt.Errorf("%w: %s", ErrVaultNotFound, id.Hex())
	}
	if err != nil {
		return nil, err
	}
	e := r.newEntry(rec)
	v, err := vault.Restore(rec.State, r.vaultOptions(e)...)
	if err != nil {
		return nil, fmt.Errorf("restore vault %s: %w", id.Hex(), err)
	}
	e.v = v
	r.cache.Add(id, e)
	return e, nil
}

// Create creator 成为 owner，金库 ID 由 creator 与其 nonce 派生
func (r *Registry) Create(creator, heir common.Address) (common.Address, error) {
	e := r.newEntry(nil)
	v, err := vault.New(creator, heir, r.vaultOptions(e)...)
	if err != nil {
		return common.Address{}, err
	}
	e.v = v

	nonce, err := r.store.NextCreatorNonce(creator)
	if err != nil {
		return common.Address{}, fmt.Errorf("allocate nonce: %w", err)
	}
	id := crypto.CreateAddress(creator, nonce)

	lock := r.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	if _, err := r.store.GetVault(id); err == nil {
		return common.Address{}, fmt.Errorf("%w: %s", ErrVaultExists, id.Hex())
	} else if !db.IsNotFound(err) {
		return common.Address{}, err
	}

	rec := &db.VaultRecord{
		ID:        id,
		Creator:   creator,
		CreatedAt: v.LastActivity(),
		State:     v.Snapshot(),
	}
	if err := r.store.CommitVault(rec, e.recorder.Drain(), r.clock.Now()); err != nil {
		return common.Address{}, fmt.Errorf("persist vault %s: %w", id.Hex(), err)
	}
	e.rec = rec
	r.cache.Add(id, e)
	r.logf(logs.LevelInfo, "[registry] vault %s created by %s, heir %s", id.Hex(), creator.Hex(), heir.Hex())
	return id, nil
}

func (r *Registry) notify(id common.Address, events []vault.Event) {
	if r.observer == nil {
		return
	}
	for _, ev := range events {
		r.observer(id, ev)
	}
}

// flush 把领先于磁盘的内存状态和积压事件写回
func (r *Registry) flush(id common.Address, e *entry) error {
	next := *e.rec
	next.State = e.v.Snapshot()
	if err := r.store.CommitVault(&next, e.pending, r.clock.Now()); err != nil {
		return err
	}
	events := e.pending
	e.rec = &next
	e.dirty, e.pending = false, nil
	r.pinned.Delete(id)
	r.cache.Add(id, e)
	r.logf(logs.LevelInfo, "[registry] vault %s written back after earlier persist failure", id.Hex())
	r.notify(id, events)
	return nil
}

// apply 在 id 的锁内执行 fn，状态有变化时持久化快照和事件
// 即使 fn 返回错误（例如转账失败但心跳已刷新）也会持久化
//
// 落盘失败时：没有资金移动则丢弃缓存，回到磁盘上的旧状态；
// 资金已经移动（或扣减已提前写盘）则内存才是正确状态，钉住该金库，写回成功前拒绝新操作。
func (r *Registry) apply(id common.Address, fn func(v *vault.Vault) error) error {
	lock := r.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	e, err := r.load(id)
	if err != nil {
		return err
	}
	if e.dirty {
		if err := r.flush(id, e); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrVaultUnavailable, id.Hex(), err)
		}
	}

	e.transfer.moved, e.journaled = false, false
	before := e.v.Snapshot()
	opErr := fn(e.v)
	events := e.recorder.Drain()
	after := e.v.Snapshot()
	if after == before && len(events) == 0 && !e.journaled {
		return opErr
	}

	next := *e.rec
	next.State = after
	if err := r.store.CommitVault(&next, events, r.clock.Now()); err != nil {
		if e.transfer.moved || e.journaled {
			e.dirty = true
			e.pending = append(e.pending, events...)
			r.pinned.Store(id, e)
			r.logf(logs.LevelError, "[registry] persist vault %s failed after value moved, pinned in memory: %v", id.Hex(), err)
		} else {
			r.cache.Remove(id)
			r.logf(logs.LevelError, "[registry] persist vault %s failed: %v", id.Hex(), err)
		}
		return errors.Join(opErr, fmt.Errorf("persist vault %s: %w", id.Hex(), err))
	}
	e.rec = &next
	r.notify(id, events)
	return opErr
}

func (r *Registry) Deposit(ctx context.Context, id, from common.Address, amount *big.Int) error {
	return r.apply(id, func(v *vault.Vault) error {
		return v.Deposit(ctx, from, amount)
	})
}

func (r *Registry) Withdraw(ctx context.Context, id, caller common.Address, amount *big.Int) error {
	return r.apply(id, func(v *vault.Vault) error {
		return v.Withdraw(ctx, caller, amount)
	})
}

func (r *Registry) UpdateHeir(id, caller, newHeir common.Address) error {
	return r.apply(id, func(v *vault.Vault) error {
		return v.UpdateHeir(caller, newHeir)
	})
}

func (r *Registry) ClaimOwnership(id, caller, newHeir common.Address) error {
	err := r.apply(id, func(v *vault.Vault) error {
		return v.ClaimOwnership(caller, newHeir)
	})
	if err == nil {
		r.logf(logs.LevelInfo, "[registry] vault %s claimed by %s", id.Hex(), caller.Hex())
	}
	return err
}

// Summary 金库 ID 加上某一时刻的状态
type Summary struct {
	ID      common.Address
	Creator common.Address
	vault.Status
}

func (r *Registry) Status(id common.Address) (Summary, error) {
	lock := r.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	e, err := r.load(id)
	if err != nil {
		return Summary{}, err
	}
	return Summary{ID: id, Creator: e.rec.Creator, Status: e.v.Status()}, nil
}

// Events 最新的 limit 条事件，按发生顺序
func (r *Registry) Events(id common.Address, limit int) ([]db.EventRecord, error) {
	if _, err := r.store.GetVault(id); err != nil {
		if db.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrVaultNotFound, id.Hex())
		}
		return nil, err
	}
	return r.store.ListEvents(id, limit)
}

// List 所有金库的当前状态
func (r *Registry) List() ([]Summary, error) {
	recs, err := r.store.ListVaults()
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(recs))
	for _, rec := range recs {
		// 钉住的金库以内存为准
		if pinned, ok := r.pinned.Load(rec.ID); ok {
			out = append(out, Summary{ID: rec.ID, Creator: rec.Creator, Status: pinned.(*entry).v.Status()})
			continue
		}
		v, err := vault.Restore(rec.State, vault.WithClock(r.clock))
		if err != nil {
			r.logf(logs.LevelWarning, "[registry] skip vault %s: %v", rec.ID.Hex(), err)
			continue
		}
		out = append(out, Summary{ID: rec.ID, Creator: rec.Creator, Status: v.Status()})
	}
	return out, nil
}

// TotalBalance 所有金库余额之和
func (r *Registry) TotalBalance() (*big.Int, error) {
	list, err := r.List()
	if err != nil {
		return nil, err
	}
	total := big.NewInt(0)
	for _, s := range list {
		total.Add(total, s.Balance)
	}
	return total, nil
}
