package vault

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// ============================================
// 事件定义
// 只在状态变更成功之后发出
// ============================================

type EventKind string

const (
	EventDeposited        EventKind = "vault.deposited"
	EventWithdrawn        EventKind = "vault.withdrawn"
	EventHeirUpdated      EventKind = "vault.heir_updated"
	EventOwnershipClaimed EventKind = "vault.ownership_claimed"
	EventHeartbeatUpdated EventKind = "vault.heartbeat_updated"
)

type Event interface {
	Kind() EventKind
}

type Deposited struct {
	From   common.Address `json:"from"`
	Amount *big.Int       `json:"amount"`
}

type Withdrawn struct {
	To     common.Address `json:"to"`
	Amount *big.Int       `json:"amount"`
}

type HeirUpdated struct {
	OldHeir common.Address `json:"oldHeir"`
	NewHeir common.Address `json:"newHeir"`
}

type OwnershipClaimed struct {
	OldOwner common.Address `json:"oldOwner"`
	NewOwner common.Address `json:"newOwner"`
	NewHeir  common.Address `json:"newHeir"`
}

type HeartbeatUpdated struct {
	Owner     common.Address `json:"owner"`
	Timestamp int64          `json:"timestamp"`
}

func (Deposited) Kind() EventKind        { return EventDeposited }
func (Withdrawn) Kind() EventKind        { return EventWithdrawn }
func (HeirUpdated) Kind() EventKind      { return EventHeirUpdated }
func (OwnershipClaimed) Kind() EventKind { return EventOwnershipClaimed }
func (HeartbeatUpdated) Kind() EventKind { return EventHeartbeatUpdated }

// SinkFunc 把普通函数适配成 EventSink
type SinkFunc func(ev Event)

func (f SinkFunc) Emit(ev Event) { f(ev) }

// EventRecorder 内存事件记录器
type EventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func NewEventRecorder() *EventRecorder {
	return &EventRecorder{}
}

func (r *EventRecorder) Emit(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Events 返回已记录事件的副本
func (r *EventRecorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Drain 取出并清空已记录的事件
func (r *EventRecorder) Drain() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}
