package db

import (
	"encoding/json"
	"fmt"

	"heirvault/keys"
	"heirvault/vault"

	"github.com/ethereum/go-ethereum/common"
)

// EventRecord 金库事件流水
type EventRecord struct {
	VaultID   common.Address  `json:"vault"`
	Seq       uint64          `json:"seq"`
	Kind      vault.EventKind `json:"kind"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

func NewEventRecord(id common.Address, seq uint64, timestamp int64, ev vault.Event) (EventRecord, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return EventRecord{}, fmt.Errorf("encode event %s: %w", ev.Kind(), err)
	}
	return EventRecord{
		VaultID:   id,
		Seq:       seq,
		Kind:      ev.Kind(),
		Timestamp: timestamp,
		Data:      data,
	}, nil
}

// ListEvents 返回金库最新的 limit 条事件，按序号升序；limit <= 0 返回全部
func (manager *Manager) ListEvents(id common.Address, limit int) ([]EventRecord, error) {
	kvs, err := manager.ScanOrdered(keys.KeyVaultEventPrefix(id.Hex()), limit, true)
	if err != nil {
		return nil, err
	}
	out := make([]EventRecord, 0, len(kvs))
	for i := len(kvs) - 1; i >= 0; i-- {
		var rec EventRecord
		if err := unmarshalRecord(kvs[i].Value, &rec); err != nil {
			manager.logError("[db.ListEvents] skip corrupt event %s: %v", kvs[i].Key, err)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}
