package db

import (
	"fmt"
	"strconv"

	"heirvault/keys"
	"heirvault/vault"

	"github.com/ethereum/go-ethereum/common"
)

// VaultRecord 金库持久化记录
type VaultRecord struct {
	ID        common.Address `json:"id"`
	Creator   common.Address `json:"creator"`
	CreatedAt int64          `json:"createdAt"`
	State     vault.State    `json:"state"`
	// EventSeq 已写入的最后一个事件序号
	EventSeq uint64 `json:"eventSeq"`
}

// GetVault 读取金库记录，不存在时返回 ErrNotFound
func (manager *Manager) GetVault(id common.Address) (*VaultRecord, error) {
	data, err := manager.Get(keys.KeyVault(id.Hex()))
	if err != nil {
		return nil, err
	}
	var rec VaultRecord
	if err := unmarshalRecord(data, &rec); err != nil {
		return nil, fmt.Errorf("decode vault %s: %w", id.Hex(), err)
	}
	return &rec, nil
}

// ListVaults 按 ID 顺序列出全部金库
func (manager *Manager) ListVaults() ([]*VaultRecord, error) {
	kvs, err := manager.ScanOrdered(keys.KeyVaultPrefix(), 0, false)
	if err != nil {
		return nil, err
	}
	out := make([]*VaultRecord, 0, len(kvs))
	for _, kv := range kvs {
		var rec VaultRecord
		if err := unmarshalRecord(kv.Value, &rec); err != nil {
			manager.logError("[db.ListVaults] skip corrupt record %s: %v", kv.Key, err)
			continue
		}
		out = append(out, &rec)
	}
	return out, nil
}

// CommitVault 在一个事务里写入金库快照与本次产生的事件
// 事件序号从 rec.EventSeq+1 开始，写入后 rec.EventSeq 指向最后一个事件
func (manager *Manager) CommitVault(rec *VaultRecord, events []vault.Event, timestamp int64) error {
	base := rec.EventSeq
	records := make([]EventRecord, 0, len(events))
	for i, ev := range events {
		er, err := NewEventRecord(rec.ID, base+uint64(i)+1, timestamp, ev)
		if err != nil {
			return err
		}
		records = append(records, er)
	}

	next := *rec
	next.EventSeq = base + uint64(len(events))
	data, err := marshalRecord(&next)
	if err != nil {
		return err
	}

	err = manager.Update(func(txn *Txn) error {
		for i := range records {
			raw, err := marshalRecord(&records[i])
			if err != nil {
				return err
			}
			if err := txn.Set(keys.KeyVaultEvent(rec.ID.Hex(), records[i].Seq), raw); err != nil {
				return err
			}
		}
		return txn.Set(keys.KeyVault(rec.ID.Hex()), data)
	})
	if err != nil {
		return err
	}
	rec.EventSeq = next.EventSeq
	return nil
}

// NextCreatorNonce 原子地取出并递增创建者 nonce，返回本次使用的值
func (manager *Manager) NextCreatorNonce(creator common.Address) (uint64, error) {
	var nonce uint64
	err := manager.Update(func(txn *Txn) error {
		key := keys.KeyCreatorNonce(creator.Hex())
		raw, err := txn.Get(key)
		switch {
		case IsNotFound(err):
			nonce = 0
		case err != nil:
			return err
		default:
			nonce, err = strconv.ParseUint(string(raw), 10, 64)
			if err != nil {
				return fmt.Errorf("corrupt nonce for %s: %w", creator.Hex(), err)
			}
		}
		return txn.Set(key, []byte(strconv.FormatUint(nonce+1, 10)))
	})
	if err != nil {
		return 0, err
	}
	return nonce, nil
}
