package db

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"heirvault/config"
	"heirvault/keys"
	"heirvault/logs"

	"github.com/dgraph-io/badger/v2"
)

var (
	// ErrNotFound key 不存在
	ErrNotFound = errors.New("not found")
	// ErrAppendOnly 只追加的 key 已存在
	ErrAppendOnly = errors.New("append-only key already exists")
	// ErrClosed 数据库已关闭
	ErrClosed = errors.New("database is not initialized or closed")
)

// 事务冲突时的最大重试次数
const maxTxnRetries = 8

// Manager 封装 BadgerDB 的管理器
type Manager struct {
	Db     *badger.DB
	mu     sync.RWMutex
	Logger logs.Logger
}

// NewManager 创建一个新的 DBManager 实例
func NewManager(path string, logger logs.Logger) (*Manager, error) {
	cfg := config.DefaultConfig()
	cfg.Database.Path = path
	return NewManagerWithConfig(cfg, logger)
}

// NewMemoryManager 纯内存模式，测试与演示用
func NewMemoryManager(logger logs.Logger) (*Manager, error) {
	cfg := config.DefaultConfig()
	cfg.Database.InMemory = true
	return NewManagerWithConfig(cfg, logger)
}

// NewManagerWithConfig 按配置打开 badger
func NewManagerWithConfig(cfg *config.Config, logger logs.Logger) (*Manager, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	dbCfg := cfg.Database

	var opts badger.Options
	if dbCfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		// badger v2 不自动创建父目录，需要手动创建
		if err := os.MkdirAll(dbCfg.Path, 0755); err != nil {
			return nil, fmt.Errorf("failed to create db dir: %w", err)
		}
		opts = badger.DefaultOptions(dbCfg.Path).WithSyncWrites(dbCfg.SyncWrites)
		if dbCfg.ValueLogFileSize > 0 {
			opts.ValueLogFileSize = dbCfg.ValueLogFileSize
		}
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}
	return &Manager{Db: db, Logger: logger}, nil
}

func (manager *Manager) logError(format string, v ...interface{}) {
	if manager.Logger != nil {
		manager.Logger.Error(format, v...)
	} else {
		logs.Error(format, v...)
	}
}

func (manager *Manager) Close() {
	manager.mu.Lock()
	defer manager.mu.Unlock()

	if manager.Db != nil {
		if err := manager.Db.Close(); err != nil {
			manager.logError("[db.Close] close badger failed: %v", err)
		}
		manager.Db = nil
	}
}

func (manager *Manager) db() (*badger.DB, error) {
	manager.mu.RLock()
	defer manager.mu.RUnlock()
	if manager.Db == nil {
		return nil, ErrClosed
	}
	return manager.Db, nil
}

// Get 读取 key；不存在时返回 ErrNotFound
func (manager *Manager) Get(key string) ([]byte, error) {
	db, err := manager.db()
	if err != nil {
		return nil, err
	}

	var value []byte
	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Set 单 key 写入
func (manager *Manager) Set(key string, value []byte) error {
	return manager.Update(func(txn *Txn) error {
		return txn.Set(key, value)
	})
}

// Update 在一个 badger 事务里执行 fn，冲突时重试
func (manager *Manager) Update(fn func(txn *Txn) error) error {
	db, err := manager.db()
	if err != nil {
		return err
	}
	for attempt := 0; ; attempt++ {
		err = db.Update(func(btxn *badger.Txn) error {
			return fn(&Txn{btxn})
		})
		if !errors.Is(err, badger.ErrConflict) || attempt >= maxTxnRetries {
			return err
		}
	}
}

// Scan 前缀扫描，返回所有以 prefix 开头的键值对
func (manager *Manager) Scan(prefix string) (map[string][]byte, error) {
	kvs, err := manager.ScanOrdered(prefix, 0, false)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(kvs))
	for _, kv := range kvs {
		out[kv.Key] = kv.Value
	}
	return out, nil
}

// KV 有序扫描结果
type KV struct {
	Key   string
	Value []byte
}

// ScanOrdered 按 key 顺序扫描，limit <= 0 表示不限；reverse 从最大 key 开始
func (manager *Manager) ScanOrdered(prefix string, limit int, reverse bool) ([]KV, error) {
	db, err := manager.db()
	if err != nil {
		return nil, err
	}

	var out []KV
	err = db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = reverse
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := []byte(prefix)
		if reverse {
			// 反向迭代需要从前缀的上界开始
			seek = append([]byte(prefix), 0xFF)
		}
		for it.Seek(seek); it.ValidForPrefix([]byte(prefix)); it.Next() {
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			out = append(out, KV{Key: string(item.KeyCopy(nil)), Value: val})
			if limit > 0 && len(out) >= limit {
				break
			}
		}
		return nil
	})
	return out, err
}

// Txn 包装 badger.Txn，写入时检查只追加约束
type Txn struct {
	Txn *badger.Txn
}

func (t *Txn) Get(key string) ([]byte, error) {
	item, err := t.Txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (t *Txn) Set(key string, value []byte) error {
	if keys.IsAppendOnly(key) {
		if _, err := t.Txn.Get([]byte(key)); err == nil {
			return fmt.Errorf("%w: %s", ErrAppendOnly, key)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
	}
	return t.Txn.Set([]byte(key), value)
}
