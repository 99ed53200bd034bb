package handlers

import (
	"math/big"
	"net/http"
	"sync"
	"time"

	"heirvault/config"
	"heirvault/logs"
	"heirvault/registry"
	"heirvault/stats"
	"heirvault/vault"

	lru "github.com/hashicorp/golang-lru"
)

// CustodyReporter 托管总额来源（ledger.Ledger）
type CustodyReporter interface {
	Custody() *big.Int
}

// HandlerManager 管理所有HTTP处理器及其依赖
type HandlerManager struct {
	registry *registry.Registry
	custody  CustodyReporter
	address  string // 当前节点地址

	// 已见过的 (caller, nonce)，用于拒绝重放
	seenNonces *lru.Cache
	replayMu   sync.Mutex

	maxClockSkew  time.Duration
	maxBodySize   int64
	maxEventsPage int
	decimals      int32
	clock         vault.Clock

	// 统计相关字段
	Stats  *stats.Stats
	Logger logs.Logger
}

// NewHandlerManager 创建新的处理器管理器
func NewHandlerManager(
	reg *registry.Registry,
	custody CustodyReporter,
	cfg *config.Config,
	address string,
	st *stats.Stats,
	logger logs.Logger,
) *HandlerManager {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if st == nil {
		st = stats.NewStats()
	}
	cacheSize := cfg.Auth.ReplayCacheSize
	if cacheSize <= 0 {
		cacheSize = 100000
	}
	seen, _ := lru.New(cacheSize)
	return &HandlerManager{
		registry:      reg,
		custody:       custody,
		address:       address,
		seenNonces:    seen,
		maxClockSkew:  cfg.Auth.MaxClockSkew,
		maxBodySize:   cfg.Server.MaxRequestBodySize,
		maxEventsPage: cfg.Registry.MaxEventsPage,
		decimals:      cfg.Ledger.Decimals,
		clock:         vault.SystemClock{},
		Stats:         st,
		Logger:        logger,
	}
}

// SetClock 替换时间源（测试用，需与注册表使用同一个时钟）
func (hm *HandlerManager) SetClock(c vault.Clock) {
	if c != nil {
		hm.clock = c
	}
}

// RegisterRoutes 注册所有路由
func (hm *HandlerManager) RegisterRoutes(mux *http.ServeMux) {
	// 写操作，需要签名
	mux.HandleFunc("/vault/create", hm.HandleCreate)
	mux.HandleFunc("/vault/deposit", hm.HandleDeposit)
	mux.HandleFunc("/vault/withdraw", hm.HandleWithdraw)
	mux.HandleFunc("/vault/heir", hm.HandleUpdateHeir)
	mux.HandleFunc("/vault/claim", hm.HandleClaim)
	// 只读查询
	mux.HandleFunc("/vault/status", hm.HandleVaultStatus)
	mux.HandleFunc("/vault/events", hm.HandleVaultEvents)
	mux.HandleFunc("/vaults", hm.HandleListVaults)
	// 基本功能
	mux.HandleFunc("/status", hm.HandleStatus)
	mux.HandleFunc("/logs", hm.HandleLogs)
	mux.Handle("/metrics", hm.Stats.Handler())
}
