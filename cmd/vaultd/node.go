package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"heirvault/config"
	"heirvault/crt"
	"heirvault/db"
	"heirvault/handlers"
	"heirvault/ledger"
	"heirvault/logs"
	"heirvault/middleware"
	"heirvault/registry"
	"heirvault/stats"
	"heirvault/utils"
	"heirvault/vault"

	"github.com/ethereum/go-ethereum/common"
	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
)

// Node 一个运行中的金库服务实例
type Node struct {
	cfg *config.Config

	Logger         *logs.NodeLogger
	DBManager      *db.Manager
	Ledger         *ledger.Ledger
	Registry       *registry.Registry
	Stats          *stats.Stats
	HandlerManager *handlers.HandlerManager
	HTTP3Server    *http3.Server
}

// NewNode 按依赖顺序初始化：日志、数据库、账本、注册表、处理器
func NewNode(cfg *config.Config) (*Node, error) {
	n := &Node{cfg: cfg}
	n.Logger = logs.NewNodeLogger(cfg.Server.ListenAddr, cfg.Log.BufferSize)

	dbm, err := db.NewManagerWithConfig(cfg, n.Logger)
	if err != nil {
		return nil, err
	}
	n.DBManager = dbm

	if err := n.initLedger(); err != nil {
		dbm.Close()
		return nil, err
	}

	n.Stats = stats.NewStats()
	reg, err := registry.New(dbm,
		registry.WithTransfer(n.Ledger),
		registry.WithLogger(n.Logger),
		registry.WithCacheSize(cfg.Registry.VaultCacheSize),
		registry.WithObserver(func(id common.Address, ev vault.Event) {
			n.Stats.RecordEvent(string(ev.Kind()))
			n.Logger.Debug("[node] vault %s event %s", id.Hex(), ev.Kind())
		}),
	)
	if err != nil {
		dbm.Close()
		return nil, err
	}
	n.Registry = reg

	// 托管额不落盘，启动时按金库余额恢复
	total, err := reg.TotalBalance()
	if err != nil {
		dbm.Close()
		return nil, fmt.Errorf("compute custody: %w", err)
	}
	n.Ledger.SetCustody(total)

	n.HandlerManager = handlers.NewHandlerManager(reg, n.Ledger, cfg, cfg.Server.ListenAddr, n.Stats, n.Logger)
	return n, nil
}

func (n *Node) initLedger() error {
	opts := []ledger.Option{ledger.WithStore(n.DBManager), ledger.WithLogger(n.Logger)}
	if n.cfg.Ledger.UnlimitedCredit {
		opts = append(opts, ledger.WithUnlimitedCredit())
	}
	l, err := ledger.New(opts...)
	if err != nil {
		return err
	}

	for addrStr, amountStr := range n.cfg.Ledger.Faucet {
		if !common.IsHexAddress(addrStr) {
			return fmt.Errorf("ledger.faucet: invalid address %q", addrStr)
		}
		addr := common.HexToAddress(addrStr)
		if l.HasAccount(addr) {
			continue
		}
		amount, err := utils.ParseUnits(amountStr, n.cfg.Ledger.Decimals)
		if err != nil {
			return fmt.Errorf("ledger.faucet %s: %w", addrStr, err)
		}
		if err := l.Fund(addr, amount); err != nil {
			return fmt.Errorf("ledger.faucet %s: %w", addrStr, err)
		}
		n.Logger.Info("[node] faucet funded %s with %s", addr.Hex(), amountStr)
	}
	for _, addrStr := range n.cfg.Ledger.Rejecting {
		if !common.IsHexAddress(addrStr) {
			return fmt.Errorf("ledger.rejecting: invalid address %q", addrStr)
		}
		l.Reject(common.HexToAddress(addrStr))
	}
	n.Ledger = l
	return nil
}

// Serve 阻塞运行 HTTP/3 服务，ctx 结束时关闭
func (n *Node) Serve(ctx context.Context) error {
	mux := http.NewServeMux()
	n.HandlerManager.RegisterRoutes(mux)

	// 应用中间件
	limiter := middleware.NewRateLimiter(n.cfg.Server.RateLimitPerSecond, time.Second)
	limiter.StartCleanup(ctx, 2*time.Minute)
	handler := limiter.Wrap(mux)

	cert, err := crt.EnsureCert(n.cfg.Server.CertFile, n.cfg.Server.KeyFile, "heirvault", n.cfg.Server.CertValidityDays)
	if err != nil {
		return fmt.Errorf("load certificate: %w", err)
	}
	tlsConfig := http3.ConfigureTLSConfig(&tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS13,
	})
	quicConfig := &quic.Config{
		KeepAlivePeriod: n.cfg.Server.QUICKeepAlivePeriod,
		MaxIdleTimeout:  n.cfg.Server.QUICMaxIdleTimeout,
		Allow0RTT:       n.cfg.Server.QUICAllow0RTT,
	}

	server := &http3.Server{
		Addr:        n.cfg.Server.ListenAddr,
		Handler:     http.TimeoutHandler(handler, n.cfg.Server.HTTPTimeout, "request timeout"),
		TLSConfig:   tlsConfig,
		QUICConfig:  quicConfig,
		IdleTimeout: n.cfg.Server.QUICMaxIdleTimeout,
	}
	n.HTTP3Server = server

	listener, err := quic.ListenAddr(n.cfg.Server.ListenAddr, tlsConfig, quicConfig)
	if err != nil {
		return fmt.Errorf("create QUIC listener: %w", err)
	}
	n.Logger.Info("[node] HTTP/3 server listening on %s", listener.Addr())

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ServeListener(listener)
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if isServerClosedErr(err) {
			return nil
		}
		return err
	}
}

// Stop 先关服务，最后关闭数据库
func (n *Node) Stop() {
	n.Logger.Info("[node] stopping...")
	if n.HTTP3Server != nil {
		if err := n.HTTP3Server.Close(); err != nil && !isServerClosedErr(err) {
			n.Logger.Warn("[node] failed to close HTTP/3 server: %v", err)
		}
	}
	if n.DBManager != nil {
		n.DBManager.Close()
	}
	n.Logger.Info("[node] stopped")
	_ = n.Logger.Sync()
}

func isServerClosedErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, http.ErrServerClosed) || errors.Is(err, quic.ErrServerClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "server closed") ||
		strings.Contains(msg, "use of closed network connection")
}
