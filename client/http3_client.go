package client

import (
	"crypto/tls"
	"net/http"

	"heirvault/config"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
)

// NewHTTP3Client 创建非单例的 HTTP/3 客户端
// 服务端默认使用自签名证书，insecure 为 true 时跳过证书校验
func NewHTTP3Client(cfg *config.Config, insecure bool) *http.Client {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	tlsCfg := &tls.Config{
		InsecureSkipVerify: insecure,
		MinVersion:         tls.VersionTLS13,
		ClientSessionCache: tls.NewLRUClientSessionCache(128),
		NextProtos:         []string{http3.NextProtoH3},
	}

	tr := &http3.RoundTripper{
		TLSClientConfig: tlsCfg,
		QUICConfig: &quic.Config{
			KeepAlivePeriod: cfg.Server.QUICKeepAlivePeriod,
			MaxIdleTimeout:  cfg.Server.QUICMaxIdleTimeout,
			Allow0RTT:       cfg.Server.QUICAllow0RTT,
		},
	}

	return &http.Client{
		Transport: tr,
		Timeout:   cfg.Server.HTTPTimeout,
	}
}
