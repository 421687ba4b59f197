package peerbook

import (
	"errors"
	"time"

	"github.com/dep2p/go-chainnet/config"
)

// maxBackoffFactor 退避上限相对基础退避的倍数
const maxBackoffFactor = 64

// Config 节点簿配置
type Config struct {
	// Path BadgerDB 目录，为空时使用内存存储
	Path string

	// MaxPeers 最多保存的节点数
	MaxPeers int

	// DialBackoff 首次拨号失败后的退避时间
	DialBackoff time.Duration

	// MaxBackoff 退避时间上限
	MaxBackoff time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return configFrom(config.DefaultPeerBookConfig(), config.DefaultNetworkConfig())
}

// ConfigFromUnified 从统一配置创建
func ConfigFromUnified(cfg *config.Config) Config {
	if cfg == nil {
		return DefaultConfig()
	}
	return configFrom(cfg.PeerBook, cfg.Network)
}

func configFrom(pb config.PeerBookConfig, nw config.NetworkConfig) Config {
	return Config{
		Path:        pb.Path,
		MaxPeers:    pb.MaxPeers,
		DialBackoff: nw.DialBackoff.Duration(),
		MaxBackoff:  nw.DialBackoff.Duration() * maxBackoffFactor,
	}
}

// Validate 验证配置
func (c Config) Validate() error {
	if c.MaxPeers <= 0 {
		return errors.New("peerbook: max peers must be positive")
	}
	if c.DialBackoff < 0 || c.MaxBackoff < c.DialBackoff {
		return errors.New("peerbook: invalid backoff")
	}
	return nil
}
