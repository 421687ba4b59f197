package state

import (
	"errors"
	"time"

	"github.com/dep2p/go-chainnet/config"
)

// Config 网络状态配置
type Config struct {
	// MaxActivePeers 活跃节点上限
	MaxActivePeers int

	// MaxOutbound 出站槽位数
	MaxOutbound int

	// MaintainInterval 出站维护间隔，0 表示不自动拨号
	MaintainInterval time.Duration

	// KnownBlocks 每个节点记录的已知区块数
	KnownBlocks int
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return configFrom(config.DefaultNetworkConfig())
}

// ConfigFromUnified 从统一配置创建
func ConfigFromUnified(cfg *config.Config) Config {
	if cfg == nil {
		return DefaultConfig()
	}
	return configFrom(cfg.Network)
}

func configFrom(c config.NetworkConfig) Config {
	return Config{
		MaxActivePeers:   c.MaxActivePeers,
		MaxOutbound:      c.MaxOutbound,
		MaintainInterval: c.MaintainInterval.Duration(),
		KnownBlocks:      c.KnownBlocks,
	}
}

// Validate 验证配置
func (c Config) Validate() error {
	if c.MaxActivePeers <= 0 {
		return errors.New("state: max active peers must be positive")
	}
	if c.MaxOutbound < 0 || c.MaxOutbound > c.MaxActivePeers {
		return errors.New("state: max outbound must be within [0, max active peers]")
	}
	if c.MaintainInterval < 0 {
		return errors.New("state: maintain interval must be non-negative")
	}
	if c.KnownBlocks <= 0 {
		return errors.New("state: known blocks must be positive")
	}
	return nil
}
