package upgrader

import (
	"errors"
	"time"

	"github.com/dep2p/go-chainnet/config"
	"github.com/dep2p/go-chainnet/internal/core/wire"
)

// Config 升级器配置
type Config struct {
	// Wire 协议握手与流配置
	Wire wire.Config

	// HandshakeTimeout 安全握手与协议握手的总时限
	HandshakeTimeout time.Duration
}

// NewConfig 创建默认配置
func NewConfig() Config {
	return Config{
		Wire:             wire.DefaultConfig(),
		HandshakeTimeout: config.DefaultSessionConfig().HandshakeTimeout.Duration(),
	}
}

// Validate 验证配置
func (c Config) Validate() error {
	if c.HandshakeTimeout <= 0 {
		return errors.New("upgrader: handshake timeout must be positive")
	}
	return c.Wire.Validate()
}

// ConfigFromUnified 从统一配置创建升级器配置
func ConfigFromUnified(cfg *config.Config) (Config, error) {
	c := NewConfig()
	if cfg == nil {
		return c, nil
	}
	w, err := wire.ConfigFromUnified(cfg)
	if err != nil {
		return Config{}, err
	}
	c.Wire = w
	c.HandshakeTimeout = cfg.Session.HandshakeTimeout.Duration()
	return c, nil
}
