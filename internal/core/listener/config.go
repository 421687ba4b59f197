package listener

import (
	"errors"
	"net"

	"github.com/dep2p/go-chainnet/config"
)

// Config 监听器配置
type Config struct {
	// Addr 监听地址
	Addr string

	// AcceptRate 每秒接受连接数上限，0 表示不限
	AcceptRate float64

	// AcceptBurst 令牌桶容量
	AcceptBurst int

	// EventBuffer 事件队列容量
	EventBuffer int
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return configFrom(config.DefaultListenConfig())
}

// ConfigFromUnified 从统一配置创建
func ConfigFromUnified(cfg *config.Config) Config {
	return configFrom(cfg.Listen)
}

func configFrom(c config.ListenConfig) Config {
	return Config{
		Addr:        c.Addr,
		AcceptRate:  c.AcceptRate,
		AcceptBurst: c.AcceptBurst,
		EventBuffer: c.EventBuffer,
	}
}

// Validate 验证配置
func (c Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		return errors.New("listener: addr must be host:port")
	}
	if c.AcceptRate < 0 || (c.AcceptRate > 0 && c.AcceptBurst <= 0) {
		return errors.New("listener: invalid accept rate")
	}
	if c.EventBuffer <= 0 {
		return errors.New("listener: event buffer must be positive")
	}
	return nil
}
