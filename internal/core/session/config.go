package session

import (
	"errors"
	"time"

	"github.com/dep2p/go-chainnet/config"
)

// Config 会话管理器配置
type Config struct {
	// MaxPendingIncoming 同时认证中的入站会话上限
	MaxPendingIncoming int

	// DialTimeout 出站 TCP 拨号超时
	DialTimeout time.Duration

	// RequestTimeout 在途请求超时
	RequestTimeout time.Duration

	// CommandBuffer 每个会话的命令缓冲
	CommandBuffer int

	// RequestBuffer 每个会话的请求缓冲
	RequestBuffer int

	// EventBuffer 会话到管理器的事件缓冲
	EventBuffer int
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return configFrom(config.DefaultSessionConfig())
}

// ConfigFromUnified 从统一配置创建
func ConfigFromUnified(cfg *config.Config) Config {
	if cfg == nil {
		return DefaultConfig()
	}
	return configFrom(cfg.Session)
}

func configFrom(c config.SessionConfig) Config {
	return Config{
		MaxPendingIncoming: c.MaxPendingIncoming,
		DialTimeout:        c.DialTimeout.Duration(),
		RequestTimeout:     c.RequestTimeout.Duration(),
		CommandBuffer:      c.CommandBuffer,
		RequestBuffer:      c.RequestBuffer,
		EventBuffer:        c.EventBuffer,
	}
}

// Validate 验证配置
func (c Config) Validate() error {
	if c.MaxPendingIncoming <= 0 {
		return errors.New("session: max pending incoming must be positive")
	}
	if c.DialTimeout <= 0 || c.RequestTimeout <= 0 {
		return errors.New("session: timeouts must be positive")
	}
	if c.CommandBuffer <= 0 || c.RequestBuffer <= 0 || c.EventBuffer <= 0 {
		return errors.New("session: buffers must be positive")
	}
	return nil
}

// timeoutCheckInterval 在途请求超时检查间隔
func (c Config) timeoutCheckInterval() time.Duration {
	d := c.RequestTimeout / 4
	if d < 10*time.Millisecond {
		d = 10 * time.Millisecond
	}
	if d > time.Second {
		d = time.Second
	}
	return d
}
