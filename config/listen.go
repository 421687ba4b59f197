package config

import (
	"errors"
	"net"
)

// ListenConfig 入站监听配置
type ListenConfig struct {
	// Addr 监听地址，例如 "0.0.0.0:30303"
	Addr string `json:"addr"`

	// Disabled 禁用入站监听（仅出站）
	Disabled bool `json:"disabled,omitempty"`

	// AcceptRate 每秒最多接受的入站连接数，0 表示不限速
	AcceptRate float64 `json:"accept_rate,omitempty"`

	// AcceptBurst 限速器突发容量
	AcceptBurst int `json:"accept_burst,omitempty"`

	// EventBuffer 监听事件缓冲区大小
	// 缓冲区满时 accept 循环阻塞，形成入站背压
	EventBuffer int `json:"event_buffer"`
}

// DefaultListenConfig 返回默认监听配置
func DefaultListenConfig() ListenConfig {
	return ListenConfig{
		Addr:        "0.0.0.0:30303",
		AcceptRate:  50,
		AcceptBurst: 20,
		EventBuffer: 16,
	}
}

// Validate 验证监听配置
func (c ListenConfig) Validate() error {
	if c.Disabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		return errors.New("addr must be host:port")
	}
	if c.AcceptRate < 0 || c.AcceptBurst < 0 {
		return errors.New("accept rate and burst must be non-negative")
	}
	if c.AcceptRate > 0 && c.AcceptBurst == 0 {
		return errors.New("accept burst must be positive when accept rate is set")
	}
	if c.EventBuffer <= 0 {
		return errors.New("event buffer must be positive")
	}
	return nil
}
