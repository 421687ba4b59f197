package config

import (
	"errors"
	"time"
)

// SessionConfig 会话配置
type SessionConfig struct {
	// MaxPendingIncoming 同时进行握手的入站会话上限
	MaxPendingIncoming int `json:"max_pending_incoming"`

	// DialTimeout 出站 TCP 拨号超时
	DialTimeout Duration `json:"dial_timeout"`

	// HandshakeTimeout 认证与能力协商超时
	HandshakeTimeout Duration `json:"handshake_timeout"`

	// RequestTimeout 在途请求超时
	RequestTimeout Duration `json:"request_timeout"`

	// CommandBuffer 每个会话的管理器命令缓冲区
	CommandBuffer int `json:"command_buffer"`

	// RequestBuffer 每个会话的本地请求缓冲区
	RequestBuffer int `json:"request_buffer"`

	// EventBuffer 会话到管理器的事件缓冲区
	EventBuffer int `json:"event_buffer"`

	// SendBuffer 协议通道的发送容量（条消息）
	SendBuffer int `json:"send_buffer"`

	// MaxMessageSize 单条消息最大字节数（解压后）
	MaxMessageSize int `json:"max_message_size"`
}

// DefaultSessionConfig 返回默认会话配置
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		MaxPendingIncoming: 30,
		DialTimeout:        Duration(10 * time.Second),
		HandshakeTimeout:   Duration(10 * time.Second),
		RequestTimeout:     Duration(20 * time.Second),
		CommandBuffer:      32,
		RequestBuffer:      32,
		EventBuffer:        128,
		SendBuffer:         16,
		MaxMessageSize:     10 * 1024 * 1024,
	}
}

// Validate 验证会话配置
func (c SessionConfig) Validate() error {
	if c.MaxPendingIncoming <= 0 {
		return errors.New("max pending incoming must be positive")
	}
	if c.DialTimeout <= 0 || c.HandshakeTimeout <= 0 || c.RequestTimeout <= 0 {
		return errors.New("timeouts must be positive")
	}
	if c.CommandBuffer <= 0 || c.RequestBuffer <= 0 || c.EventBuffer <= 0 || c.SendBuffer <= 0 {
		return errors.New("buffers must be positive")
	}
	if c.MaxMessageSize <= 0 {
		return errors.New("max message size must be positive")
	}
	return nil
}
