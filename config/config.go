// Package config 提供统一的配置管理
//
// 本包采用混合配置模式：
//   - 主 Config 结构体嵌入所有子配置
//   - 每个子配置在独立文件中定义
//   - 支持从 JSON 加载和保存配置
//
// 使用示例：
//
//	cfg := config.NewConfig()
//	cfg.Listen.Addr = "0.0.0.0:30303"
//	cfg.Network.MaxActivePeers = 50
//
//	// 从 JSON 文件加载
//	cfg, err := config.LoadFile("node.json")
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// KnownPeer 已知节点配置
//
// 启动时写入节点簿，由网络状态按出站槽位逐个拨号。
type KnownPeer struct {
	// PeerID 目标节点 ID（十六进制 Noise 静态公钥）
	PeerID string `json:"peer_id"`

	// Addr 目标节点 TCP 地址，例如 "1.2.3.4:30303"
	Addr string `json:"addr"`
}

// Config 是 chainnet 的完整配置结构
//
// 配置按照功能模块组织：
//   - Identity: 节点身份密钥
//   - Listen: 入站监听
//   - Session: 会话（握手、请求超时、缓冲区）
//   - Network: 网络状态（链标识、节点容量、出站维护）
//   - PeerBook: 节点簿存储
//   - Metrics: Prometheus 指标
type Config struct {
	// Identity 身份配置
	Identity IdentityConfig `json:"identity"`

	// Listen 监听配置
	Listen ListenConfig `json:"listen"`

	// Session 会话配置
	Session SessionConfig `json:"session"`

	// Network 网络状态配置
	Network NetworkConfig `json:"network"`

	// PeerBook 节点簿配置
	PeerBook PeerBookConfig `json:"peer_book"`

	// Metrics 指标配置
	Metrics MetricsConfig `json:"metrics"`

	// KnownPeers 已知节点列表
	KnownPeers []KnownPeer `json:"known_peers,omitempty"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Identity: DefaultIdentityConfig(),
		Listen:   DefaultListenConfig(),
		Session:  DefaultSessionConfig(),
		Network:  DefaultNetworkConfig(),
		PeerBook: DefaultPeerBookConfig(),
		Metrics:  DefaultMetricsConfig(),
	}
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	if err := c.Identity.Validate(); err != nil {
		return fmt.Errorf("identity: %w", err)
	}
	if err := c.Listen.Validate(); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	if err := c.Network.Validate(); err != nil {
		return fmt.Errorf("network: %w", err)
	}
	if err := c.PeerBook.Validate(); err != nil {
		return fmt.Errorf("peer_book: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	for i, kp := range c.KnownPeers {
		if kp.PeerID == "" || kp.Addr == "" {
			return fmt.Errorf("known_peers[%d]: peer_id and addr are required", i)
		}
	}
	return nil
}

// FromJSON 从 JSON 解析配置
//
// 未出现的字段保留默认值。
func FromJSON(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// LoadFile 从 JSON 文件加载配置
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return FromJSON(data)
}

// ToJSON 序列化为带缩进的 JSON
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}
