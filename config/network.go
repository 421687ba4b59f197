package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NetworkConfig 网络状态配置
type NetworkConfig struct {
	// NetworkID 链网络 ID，握手时必须一致
	NetworkID uint64 `json:"network_id"`

	// Genesis 创世区块哈希（十六进制），握手时必须一致
	Genesis string `json:"genesis"`

	// Capabilities 本地宣告的协议能力，例如 "eth/68"
	Capabilities []string `json:"capabilities"`

	// MaxActivePeers 活跃节点上限，超出时新会话以 TooManyPeers 断开
	MaxActivePeers int `json:"max_active_peers"`

	// MaxOutbound 出站槽位数，由维护循环从节点簿补齐
	MaxOutbound int `json:"max_outbound"`

	// MaintainInterval 出站槽位维护间隔，0 表示禁用自动拨号
	MaintainInterval Duration `json:"maintain_interval"`

	// DialBackoff 拨号失败后的基础退避时间（按失败次数翻倍）
	DialBackoff Duration `json:"dial_backoff"`

	// KnownBlocks 每个节点记录的已知区块哈希数量
	KnownBlocks int `json:"known_blocks"`
}

// DefaultNetworkConfig 返回默认网络状态配置
func DefaultNetworkConfig() NetworkConfig {
	return NetworkConfig{
		NetworkID:        1,
		Genesis:          "d4e56740f876aef8c010b86a40d5f56745a118d0906a34e69aec8c0db1cb8fa3",
		Capabilities:     []string{"eth/66", "eth/67", "eth/68"},
		MaxActivePeers:   50,
		MaxOutbound:      15,
		MaintainInterval: Duration(5 * time.Second),
		DialBackoff:      Duration(30 * time.Second),
		KnownBlocks:      1024,
	}
}

// Validate 验证网络状态配置
func (c NetworkConfig) Validate() error {
	b, err := hex.DecodeString(strings.TrimPrefix(c.Genesis, "0x"))
	if err != nil || len(b) != 32 {
		return errors.New("genesis must be a 32 byte hex hash")
	}
	if len(c.Capabilities) == 0 {
		return errors.New("at least one capability is required")
	}
	for _, s := range c.Capabilities {
		if _, _, err := ParseCapability(s); err != nil {
			return err
		}
	}
	if c.MaxActivePeers <= 0 {
		return errors.New("max active peers must be positive")
	}
	if c.MaxOutbound < 0 || c.MaxOutbound > c.MaxActivePeers {
		return errors.New("max outbound must be within [0, max active peers]")
	}
	if c.MaintainInterval < 0 || c.DialBackoff < 0 {
		return errors.New("intervals must be non-negative")
	}
	if c.KnownBlocks <= 0 {
		return errors.New("known blocks must be positive")
	}
	return nil
}

// ParseCapability 解析 "name/version" 格式的能力字符串
func ParseCapability(s string) (string, uint, error) {
	name, ver, ok := strings.Cut(s, "/")
	if !ok || name == "" {
		return "", 0, fmt.Errorf("invalid capability %q", s)
	}
	v, err := strconv.ParseUint(ver, 10, 32)
	if err != nil {
		return "", 0, fmt.Errorf("invalid capability version %q: %w", s, err)
	}
	return name, uint(v), nil
}
