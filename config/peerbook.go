package config

import "errors"

// PeerBookConfig 节点簿配置
type PeerBookConfig struct {
	// Path BadgerDB 数据目录，为空时使用内存存储
	Path string `json:"path,omitempty"`

	// MaxPeers 节点簿最多保存的节点数
	MaxPeers int `json:"max_peers"`
}

// DefaultPeerBookConfig 返回默认节点簿配置
func DefaultPeerBookConfig() PeerBookConfig {
	return PeerBookConfig{
		MaxPeers: 4096,
	}
}

// Validate 验证节点簿配置
func (c PeerBookConfig) Validate() error {
	if c.MaxPeers <= 0 {
		return errors.New("max peers must be positive")
	}
	return nil
}
