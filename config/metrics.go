package config

import (
	"errors"
	"net"
)

// MetricsConfig Prometheus 指标配置
type MetricsConfig struct {
	// Enabled 启用指标采集
	Enabled bool `json:"enabled"`

	// ListenAddr 指标 HTTP 导出地址，为空则不导出
	ListenAddr string `json:"listen_addr,omitempty"`

	// Namespace 指标命名空间
	Namespace string `json:"namespace"`
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   true,
		Namespace: "chainnet",
	}
}

// Validate 验证指标配置
func (c MetricsConfig) Validate() error {
	if c.ListenAddr != "" {
		if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
			return errors.New("listen addr must be host:port")
		}
	}
	if c.Enabled && c.Namespace == "" {
		return errors.New("namespace is required")
	}
	return nil
}
