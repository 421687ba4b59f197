package session

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-chainnet/config"
	"github.com/dep2p/go-chainnet/internal/core/metrics"
	"github.com/dep2p/go-chainnet/internal/core/upgrader"
)

// Params Manager 依赖参数
type Params struct {
	fx.In

	Lifecycle  fx.Lifecycle
	UnifiedCfg *config.Config
	Upgrader   *upgrader.Upgrader
	Metrics    *metrics.Metrics `optional:"true"`
	Clock      clock.Clock      `optional:"true"`
}

// Module 会话管理器 Fx 模块
var Module = fx.Module("session",
	fx.Provide(ProvideManager),
)

// ProvideManager 提供会话管理器，停止时关闭全部会话
func ProvideManager(p Params) (*Manager, error) {
	opts := []Option{WithMetrics(p.Metrics)}
	if p.Clock != nil {
		opts = append(opts, WithClock(p.Clock))
	}
	m, err := NewManager(ConfigFromUnified(p.UnifiedCfg), p.Upgrader, opts...)
	if err != nil {
		return nil, err
	}
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return m.Close()
		},
	})
	return m, nil
}
