package metrics

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-chainnet/config"
)

// Params Metrics 依赖参数
type Params struct {
	fx.In

	Lifecycle  fx.Lifecycle
	UnifiedCfg *config.Config
	Registry   *prometheus.Registry `optional:"true"`
	Clock      clock.Clock          `optional:"true"`
}

// Module 指标 Fx 模块
var Module = fx.Module("metrics",
	fx.Provide(ProvideMetrics),
)

// ProvideMetrics 按配置创建指标，未启用时返回 nil
//
// 未注入 Registry 时使用独立的注册表，避免与进程内其他实例冲突。
func ProvideMetrics(p Params) (*Metrics, error) {
	cfg := p.UnifiedCfg.Metrics
	if !cfg.Enabled {
		return nil, nil
	}
	reg := p.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m, err := New(cfg.Namespace, reg, NewBandwidthCounter(p.Clock))
	if err != nil {
		return nil, err
	}

	if cfg.ListenAddr != "" {
		srv := NewServer(cfg.ListenAddr, reg)
		p.Lifecycle.Append(fx.Hook{
			OnStart: func(context.Context) error { return srv.Start() },
			OnStop:  srv.Stop,
		})
	}
	return m, nil
}
