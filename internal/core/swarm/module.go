package swarm

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-chainnet/internal/core/listener"
	"github.com/dep2p/go-chainnet/internal/core/metrics"
	"github.com/dep2p/go-chainnet/internal/core/session"
	"github.com/dep2p/go-chainnet/internal/core/state"
)

// Params Swarm 依赖参数
type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Sessions  *session.Manager
	State     *state.NetworkState
	Listener  *listener.Listener `optional:"true"`
	Metrics   *metrics.Metrics   `optional:"true"`
}

// Module Swarm Fx 模块
var Module = fx.Module("swarm",
	fx.Provide(ProvideSwarm),
)

// ProvideSwarm 提供 Swarm
func ProvideSwarm(p Params) (*Swarm, error) {
	opts := []Option{WithMetrics(p.Metrics)}
	if p.Listener != nil {
		opts = append(opts, WithListener(p.Listener))
	}
	s, err := New(p.Sessions, p.State, opts...)
	if err != nil {
		return nil, err
	}
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return s.Close()
		},
	})
	return s, nil
}
