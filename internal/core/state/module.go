package state

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-chainnet/config"
	"github.com/dep2p/go-chainnet/internal/core/peerbook"
)

// Params NetworkState 依赖参数
type Params struct {
	fx.In

	Lifecycle  fx.Lifecycle
	UnifiedCfg *config.Config
	PeerBook   *peerbook.PeerBook `optional:"true"`
	Clock      clock.Clock        `optional:"true"`
}

// Module 网络状态 Fx 模块
var Module = fx.Module("state",
	fx.Provide(ProvideNetworkState),
)

// ProvideNetworkState 提供网络状态，启动时开始出站维护
func ProvideNetworkState(p Params) (*NetworkState, error) {
	s, err := New(ConfigFromUnified(p.UnifiedCfg), p.PeerBook, p.Clock)
	if err != nil {
		return nil, err
	}
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			s.Start()
			return nil
		},
		OnStop: func(context.Context) error {
			return s.Close()
		},
	})
	return s, nil
}
