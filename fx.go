package chainnet

import (
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-chainnet/internal/core/identity"
	"github.com/dep2p/go-chainnet/internal/core/listener"
	"github.com/dep2p/go-chainnet/internal/core/metrics"
	"github.com/dep2p/go-chainnet/internal/core/peerbook"
	"github.com/dep2p/go-chainnet/internal/core/security/noise"
	"github.com/dep2p/go-chainnet/internal/core/session"
	"github.com/dep2p/go-chainnet/internal/core/state"
	"github.com/dep2p/go-chainnet/internal/core/swarm"
	"github.com/dep2p/go-chainnet/internal/core/upgrader"
)

// buildFxApp 构建 Fx 应用
//
// 加载顺序（按依赖）：
//
//	Identity → Noise → Upgrader → SessionManager
//	PeerBook → NetworkState
//	Listener, Metrics
//	Swarm（汇总以上组件）
func buildFxApp(opts *options, node *Node) (*fx.App, error) {
	if err := opts.config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	modules := []fx.Option{
		fx.Supply(opts.config),

		identity.Module,
		noise.Module,
		upgrader.Module,
		metrics.Module,
		peerbook.Module,
		state.Module,
		session.Module,
		listener.Module,
		swarm.Module,
	}

	if len(opts.userFxOptions) > 0 {
		modules = append(modules, opts.userFxOptions...)
	}

	modules = append(modules,
		fx.Invoke(injectNodeComponents(node)),
		// 禁用 Fx 日志输出（避免干扰用户日志）
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),
	)

	app := fx.New(modules...)
	if err := app.Err(); err != nil {
		return nil, fmt.Errorf("build node: %w", err)
	}
	return app, nil
}

// nodeInjectParams Node 组件注入参数
type nodeInjectParams struct {
	fx.In

	Identity *identity.Identity
	Sessions *session.Manager
	State    *state.NetworkState
	Swarm    *swarm.Swarm

	Listener *listener.Listener `optional:"true"`
	PeerBook *peerbook.PeerBook `optional:"true"`
	Metrics  *metrics.Metrics   `optional:"true"`
}

// injectNodeComponents 创建 Node 组件注入函数
func injectNodeComponents(node *Node) interface{} {
	return func(p nodeInjectParams) {
		node.identity = p.Identity
		node.sessions = p.Sessions
		node.state = p.State
		node.swarm = p.Swarm
		node.listener = p.Listener
		node.peerBook = p.PeerBook
		node.metrics = p.Metrics
	}
}
