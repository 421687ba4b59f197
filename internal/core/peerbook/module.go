package peerbook

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-chainnet/config"
	"github.com/dep2p/go-chainnet/pkg/types"
)

// Params PeerBook 依赖参数
type Params struct {
	fx.In

	Lifecycle  fx.Lifecycle
	UnifiedCfg *config.Config
	Clock      clock.Clock `optional:"true"`
}

// Module 节点簿 Fx 模块
var Module = fx.Module("peerbook",
	fx.Provide(ProvidePeerBook),
)

// ProvidePeerBook 打开节点簿并写入配置中的已知节点
func ProvidePeerBook(p Params) (*PeerBook, error) {
	book, err := Open(ConfigFromUnified(p.UnifiedCfg), p.Clock)
	if err != nil {
		return nil, err
	}
	for _, kp := range p.UnifiedCfg.KnownPeers {
		peer, err := types.ParsePeerID(kp.PeerID)
		if err != nil {
			_ = book.Close()
			return nil, fmt.Errorf("known peer %q: %w", kp.PeerID, err)
		}
		if err := book.AddPeer(peer, kp.Addr); err != nil {
			_ = book.Close()
			return nil, err
		}
	}
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return book.Close()
		},
	})
	return book, nil
}
