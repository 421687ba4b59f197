package identity

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-chainnet/config"
	"github.com/dep2p/go-chainnet/pkg/lib/log"
)

var logger = log.Logger("core/identity")

// Module 身份 Fx 模块
var Module = fx.Module("identity",
	fx.Provide(ProvideIdentity),
)

// ProvideIdentity 按统一配置提供节点身份
//
// 优先级：PrivateKey > KeyFile > 临时身份。
func ProvideIdentity(cfg *config.Config) (*Identity, error) {
	switch {
	case cfg.Identity.PrivateKey != "":
		return FromHex(cfg.Identity.PrivateKey)
	case cfg.Identity.KeyFile != "":
		return LoadOrCreate(cfg.Identity.KeyFile)
	default:
		id, err := Generate()
		if err != nil {
			return nil, err
		}
		logger.Debug("使用临时节点身份", "peer", id.ID().ShortString())
		return id, nil
	}
}
