package upgrader

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-chainnet/config"
	"github.com/dep2p/go-chainnet/internal/core/security/noise"
)

// Params Upgrader 依赖参数
type Params struct {
	fx.In

	Security   *noise.Transport
	UnifiedCfg *config.Config `optional:"true"`
}

// Module 升级器 Fx 模块
var Module = fx.Module("upgrader",
	fx.Provide(ProvideUpgrader),
)

// ProvideUpgrader 提供 Upgrader
func ProvideUpgrader(p Params) (*Upgrader, error) {
	cfg, err := ConfigFromUnified(p.UnifiedCfg)
	if err != nil {
		return nil, err
	}
	return New(p.Security, cfg)
}
