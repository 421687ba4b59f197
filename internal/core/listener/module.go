package listener

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-chainnet/config"
)

// Module 监听器 Fx 模块
var Module = fx.Module("listener",
	fx.Provide(ProvideListener),
)

// ProvideListener 按统一配置创建监听器，禁用入站时返回 nil
func ProvideListener(lc fx.Lifecycle, cfg *config.Config) (*Listener, error) {
	if cfg.Listen.Disabled {
		logger.Info("入站监听已禁用")
		return nil, nil
	}
	l, err := Listen(ConfigFromUnified(cfg))
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return l.Close()
		},
	})
	return l, nil
}
