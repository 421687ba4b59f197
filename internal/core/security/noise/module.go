package noise

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-chainnet/internal/core/identity"
)

// Module Noise 安全传输 Fx 模块
var Module = fx.Module("security/noise",
	fx.Provide(func(id *identity.Identity) *Transport { return New(id) }),
)
