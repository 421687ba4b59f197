package chainnet

import (
	"errors"
	"fmt"

	"go.uber.org/fx"

	"github.com/dep2p/go-chainnet/config"
)

// Option 用户配置选项函数
type Option func(*options) error

// options 内部选项结构
type options struct {
	config *config.Config

	// eventBuffer Events 通道容量
	eventBuffer int

	// userFxOptions 用户扩展的 Fx 选项（测试替换组件等）
	userFxOptions []fx.Option
}

func newOptions() *options {
	return &options{
		config:      config.NewConfig(),
		eventBuffer: 64,
	}
}

func (o *options) apply(opts ...Option) error {
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(o); err != nil {
			return err
		}
	}
	return nil
}

// WithConfig 使用完整配置替换默认配置
//
// 之后的选项在此配置上继续修改。
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return errors.New("config is nil")
		}
		o.config = cfg
		return nil
	}
}

// WithConfigFile 从 JSON 文件加载配置
func WithConfigFile(path string) Option {
	return func(o *options) error {
		cfg, err := config.LoadFile(path)
		if err != nil {
			return err
		}
		o.config = cfg
		return nil
	}
}

// WithListenAddr 设置入站监听地址
func WithListenAddr(addr string) Option {
	return func(o *options) error {
		o.config.Listen.Addr = addr
		o.config.Listen.Disabled = false
		return nil
	}
}

// WithoutListen 禁用入站监听，只做出站连接
func WithoutListen() Option {
	return func(o *options) error {
		o.config.Listen.Disabled = true
		return nil
	}
}

// WithPrivateKey 使用十六进制私钥作为节点身份
func WithPrivateKey(hexKey string) Option {
	return func(o *options) error {
		o.config.Identity.PrivateKey = hexKey
		return nil
	}
}

// WithIdentityFile 从文件加载节点身份，不存在时生成
func WithIdentityFile(path string) Option {
	return func(o *options) error {
		o.config.Identity.KeyFile = path
		return nil
	}
}

// WithKnownPeer 添加启动时写入节点簿的已知节点
func WithKnownPeer(peerID, addr string) Option {
	return func(o *options) error {
		if peerID == "" || addr == "" {
			return fmt.Errorf("known peer: peer id and addr are required")
		}
		o.config.KnownPeers = append(o.config.KnownPeers, config.KnownPeer{PeerID: peerID, Addr: addr})
		return nil
	}
}

// WithMaxPeers 设置活跃节点上限与出站槽位数
func WithMaxPeers(active, outbound int) Option {
	return func(o *options) error {
		if active <= 0 || outbound < 0 || outbound > active {
			return fmt.Errorf("invalid peer limits: active=%d outbound=%d", active, outbound)
		}
		o.config.Network.MaxActivePeers = active
		o.config.Network.MaxOutbound = outbound
		return nil
	}
}

// WithPeerBookPath 设置节点簿持久化目录，为空表示只保存在内存
func WithPeerBookPath(path string) Option {
	return func(o *options) error {
		o.config.PeerBook.Path = path
		return nil
	}
}

// WithMetrics 启用 Prometheus 指标，addr 非空时在该地址导出
func WithMetrics(addr string) Option {
	return func(o *options) error {
		o.config.Metrics.Enabled = true
		o.config.Metrics.ListenAddr = addr
		return nil
	}
}

// WithEventBuffer 设置 Events 通道容量
func WithEventBuffer(n int) Option {
	return func(o *options) error {
		if n < 0 {
			return fmt.Errorf("invalid event buffer: %d", n)
		}
		o.eventBuffer = n
		return nil
	}
}

// WithFxOptions 追加用户自定义的 Fx 选项
func WithFxOptions(opts ...fx.Option) Option {
	return func(o *options) error {
		o.userFxOptions = append(o.userFxOptions, opts...)
		return nil
	}
}
