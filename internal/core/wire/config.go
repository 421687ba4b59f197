package wire

import (
	"errors"
	"fmt"
	"math/big"
	"net"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/dep2p/go-chainnet/config"
	"github.com/dep2p/go-chainnet/pkg/types"
)

// DefaultClientID 握手时宣告的客户端标识
const DefaultClientID = "chainnet/v0.1.0"

// HeadFunc 返回当前链头哈希与总难度
type HeadFunc func() (common.Hash, *big.Int)

// Config 协议握手与流配置
type Config struct {
	// ClientID 客户端标识
	ClientID string

	// ListenPort 本地监听端口，仅用于宣告
	ListenPort uint64

	// NetworkID 网络 ID
	NetworkID uint64

	// Genesis 创世区块哈希
	Genesis common.Hash

	// Capabilities 本地能力集
	Capabilities *types.Capabilities

	// Head 链头提供者，为 nil 时宣告创世区块
	Head HeadFunc

	// SendBuffer 发送队列容量
	SendBuffer int

	// RecvBuffer 接收队列容量
	RecvBuffer int

	// MaxMessageSize 单条消息最大字节数
	MaxMessageSize int
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	network := config.DefaultNetworkConfig()
	cfg, _ := configFrom(network, config.DefaultSessionConfig(), 30303)
	return cfg
}

// Validate 验证配置
func (c Config) Validate() error {
	if _, ok := c.Capabilities.SupportsProtocol(ProtocolEth); !ok {
		return errors.New("wire: eth capability is required")
	}
	if c.SendBuffer <= 0 || c.RecvBuffer <= 0 {
		return errors.New("wire: buffers must be positive")
	}
	if c.MaxMessageSize <= 0 {
		return errors.New("wire: max message size must be positive")
	}
	return nil
}

// ConfigFromUnified 从统一配置构建
func ConfigFromUnified(cfg *config.Config) (Config, error) {
	var port uint64
	if !cfg.Listen.Disabled {
		_, p, err := net.SplitHostPort(cfg.Listen.Addr)
		if err != nil {
			return Config{}, fmt.Errorf("wire: listen addr: %w", err)
		}
		port, _ = strconv.ParseUint(p, 10, 16)
	}
	return configFrom(cfg.Network, cfg.Session, port)
}

func configFrom(network config.NetworkConfig, session config.SessionConfig, port uint64) (Config, error) {
	caps := make([]types.Capability, 0, len(network.Capabilities))
	for _, s := range network.Capabilities {
		name, version, err := config.ParseCapability(s)
		if err != nil {
			return Config{}, err
		}
		caps = append(caps, types.Capability{Name: name, Version: version})
	}
	return Config{
		ClientID:       DefaultClientID,
		ListenPort:     port,
		NetworkID:      network.NetworkID,
		Genesis:        common.HexToHash(strings.TrimPrefix(network.Genesis, "0x")),
		Capabilities:   types.NewCapabilities(caps...),
		SendBuffer:     session.SendBuffer,
		RecvBuffer:     session.SendBuffer,
		MaxMessageSize: session.MaxMessageSize,
	}, nil
}

func (c Config) head() (common.Hash, *big.Int) {
	if c.Head != nil {
		if hash, td := c.Head(); td != nil {
			return hash, td
		}
	}
	return c.Genesis, new(big.Int)
}
