package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dep2p/go-chainnet/config"
)

// 环境变量（均使用 CHAINNET_ 前缀）
const (
	envListenAddr = "CHAINNET_LISTEN_ADDR"
	envKeyFile    = "CHAINNET_IDENTITY_KEY_FILE"
	envNetworkID  = "CHAINNET_NETWORK_ID"
	envMaxPeers   = "CHAINNET_MAX_PEERS"
	envKnownPeers = "CHAINNET_KNOWN_PEERS"
)

// applyEnvOverrides 应用环境变量覆盖配置
//
// 环境变量优先级高于配置文件，但低于命令行参数。
// CHAINNET_KNOWN_PEERS 为逗号分隔的 <peer-id>@<host:port>。
func applyEnvOverrides(cfg *config.Config) error {
	if v := os.Getenv(envListenAddr); v != "" {
		cfg.Listen.Addr = v
	}
	if v := os.Getenv(envKeyFile); v != "" {
		cfg.Identity.KeyFile = v
	}
	if v := os.Getenv(envNetworkID); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", envNetworkID, err)
		}
		cfg.Network.NetworkID = id
	}
	if v := os.Getenv(envMaxPeers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", envMaxPeers, err)
		}
		cfg.Network.MaxActivePeers = n
		if cfg.Network.MaxOutbound > n {
			cfg.Network.MaxOutbound = n
		}
	}
	if v := os.Getenv(envKnownPeers); v != "" {
		for _, entry := range strings.Split(v, ",") {
			entry = strings.TrimSpace(entry)
			if entry == "" {
				continue
			}
			id, addr, ok := strings.Cut(entry, "@")
			if !ok {
				return fmt.Errorf("%s: invalid entry %q", envKnownPeers, entry)
			}
			cfg.KnownPeers = append(cfg.KnownPeers, config.KnownPeer{PeerID: id, Addr: addr})
		}
	}
	return nil
}
