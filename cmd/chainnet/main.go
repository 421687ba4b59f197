// Package main 提供 chainnet 命令行入口
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dep2p/go-chainnet"
	"github.com/dep2p/go-chainnet/config"
	"github.com/dep2p/go-chainnet/internal/core/swarm"
	"github.com/dep2p/go-chainnet/internal/core/wire"
	"github.com/dep2p/go-chainnet/pkg/lib/log"
	"github.com/dep2p/go-chainnet/pkg/types"
)

var logger = log.Logger("chainnet/cmd")

// ═══════════════════════════════════════════════════════════════════════════
// 命令行参数
// ═══════════════════════════════════════════════════════════════════════════
//
//   命令行参数：运行时覆盖 / 快速测试
//   JSON 配置文件：持久化配置（链标识、节点容量、已知节点等）
//
// ═══════════════════════════════════════════════════════════════════════════
var (
	configFile   = flag.String("config", "", "配置文件路径（JSON）")
	listenAddr   = flag.String("listen", "", "监听地址，例如 0.0.0.0:30303")
	noListen     = flag.Bool("no-listen", false, "禁用入站监听")
	identityFile = flag.String("identity", "", "身份密钥文件路径")
	peerBookPath = flag.String("peerbook", "", "节点簿目录（为空则只保存在内存）")
	metricsAddr  = flag.String("metrics", "", "Prometheus 指标导出地址")
	dial         = flag.String("dial", "", "启动后立即连接的节点，格式 <peer-id>@<host:port>")
	quiet        = flag.Bool("quiet", false, "不打印消息事件")

	showVersion = flag.Bool("version", false, "显示版本信息")
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()

	if *showVersion {
		fmt.Println(chainnet.VersionInfo())
		return nil
	}

	opts, err := buildOptions()
	if err != nil {
		return fmt.Errorf("配置错误: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("📦 %s\n", chainnet.VersionInfo())
	logger.Info("启动 chainnet 节点", "version", chainnet.Version, "commit", chainnet.GitCommit)

	node, err := chainnet.Start(ctx, opts...)
	if err != nil {
		return fmt.Errorf("启动失败: %w", err)
	}
	defer func() { _ = node.Close() }()

	printNodeInfo(node)

	if *dial != "" {
		peer, addr, err := parsePeerAddr(*dial)
		if err != nil {
			return err
		}
		if err := node.AddPeer(addr, peer); err != nil {
			return fmt.Errorf("连接失败: %w", err)
		}
	}

	fmt.Println("节点已启动，按 Ctrl+C 退出")
	for {
		select {
		case <-ctx.Done():
			fmt.Println("\n正在关闭节点...")
			return nil
		case ev, ok := <-node.Events():
			if !ok {
				return nil
			}
			printEvent(ev)
		}
	}
}

// buildOptions 构建选项
//
// 配置优先级（从高到低）：命令行参数 > 环境变量 > 配置文件 > 默认值。
func buildOptions() ([]chainnet.Option, error) {
	cfg := config.NewConfig()
	if *configFile != "" {
		loaded, err := config.LoadFile(*configFile)
		if err != nil {
			return nil, fmt.Errorf("加载配置文件失败: %w", err)
		}
		cfg = loaded
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	opts := []chainnet.Option{chainnet.WithConfig(cfg)}
	if *listenAddr != "" {
		opts = append(opts, chainnet.WithListenAddr(*listenAddr))
	}
	if *noListen {
		opts = append(opts, chainnet.WithoutListen())
	}
	if *identityFile != "" {
		opts = append(opts, chainnet.WithIdentityFile(*identityFile))
	}
	if *peerBookPath != "" {
		opts = append(opts, chainnet.WithPeerBookPath(*peerBookPath))
	}
	if *metricsAddr != "" {
		opts = append(opts, chainnet.WithMetrics(*metricsAddr))
	}
	return opts, nil
}

func printNodeInfo(node *chainnet.Node) {
	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Printf("  节点 ID:   %s\n", node.ID())
	if addr := node.ListenAddr(); addr != nil {
		fmt.Printf("  监听地址:  %s\n", addr)
		fmt.Printf("  连接串:    %s@%s\n", node.ID(), addr)
	} else {
		fmt.Println("  监听地址:  (已禁用)")
	}
	fmt.Printf("  已知节点:  %d\n", node.KnownPeers())
	fmt.Println("═══════════════════════════════════════════════════════════")
}

func printEvent(ev swarm.Event) {
	switch e := ev.(type) {
	case swarm.SessionEstablished:
		fmt.Printf("🔗 会话建立 %s %s %s caps=%s\n", e.Peer.ShortString(), e.Direction, e.ClientID, e.Capabilities)
	case swarm.SessionClosed:
		if e.Err != nil {
			fmt.Printf("❌ 会话关闭 %s: %v\n", e.Peer.ShortString(), e.Err)
		} else {
			fmt.Printf("👋 会话关闭 %s\n", e.Peer.ShortString())
		}
	case swarm.ValidMessage:
		if !*quiet {
			fmt.Printf("📨 %s ← %s\n", wire.MessageName(e.Message.Code()), e.Peer.ShortString())
		}
	case swarm.InvalidCapabilityMessage:
		fmt.Printf("⚠️  未宣告能力的消息 0x%02x ← %s\n", e.Code, e.Peer.ShortString())
	case swarm.OutgoingConnectionError:
		fmt.Printf("❌ 拨号失败 %s: %v\n", e.RemoteAddr, e.Err)
	case swarm.TCPListenerError:
		fmt.Printf("❌ 监听器失败: %v\n", e.Err)
	default:
		logger.Debug("事件", "name", ev.Name())
	}
}

// parsePeerAddr 解析 <peer-id>@<host:port>
func parsePeerAddr(s string) (types.PeerID, string, error) {
	for i := 0; i < len(s); i++ {
		if s[i] == '@' {
			peer, err := types.ParsePeerID(s[:i])
			if err != nil {
				return types.PeerID{}, "", fmt.Errorf("节点 ID 无效: %w", err)
			}
			return peer, s[i+1:], nil
		}
	}
	return types.PeerID{}, "", fmt.Errorf("格式应为 <peer-id>@<host:port>: %q", s)
}
