// Package chainnet 提供区块链节点的 P2P 会话层
//
// chainnet 负责与其他节点建立经过认证的 TCP 会话，协商协议能力，
// 在会话上收发协议消息并跟踪请求与应答，维护活跃节点集合与出站槽位，
// 并把所有网络活动汇总为一个有序的事件流交给上层（同步、交易池等）。
//
// # 快速开始
//
//	node, err := chainnet.Start(ctx,
//	    chainnet.WithListenAddr("0.0.0.0:30303"),
//	    chainnet.WithKnownPeer(peerHex, "1.2.3.4:30303"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer node.Close()
//
//	for ev := range node.Events() {
//	    switch e := ev.(type) {
//	    case swarm.SessionEstablished:
//	        resp, err := node.Request(ctx, e.Peer, &wire.GetBlockHeaders{
//	            Origin: wire.HashOrNumber{Number: 1},
//	            Amount: 16,
//	        })
//	        ...
//	    case swarm.ValidMessage:
//	        ...
//	    }
//	}
//
// # 组件
//
//	┌──────────────────────────────────────────────────────────────┐
//	│  Node        事件驱动 goroutine、公共 API                     │
//	├──────────────────────────────────────────────────────────────┤
//	│  Swarm       按优先级汇总状态动作、会话事件、监听器事件       │
//	├───────────────────────┬──────────────────────────────────────┤
//	│  NetworkState         │  SessionManager                      │
//	│  准入、出站槽位、     │  待定会话 → 活跃会话，                │
//	│  区块传播             │  每个会话一个 goroutine               │
//	├───────────────────────┼──────────────────────────────────────┤
//	│  PeerBook (badger)    │  Upgrader: Noise XX + Hello/Status   │
//	├───────────────────────┴──────────────────────────────────────┤
//	│  Listener (TCP)       Wire: RLP + snappy 帧                   │
//	└──────────────────────────────────────────────────────────────┘
//
// 事件按以下顺序产生：网络状态动作优先，其次会话事件（每次一个），
// 最后是监听器事件。Events 通道不被读取时事件驱动 goroutine 阻塞，
// 会话因此逐级产生背压。
//
// # 文件组织
//
//   - chainnet.go: 版本信息
//   - node.go: Node 与公共 API
//   - options.go: 用户选项
//   - fx.go: Fx 应用装配
//   - errors.go: 公共错误
package chainnet
