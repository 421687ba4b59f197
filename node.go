package chainnet

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-chainnet/internal/core/identity"
	"github.com/dep2p/go-chainnet/internal/core/listener"
	"github.com/dep2p/go-chainnet/internal/core/metrics"
	"github.com/dep2p/go-chainnet/internal/core/peerbook"
	"github.com/dep2p/go-chainnet/internal/core/session"
	"github.com/dep2p/go-chainnet/internal/core/state"
	"github.com/dep2p/go-chainnet/internal/core/swarm"
	"github.com/dep2p/go-chainnet/internal/core/wire"
	"github.com/dep2p/go-chainnet/pkg/lib/log"
	"github.com/dep2p/go-chainnet/pkg/types"
)

var logger = log.Logger("chainnet")

const (
	startTimeout = 30 * time.Second
	stopTimeout  = 10 * time.Second
)

// Node 一个区块链 P2P 节点
//
// Node 持有一个事件驱动 goroutine，持续调用 Swarm.Next 并把事件写入 Events 通道。
// 除 Events 外的方法并发安全。
type Node struct {
	opts *options
	app  *fx.App

	// 由 Fx 注入
	identity *identity.Identity
	sessions *session.Manager
	state    *state.NetworkState
	swarm    *swarm.Swarm
	listener *listener.Listener
	peerBook *peerbook.PeerBook
	metrics  *metrics.Metrics

	events chan swarm.Event

	mu      sync.Mutex
	started bool
	closed  bool
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// New 创建节点但不启动
func New(opts ...Option) (*Node, error) {
	o := newOptions()
	if err := o.apply(opts...); err != nil {
		return nil, err
	}

	n := &Node{
		opts:   o,
		events: make(chan swarm.Event, o.eventBuffer),
	}
	app, err := buildFxApp(o, n)
	if err != nil {
		return nil, err
	}
	n.app = app
	return n, nil
}

// Start 创建并启动节点
func Start(ctx context.Context, opts ...Option) (*Node, error) {
	n, err := New(opts...)
	if err != nil {
		return nil, err
	}
	if err := n.Start(ctx); err != nil {
		_ = n.Close()
		return nil, err
	}
	return n, nil
}

// Start 启动全部组件与事件驱动 goroutine
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return ErrNodeClosed
	}
	if n.started {
		return ErrAlreadyStarted
	}

	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()
	if err := n.app.Start(startCtx); err != nil {
		logger.Error("节点启动失败", "error", err)
		return fmt.Errorf("start failed: %w", err)
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return n.drive(gctx) })
	n.cancel = runCancel
	n.group = g
	n.started = true

	logger.Info("节点已启动", "peer", n.identity.ID().ShortString(), "listen", n.ListenAddr())
	return nil
}

// drive 把 Swarm 事件转发到 Events 通道
func (n *Node) drive(ctx context.Context) error {
	defer close(n.events)
	for {
		ev, err := n.swarm.Next(ctx)
		if err != nil {
			if errors.Is(err, swarm.ErrSwarmClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case n.events <- ev:
		case <-ctx.Done():
			return nil
		}
	}
}

// Close 停止事件驱动 goroutine 并关闭全部组件
//
// 关闭后 Events 通道被关闭。
func (n *Node) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil
	}
	n.closed = true

	if !n.started {
		close(n.events)
		return n.releaseUnstarted()
	}

	var err error
	n.cancel()
	err = multierr.Append(err, n.swarm.Close())
	err = multierr.Append(err, n.group.Wait())

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	err = multierr.Append(err, n.app.Stop(stopCtx))

	logger.Info("节点已关闭", "peer", n.identity.ID().ShortString())
	return err
}

// releaseUnstarted 释放构造时已占用的资源
//
// Fx 只为已启动的应用执行 OnStop，未启动的节点需要手动关闭。
func (n *Node) releaseUnstarted() error {
	var err error
	if n.swarm != nil {
		err = multierr.Append(err, n.swarm.Close())
	}
	if n.listener != nil {
		err = multierr.Append(err, n.listener.Close())
	}
	if n.sessions != nil {
		err = multierr.Append(err, n.sessions.Close())
	}
	if n.state != nil {
		err = multierr.Append(err, n.state.Close())
	}
	if n.peerBook != nil {
		err = multierr.Append(err, n.peerBook.Close())
	}
	return err
}

// ════════════════════════════════════════════════════════════════════════════
// 查询
// ════════════════════════════════════════════════════════════════════════════

// ID 返回本地节点 ID
func (n *Node) ID() types.PeerID {
	return n.identity.ID()
}

// ListenAddr 返回实际监听地址，禁用入站时返回 nil
func (n *Node) ListenAddr() net.Addr {
	if n.listener == nil {
		return nil
	}
	return n.listener.Addr()
}

// Events 返回事件通道
//
// 调用方必须持续读取，否则会话逐级阻塞。
func (n *Node) Events() <-chan swarm.Event {
	return n.events
}

// Peers 返回活跃节点快照
func (n *Node) Peers() []state.PeerInfo {
	return n.state.Peers()
}

// PeerCount 返回活跃节点数
func (n *Node) PeerCount() int {
	return n.state.PeerCount()
}

// KnownPeers 返回节点簿中的节点数
func (n *Node) KnownPeers() int {
	if n.peerBook == nil {
		return 0
	}
	return n.peerBook.Len()
}

// NumPending 返回仍在握手中的会话数
func (n *Node) NumPending() int {
	return n.sessions.NumPending()
}

// ════════════════════════════════════════════════════════════════════════════
// 操作
// ════════════════════════════════════════════════════════════════════════════

func (n *Node) checkRunning() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	switch {
	case n.closed:
		return ErrNodeClosed
	case !n.started:
		return ErrNotStarted
	}
	return nil
}

// Dial 立即向节点发起出站连接，返回会话 ID
func (n *Node) Dial(addr string, peer types.PeerID) (types.SessionID, error) {
	if err := n.checkRunning(); err != nil {
		return 0, err
	}
	return n.swarm.DialOutbound(addr, peer), nil
}

// AddPeer 把节点写入节点簿并请求连接
func (n *Node) AddPeer(addr string, peer types.PeerID) error {
	if err := n.checkRunning(); err != nil {
		return err
	}
	n.state.ConnectPeer(addr, peer)
	return nil
}

// Request 向节点发送请求并等待应答
func (n *Node) Request(ctx context.Context, peer types.PeerID, req wire.Request) (wire.Response, error) {
	if err := n.checkRunning(); err != nil {
		return nil, err
	}
	sender, ok := n.state.Sender(peer)
	if !ok || sender == nil {
		return nil, fmt.Errorf("%w: %s", ErrPeerNotFound, peer.ShortString())
	}
	return sender.Request(ctx, req)
}

// SendMessage 尽力向节点发送消息，节点未连接时静默丢弃
func (n *Node) SendMessage(peer types.PeerID, msg wire.Message) {
	n.swarm.SendMessage(peer, msg)
}

// DisconnectPeer 断开节点
func (n *Node) DisconnectPeer(peer types.PeerID, reason types.DisconnectReason) {
	n.swarm.DisconnectPeer(peer, reason)
}

// AnnounceBlock 向尚不知道该区块的节点传播区块，返回收到公告的节点数
func (n *Node) AnnounceBlock(block *wire.NewBlock) int {
	return n.state.AnnounceBlock(block)
}
