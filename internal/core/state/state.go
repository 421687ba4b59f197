package state

import (
	"context"
	"math"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dep2p/go-chainnet/internal/core/peerbook"
	"github.com/dep2p/go-chainnet/internal/core/session"
	"github.com/dep2p/go-chainnet/internal/core/wire"
	"github.com/dep2p/go-chainnet/internal/util/waker"
	"github.com/dep2p/go-chainnet/pkg/lib/log"
	"github.com/dep2p/go-chainnet/pkg/types"
)

var logger = log.Logger("core/state")

// SessionInfo 已建立会话的信息
type SessionInfo struct {
	SessionID    types.SessionID
	Peer         types.PeerID
	Direction    types.Direction
	RemoteAddr   net.Addr
	ClientID     string
	Capabilities *types.Capabilities
	Status       *wire.Status
	Sender       *session.RequestSender
}

// PeerInfo 活跃节点快照
type PeerInfo struct {
	SessionID    types.SessionID
	Peer         types.PeerID
	Direction    types.Direction
	RemoteAddr   net.Addr
	ClientID     string
	Capabilities *types.Capabilities
	Status       *wire.Status
	ConnectedAt  time.Time
}

type peerState struct {
	info   PeerInfo
	sender *session.RequestSender
	known  *lru.Cache[common.Hash, struct{}]
}

// NetworkState 网络状态
//
// 会话相关的回调只由 swarm 的调度 goroutine 调用；
// 查询方法可被任意 goroutine 并发调用。
type NetworkState struct {
	cfg   Config
	book  *peerbook.PeerBook
	clock clock.Clock

	mu       sync.RWMutex
	peers    map[types.PeerID]*peerState
	outbound int
	dialing  map[types.PeerID]struct{}
	actions  []Action
	started  bool
	closed   bool

	wake *waker.Waker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New 创建网络状态，book 为空时不做出站维护
func New(cfg Config, book *peerbook.PeerBook, clk clock.Clock) (*NetworkState, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &NetworkState{
		cfg:     cfg,
		book:    book,
		clock:   clk,
		peers:   make(map[types.PeerID]*peerState),
		dialing: make(map[types.PeerID]struct{}),
		wake:    waker.New(),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// ============================================================================
// 会话回调
// ============================================================================

// OnSessionActivated 准入新建立的会话
//
// 活跃节点已满时返回 *AddSessionError，节点不会被记录。
func (s *NetworkState) OnSessionActivated(info SessionInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.dialing, info.Peer)
	if _, ok := s.peers[info.Peer]; !ok && len(s.peers) >= s.cfg.MaxActivePeers {
		logger.Debug("活跃节点已满，拒绝会话", "peer", info.Peer.ShortString(), "peers", len(s.peers))
		return &AddSessionError{Kind: AtCapacity, Peer: info.Peer}
	}
	if old, ok := s.peers[info.Peer]; ok && old.info.Direction == types.DirOutbound {
		s.outbound--
	}

	known, err := lru.New[common.Hash, struct{}](s.cfg.KnownBlocks)
	if err != nil {
		return err
	}
	s.peers[info.Peer] = &peerState{
		info: PeerInfo{
			SessionID:    info.SessionID,
			Peer:         info.Peer,
			Direction:    info.Direction,
			RemoteAddr:   info.RemoteAddr,
			ClientID:     info.ClientID,
			Capabilities: info.Capabilities,
			Status:       info.Status,
			ConnectedAt:  s.clock.Now(),
		},
		sender: info.Sender,
		known:  known,
	}
	if info.Direction == types.DirOutbound {
		s.outbound++
		if s.book != nil && info.RemoteAddr != nil {
			if err := s.book.MarkConnected(info.Peer, info.RemoteAddr.String()); err != nil {
				logger.Warn("更新节点簿失败", "peer", info.Peer.ShortString(), "error", err)
			}
		}
	}
	if info.Status != nil {
		known.Add(info.Status.Head, struct{}{})
	}
	return nil
}

// OnSessionClosed 移除节点
//
// 只有 id 与当前记录的会话一致时才移除，已被新会话接替的旧会话关闭是空操作。
func (s *NetworkState) OnSessionClosed(peer types.PeerID, id types.SessionID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.peers[peer]
	if !ok || p.info.SessionID != id {
		return
	}
	delete(s.peers, peer)
	if p.info.Direction == types.DirOutbound {
		s.outbound--
	}
}

// OnDialFailed 出站连接失败：释放拨号槽位并记录退避
func (s *NetworkState) OnDialFailed(peer types.PeerID) {
	s.mu.Lock()
	delete(s.dialing, peer)
	s.mu.Unlock()

	if s.book != nil {
		if err := s.book.MarkDialFailed(peer); err != nil {
			logger.Warn("更新节点簿失败", "peer", peer.ShortString(), "error", err)
		}
	}
}

// OnDialCanceled 出站连接未完成但不是对端的问题，只释放拨号槽位
func (s *NetworkState) OnDialCanceled(peer types.PeerID) {
	s.mu.Lock()
	delete(s.dialing, peer)
	s.mu.Unlock()
}

// OnBlockSeen 记录节点已知某个区块
func (s *NetworkState) OnBlockSeen(peer types.PeerID, hash common.Hash) {
	s.mu.RLock()
	p, ok := s.peers[peer]
	s.mu.RUnlock()
	if ok {
		p.known.Add(hash, struct{}{})
	}
}

// ============================================================================
// 策略
// ============================================================================

// AnnounceBlock 传播新区块，返回收到公告的节点数
//
// ⌈√n⌉ 个节点收到完整区块，其余只收到哈希。
func (s *NetworkState) AnnounceBlock(block *wire.NewBlock) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	targets := make([]*peerState, 0, len(s.peers))
	for _, p := range s.peers {
		if !p.known.Contains(block.Hash) {
			targets = append(targets, p)
		}
	}
	if len(targets) == 0 {
		return 0
	}
	rand.Shuffle(len(targets), func(i, j int) {
		targets[i], targets[j] = targets[j], targets[i]
	})

	full := int(math.Ceil(math.Sqrt(float64(len(targets)))))
	hashes := wire.NewBlockHashes{{Hash: block.Hash, Number: block.Number}}
	for i, p := range targets {
		p.known.Add(block.Hash, struct{}{})
		if i < full {
			s.actions = append(s.actions, NewBlock{Peer: p.info.Peer, Block: block})
		} else {
			s.actions = append(s.actions, NewBlockHashes{Peer: p.info.Peer, Hashes: hashes})
		}
	}
	s.wake.Wake()

	logger.Debug("传播新区块", "number", block.Number, "hash", block.Hash, "full", full, "peers", len(targets))
	return len(targets)
}

// ConnectPeer 请求拨号并把节点写入节点簿
func (s *NetworkState) ConnectPeer(addr string, peer types.PeerID) {
	if s.book != nil {
		if err := s.book.AddPeer(peer, addr); err != nil {
			logger.Debug("节点未写入节点簿", "peer", peer.ShortString(), "error", err)
		}
	}
	s.mu.Lock()
	s.dialing[peer] = struct{}{}
	s.actions = append(s.actions, Connect{Addr: addr, Peer: peer})
	s.mu.Unlock()
	s.wake.Wake()
}

// DisconnectPeer 请求断开节点
func (s *NetworkState) DisconnectPeer(peer types.PeerID, reason *types.DisconnectReason) {
	s.mu.Lock()
	s.actions = append(s.actions, Disconnect{Peer: peer, Reason: reason})
	s.mu.Unlock()
	s.wake.Wake()
}

// maintain 从节点簿补齐空闲出站槽位
func (s *NetworkState) maintain() {
	if s.book == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	free := s.cfg.MaxOutbound - s.outbound - len(s.dialing)
	if room := s.cfg.MaxActivePeers - len(s.peers) - len(s.dialing); room < free {
		free = room
	}
	if free <= 0 {
		return
	}

	candidates := s.book.Candidates(free, func(p types.PeerID) bool {
		_, active := s.peers[p]
		_, dialing := s.dialing[p]
		return active || dialing
	})
	for _, rec := range candidates {
		s.dialing[rec.Peer] = struct{}{}
		s.actions = append(s.actions, Connect{Addr: rec.Addr, Peer: rec.Peer})
	}
	if len(candidates) > 0 {
		logger.Debug("补齐出站槽位", "dials", len(candidates), "outbound", s.outbound)
		s.wake.Wake()
	}
}

// ============================================================================
// 事件源
// ============================================================================

// Poll 非阻塞地取下一个动作
func (s *NetworkState) Poll() (Action, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.actions) == 0 {
		return nil, false
	}
	a := s.actions[0]
	s.actions[0] = nil
	s.actions = s.actions[1:]
	return a, true
}

// Wake 有新动作时收到信号
func (s *NetworkState) Wake() <-chan struct{} {
	return s.wake.C()
}

// ============================================================================
// 查询
// ============================================================================

// PeerCount 返回活跃节点数
func (s *NetworkState) PeerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.peers)
}

// OutboundCount 返回活跃出站节点数
func (s *NetworkState) OutboundCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.outbound
}

// Peers 返回活跃节点快照
func (s *NetworkState) Peers() []PeerInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]PeerInfo, 0, len(s.peers))
	for _, p := range s.peers {
		out = append(out, p.info)
	}
	return out
}

// Peer 返回单个节点快照
func (s *NetworkState) Peer(peer types.PeerID) (PeerInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.peers[peer]
	if !ok {
		return PeerInfo{}, false
	}
	return p.info, true
}

// Sender 返回节点的请求句柄
func (s *NetworkState) Sender(peer types.PeerID) (*session.RequestSender, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.peers[peer]
	if !ok || p.sender == nil {
		return nil, false
	}
	return p.sender, true
}

// KnowsBlock 报告节点是否已知某个区块
func (s *NetworkState) KnowsBlock(peer types.PeerID, hash common.Hash) bool {
	s.mu.RLock()
	p, ok := s.peers[peer]
	s.mu.RUnlock()
	return ok && p.known.Contains(hash)
}

// ============================================================================
// 生命周期
// ============================================================================

// Start 启动出站维护循环
func (s *NetworkState) Start() {
	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	if s.book == nil || s.cfg.MaintainInterval <= 0 {
		return
	}
	ticker := s.clock.Ticker(s.cfg.MaintainInterval)
	s.maintain()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.maintain()
			case <-s.ctx.Done():
				return
			}
		}
	}()
}

// Close 停止维护循环
func (s *NetworkState) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	return nil
}
