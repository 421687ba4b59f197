package session

import (
	"context"
	"net"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-chainnet/internal/core/metrics"
	"github.com/dep2p/go-chainnet/internal/core/wire"
	"github.com/dep2p/go-chainnet/internal/util/waker"
	"github.com/dep2p/go-chainnet/pkg/lib/log"
	"github.com/dep2p/go-chainnet/pkg/types"
)

var logger = log.Logger("core/session")

// Upgrader 将原始连接升级为已认证的协议通道
//
// 失败时实现方负责关闭 conn。出站时 remote 为拨号目标。
type Upgrader interface {
	Upgrade(ctx context.Context, conn net.Conn, dir types.Direction, remote types.PeerID) (wire.Channel, *wire.PeerInfo, error)
}

// Dialer 出站 TCP 拨号
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Option 管理器选项
type Option func(*Manager)

// WithClock 设置时钟（测试使用 clock.Mock）
func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithMetrics 设置指标
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithDialer 设置拨号器
func WithDialer(d Dialer) Option {
	return func(m *Manager) { m.dialer = d }
}

// Manager 会话管理器
//
// 会话表由一把互斥锁保护，同一 SessionID 的准入与移除串行执行。
// Poll 只应由一个 goroutine 调用。
type Manager struct {
	cfg      Config
	upgrader Upgrader
	dialer   Dialer
	clock    clock.Clock
	metrics  *metrics.Metrics

	nextID atomic.Uint64

	mu              sync.Mutex
	pending         map[types.SessionID]*pendingSession
	active          map[types.PeerID]*sessionHandle
	replaced        map[types.SessionID]*sessionHandle // 已被接替、等待 sessionClosed 的会话
	pendingIncoming int
	closed          bool

	pendingEvents chan pendingEvent
	activeEvents  chan Event
	wake          *waker.Waker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager 创建会话管理器
func NewManager(cfg Config, upgrader Upgrader, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:           cfg,
		upgrader:      upgrader,
		dialer:        &net.Dialer{},
		clock:         clock.New(),
		pending:       make(map[types.SessionID]*pendingSession),
		active:        make(map[types.PeerID]*sessionHandle),
		replaced:      make(map[types.SessionID]*sessionHandle),
		pendingEvents: make(chan pendingEvent, cfg.EventBuffer),
		activeEvents:  make(chan Event, cfg.EventBuffer),
		wake:          waker.New(),
		ctx:           ctx,
		cancel:        cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Manager) nextSessionID() types.SessionID {
	return types.SessionID(m.nextID.Add(1))
}

// DialOutbound 发起出站连接，立即分配 SessionID，不阻塞
func (m *Manager) DialOutbound(addr string, peer types.PeerID) types.SessionID {
	id := m.nextSessionID()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return id
	}
	m.pending[id] = &pendingSession{id: id, direction: types.DirOutbound, remoteAddr: addr, peer: peer}
	m.wg.Add(1)
	m.mu.Unlock()

	m.metrics.SessionPending(types.DirOutbound.String(), 1)
	logger.Debug("发起出站连接", "session", id, "addr", addr, "peer", peer.ShortString())
	go m.runOutgoing(id, addr, peer)
	return id
}

// OnIncoming 准入新的入站连接
//
// 待定入站会话已满时关闭连接并返回 ErrPendingSessionLimit。
// 准入不代表认证成功。
func (m *Manager) OnIncoming(conn net.Conn, remoteAddr net.Addr) (types.SessionID, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		_ = conn.Close()
		return 0, ErrManagerClosed
	}
	if m.pendingIncoming >= m.cfg.MaxPendingIncoming {
		m.mu.Unlock()
		_ = conn.Close()
		return 0, ErrPendingSessionLimit
	}
	id := m.nextSessionID()
	m.pending[id] = &pendingSession{id: id, direction: types.DirInbound, remoteAddr: remoteAddr.String()}
	m.pendingIncoming++
	m.wg.Add(1)
	m.mu.Unlock()

	m.metrics.SessionPending(types.DirInbound.String(), 1)
	go m.runIncoming(id, conn, remoteAddr)
	return id, nil
}

// Disconnect 断开与节点的会话；未知节点或重复调用不做任何事
func (m *Manager) Disconnect(peer types.PeerID, reason types.DisconnectReason) {
	h := m.lookup(peer)
	if h == nil {
		return
	}
	if h.disconnect(reason) {
		m.metrics.Disconnect(reason.String())
		logger.Debug("断开会话", "peer", peer.ShortString(), "reason", reason)
	}
}

// SendMessage 尽力把消息放入节点的出站队列
//
// 节点未知或命令缓冲区已满时丢弃。
func (m *Manager) SendMessage(peer types.PeerID, msg wire.Message) {
	h := m.lookup(peer)
	if h == nil {
		m.metrics.MessageDropped("unknown_peer")
		logger.Debug("丢弃发往未知节点的消息", "peer", peer.ShortString(), "message", wire.MessageName(msg.Code()))
		return
	}
	if !h.trySend(messageCommand{msg: msg}) {
		m.metrics.MessageDropped("session_busy")
		logger.Debug("会话命令缓冲区已满，丢弃消息", "peer", peer.ShortString(), "message", wire.MessageName(msg.Code()))
	}
}

// Sender 返回节点的请求句柄
func (m *Manager) Sender(peer types.PeerID) (*RequestSender, bool) {
	h := m.lookup(peer)
	if h == nil {
		return nil, false
	}
	return h.sender, true
}

// Peers 返回当前活跃节点
func (m *Manager) Peers() []types.PeerID {
	m.mu.Lock()
	defer m.mu.Unlock()
	peers := make([]types.PeerID, 0, len(m.active))
	for p := range m.active {
		peers = append(peers, p)
	}
	return peers
}

// NumPending 返回待定会话数
func (m *Manager) NumPending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

func (m *Manager) lookup(peer types.PeerID) *sessionHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active[peer]
}

// Poll 非阻塞地取下一个会话事件
//
// 待定会话事件优先于活跃会话事件。
func (m *Manager) Poll() (Event, bool) {
	select {
	case ev := <-m.pendingEvents:
		return m.onPendingEvent(ev), true
	default:
	}
	select {
	case ev := <-m.activeEvents:
		if c, ok := ev.(sessionClosed); ok {
			return m.onSessionClosed(c), true
		}
		return ev, true
	default:
		return nil, false
	}
}

// Wake 有新事件时收到信号
func (m *Manager) Wake() <-chan struct{} {
	return m.wake.C()
}

func (m *Manager) onPendingEvent(ev pendingEvent) Event {
	switch e := ev.(type) {
	case dialFailed:
		m.mu.Lock()
		m.removePendingLocked(e.id)
		m.mu.Unlock()
		m.metrics.DialFailed()
		logger.Debug("出站拨号失败", "session", e.id, "addr", e.addr, "error", e.err)
		return OutgoingConnectionError{SessionID: e.id, RemoteAddr: e.addr, Peer: e.peer, Err: e.err}

	case pendingFailed:
		m.mu.Lock()
		m.removePendingLocked(e.id)
		m.mu.Unlock()
		m.metrics.PendingClosed(e.direction.String())
		logger.Debug("认证失败", "session", e.id, "direction", e.direction, "error", e.err)
		return pendingClosedEvent(e.id, e.direction, e.remoteAddr, e.peer, e.err)

	case pendingEstablished:
		return m.activate(e)
	}
	return nil
}

// activate 为认证成功的连接创建活跃会话
func (m *Manager) activate(e pendingEstablished) Event {
	peer := e.info.ID

	m.mu.Lock()
	m.removePendingLocked(e.id)
	var reject error
	switch {
	case m.closed:
		reject = ErrManagerClosed
	case m.active[peer] != nil && !m.active[peer].sender.exited():
		reject = ErrAlreadyConnected
	}
	if reject != nil {
		m.mu.Unlock()
		if msg, err := wire.Encode(wire.Disconnect{Reason: types.DisconnectAlreadyConnected}); err == nil && reject == ErrAlreadyConnected {
			_ = e.channel.Send(msg)
		}
		_ = e.channel.Close()
		m.metrics.PendingClosed(e.direction.String())
		logger.Debug("拒绝重复会话", "peer", peer.ShortString(), "session", e.id, "error", reject)
		return pendingClosedEvent(e.id, e.direction, e.remoteAddr, peer, reject)
	}

	if old := m.active[peer]; old != nil {
		// 旧会话已退出但 sessionClosed 尚未处理，新会话直接接替
		old.close()
		m.replaced[old.id] = old
		logger.Debug("接替已退出的会话", "peer", peer.ShortString(), "old", old.id, "session", e.id)
	}
	h, s := m.newSession(e.id, e.direction, e.remoteAddr, e.channel, e.info)
	m.active[peer] = h
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		s.run()
	}()

	m.metrics.SessionEstablished(e.direction.String())
	logger.Info("会话已建立",
		"peer", peer.ShortString(),
		"session", e.id,
		"direction", e.direction,
		"client", e.info.ClientID,
		"caps", e.info.Capabilities.String())

	return SessionEstablished{
		SessionID:    e.id,
		Peer:         peer,
		RemoteAddr:   e.remoteAddr,
		Direction:    e.direction,
		ClientID:     e.info.ClientID,
		Capabilities: e.info.Capabilities,
		Status:       e.info.Status,
		Sender:       h.sender,
	}
}

// newSession 构造会话及其句柄，不启动 goroutine
func (m *Manager) newSession(id types.SessionID, dir types.Direction, remoteAddr net.Addr, ch wire.Channel, info *wire.PeerInfo) (*sessionHandle, *ActiveSession) {
	commands := make(chan command, m.cfg.CommandBuffer)
	requests := make(chan peerRequest, m.cfg.RequestBuffer)
	wake := waker.New()
	done := make(chan struct{})

	sender := &RequestSender{peer: info.ID, requests: requests, wake: wake, done: done}
	h := &sessionHandle{
		id:           id,
		peer:         info.ID,
		direction:    dir,
		remoteAddr:   remoteAddr,
		capabilities: info.Capabilities,
		sender:       sender,
		wake:         wake,
		commands:     commands,
	}
	s := &ActiveSession{
		id:             id,
		peer:           info.ID,
		direction:      dir,
		remoteAddr:     remoteAddr,
		capabilities:   info.Capabilities,
		channel:        ch,
		commands:       commands,
		requests:       requests,
		sender:         sender,
		wake:           wake,
		events:         m.activeEvents,
		notify:         m.wake.Wake,
		managerDone:    m.ctx.Done(),
		inflight:       make(map[uint64]*inflightRequest),
		clock:          m.clock,
		requestTimeout: m.cfg.RequestTimeout,
		checkInterval:  m.cfg.timeoutCheckInterval(),
		metrics:        m.metrics,
		log:            logger.With("peer", info.ID.ShortString(), "session", id),
	}
	return h, s
}

func (m *Manager) onSessionClosed(c sessionClosed) Event {
	m.mu.Lock()
	h := m.active[c.peer]
	if h != nil && h.id == c.id {
		delete(m.active, c.peer)
	} else {
		h = m.replaced[c.id]
		delete(m.replaced, c.id)
	}
	m.mu.Unlock()

	m.metrics.SessionClosed(c.err)
	ev := Disconnected{SessionID: c.id, Peer: c.peer, Err: c.err}
	if h != nil {
		h.close()
		ev.RemoteAddr = h.remoteAddr
		ev.Direction = h.direction
	}
	if c.err != nil {
		logger.Info("会话异常终止", "peer", c.peer.ShortString(), "session", c.id, "error", c.err)
	} else {
		logger.Debug("会话已终止", "peer", c.peer.ShortString(), "session", c.id)
	}
	return ev
}

// removePendingLocked 移除待定会话记录，调用方持有 m.mu
func (m *Manager) removePendingLocked(id types.SessionID) {
	p, ok := m.pending[id]
	if !ok {
		return
	}
	delete(m.pending, id)
	if p.direction == types.DirInbound {
		m.pendingIncoming--
	}
	m.metrics.SessionPending(p.direction.String(), -1)
}

func pendingClosedEvent(id types.SessionID, dir types.Direction, remoteAddr net.Addr, peer types.PeerID, err error) Event {
	if dir == types.DirInbound {
		return IncomingPendingSessionClosed{SessionID: id, RemoteAddr: remoteAddr, Err: err}
	}
	return OutgoingPendingSessionClosed{SessionID: id, RemoteAddr: remoteAddr, Peer: peer, Err: err}
}

// Close 关闭全部会话并等待其退出
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	handles := make([]*sessionHandle, 0, len(m.active))
	for _, h := range m.active {
		handles = append(handles, h)
	}
	m.mu.Unlock()

	m.cancel()
	for _, h := range handles {
		h.close()
	}
	m.wg.Wait()

	// 已认证但尚未被取走的连接
	for drained := false; !drained; {
		select {
		case ev := <-m.pendingEvents:
			if e, ok := ev.(pendingEstablished); ok {
				_ = e.channel.Close()
			}
		default:
			drained = true
		}
	}
	logger.Debug("会话管理器已关闭", "sessions", len(handles))
	return nil
}
