package swarm

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/dep2p/go-chainnet/internal/core/listener"
	"github.com/dep2p/go-chainnet/internal/core/metrics"
	"github.com/dep2p/go-chainnet/internal/core/session"
	"github.com/dep2p/go-chainnet/internal/core/state"
	"github.com/dep2p/go-chainnet/internal/core/wire"
	"github.com/dep2p/go-chainnet/internal/util/waker"
	"github.com/dep2p/go-chainnet/pkg/lib/log"
	"github.com/dep2p/go-chainnet/pkg/types"
)

var logger = log.Logger("core/swarm")

// Sessions 会话管理器
type Sessions interface {
	DialOutbound(addr string, peer types.PeerID) types.SessionID
	OnIncoming(conn net.Conn, remoteAddr net.Addr) (types.SessionID, error)
	Disconnect(peer types.PeerID, reason types.DisconnectReason)
	SendMessage(peer types.PeerID, msg wire.Message)
	Poll() (session.Event, bool)
	Wake() <-chan struct{}
}

// State 网络状态
type State interface {
	Poll() (state.Action, bool)
	Wake() <-chan struct{}
	OnSessionActivated(info state.SessionInfo) error
	OnSessionClosed(peer types.PeerID, id types.SessionID)
	OnDialFailed(peer types.PeerID)
	OnDialCanceled(peer types.PeerID)
	OnBlockSeen(peer types.PeerID, hash common.Hash)
}

// Listener 连接监听器
type Listener interface {
	Poll() (listener.Event, bool)
	Wake() <-chan struct{}
}

var (
	_ Sessions = (*session.Manager)(nil)
	_ State    = (*state.NetworkState)(nil)
	_ Listener = (*listener.Listener)(nil)
)

// Option Swarm 选项
type Option func(*Swarm)

// WithListener 设置入站监听器，未设置时只做出站连接
func WithListener(l Listener) Option {
	return func(s *Swarm) { s.listener = l }
}

// WithMetrics 设置指标
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Swarm) { s.metrics = m }
}

// Swarm 事件协调器
//
// Next 只应由一个 goroutine 调用；其余方法并发安全。
type Swarm struct {
	sessions Sessions
	state    State
	listener Listener
	metrics  *metrics.Metrics

	mu     sync.Mutex
	queued []Event
	wake   *waker.Waker

	// 以下字段只由调用 Next 的 goroutine 访问
	listenerDone bool
	// rejected 未通过准入、等待关闭的会话
	rejected map[types.PeerID]types.SessionID

	closed    chan struct{}
	closeOnce sync.Once
}

// New 创建 Swarm
func New(sessions Sessions, st State, opts ...Option) (*Swarm, error) {
	if sessions == nil {
		return nil, ErrNilSessions
	}
	if st == nil {
		return nil, ErrNilState
	}
	s := &Swarm{
		sessions: sessions,
		state:    st,
		wake:     waker.New(),
		rejected: make(map[types.PeerID]types.SessionID),
		closed:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Next 阻塞直到下一个事件、ctx 取消或 Swarm 关闭
func (s *Swarm) Next(ctx context.Context) (Event, error) {
	for {
		select {
		case <-s.closed:
			return nil, ErrSwarmClosed
		default:
		}

		if ev, ok := s.poll(); ok {
			s.metrics.SwarmEvent(ev.Name())
			return ev, nil
		}

		var listenerWake <-chan struct{}
		if s.listener != nil && !s.listenerDone {
			listenerWake = s.listener.Wake()
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.closed:
			return nil, ErrSwarmClosed
		case <-s.wake.C():
		case <-s.state.Wake():
		case <-s.sessions.Wake():
		case <-listenerWake:
		}
	}
}

// poll 执行一轮调度，没有可上报的事件时返回 false
func (s *Swarm) poll() (Event, bool) {
	for {
		s.runActions()

		if ev, ok := s.popQueued(); ok {
			return ev, true
		}

		if sev, ok := s.sessions.Poll(); ok {
			if ev, ok := s.translate(sev); ok {
				return ev, true
			}
			continue
		}

		if s.listener == nil || s.listenerDone {
			return nil, false
		}
		lev, ok := s.listener.Poll()
		if !ok {
			return nil, false
		}
		if ev, ok := s.onListenerEvent(lev); ok {
			return ev, true
		}
	}
}

// runActions 取完网络状态的全部动作并执行
func (s *Swarm) runActions() {
	for {
		a, ok := s.state.Poll()
		if !ok {
			return
		}
		switch a := a.(type) {
		case state.Connect:
			s.DialOutbound(a.Addr, a.Peer)
		case state.Disconnect:
			reason := types.DisconnectRequested
			if a.Reason != nil {
				reason = *a.Reason
			}
			s.sessions.Disconnect(a.Peer, reason)
		case state.NewBlock:
			s.sessions.SendMessage(a.Peer, a.Block)
		case state.NewBlockHashes:
			s.sessions.SendMessage(a.Peer, a.Hashes)
		}
	}
}

func (s *Swarm) popQueued() (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queued) == 0 {
		return nil, false
	}
	ev := s.queued[0]
	s.queued[0] = nil
	s.queued = s.queued[1:]
	return ev, true
}

// translate 把会话事件转换为 swarm 事件，返回 false 表示事件被吞掉
func (s *Swarm) translate(ev session.Event) (Event, bool) {
	switch e := ev.(type) {
	case session.SessionEstablished:
		err := s.state.OnSessionActivated(state.SessionInfo{
			SessionID:    e.SessionID,
			Peer:         e.Peer,
			Direction:    e.Direction,
			RemoteAddr:   e.RemoteAddr,
			ClientID:     e.ClientID,
			Capabilities: e.Capabilities,
			Status:       e.Status,
			Sender:       e.Sender,
		})
		if err != nil {
			reason := types.DisconnectRequested
			if errors.Is(err, state.ErrAtCapacity) {
				reason = types.DisconnectTooManyPeers
			}
			s.rejected[e.Peer] = e.SessionID
			s.sessions.Disconnect(e.Peer, reason)
			s.metrics.AdmissionRejected()
			logger.Debug("拒绝会话", "peer", e.Peer.ShortString(), "session", e.SessionID, "error", err)
			return nil, false
		}
		return SessionEstablished{
			SessionID:    e.SessionID,
			Peer:         e.Peer,
			RemoteAddr:   e.RemoteAddr,
			Direction:    e.Direction,
			ClientID:     e.ClientID,
			Capabilities: e.Capabilities,
			Status:       e.Status,
			Sender:       e.Sender,
		}, true

	case session.Disconnected:
		if id, ok := s.rejected[e.Peer]; ok && id == e.SessionID {
			delete(s.rejected, e.Peer)
			return nil, false
		}
		s.state.OnSessionClosed(e.Peer, e.SessionID)
		return SessionClosed{
			SessionID:  e.SessionID,
			Peer:       e.Peer,
			RemoteAddr: e.RemoteAddr,
			Direction:  e.Direction,
			Err:        e.Err,
		}, true

	case session.ValidMessage:
		if _, ok := s.rejected[e.Peer]; ok {
			return nil, false
		}
		s.observeBlocks(e.Peer, e.Message)
		return ValidMessage{Peer: e.Peer, Message: e.Message}, true

	case session.InvalidMessage:
		if _, ok := s.rejected[e.Peer]; ok {
			return nil, false
		}
		return InvalidCapabilityMessage{
			Peer:         e.Peer,
			Capabilities: e.Capabilities,
			Code:         e.Code,
			Payload:      e.Payload,
		}, true

	case session.IncomingPendingSessionClosed:
		return IncomingPendingSessionClosed{SessionID: e.SessionID, RemoteAddr: e.RemoteAddr, Err: e.Err}, true

	case session.OutgoingPendingSessionClosed:
		if errors.Is(e.Err, session.ErrAlreadyConnected) || errors.Is(e.Err, session.ErrManagerClosed) {
			s.state.OnDialCanceled(e.Peer)
		} else {
			s.state.OnDialFailed(e.Peer)
		}
		return OutgoingPendingSessionClosed{SessionID: e.SessionID, RemoteAddr: e.RemoteAddr, Peer: e.Peer, Err: e.Err}, true

	case session.OutgoingConnectionError:
		s.state.OnDialFailed(e.Peer)
		return OutgoingConnectionError{SessionID: e.SessionID, RemoteAddr: e.RemoteAddr, Peer: e.Peer, Err: e.Err}, true
	}
	return nil, false
}

// observeBlocks 记录节点公告过的区块
func (s *Swarm) observeBlocks(peer types.PeerID, msg wire.Message) {
	switch m := msg.(type) {
	case *wire.NewBlock:
		s.state.OnBlockSeen(peer, m.Hash)
	case *wire.NewBlockHashes:
		for _, a := range *m {
			s.state.OnBlockSeen(peer, a.Hash)
		}
	}
}

func (s *Swarm) onListenerEvent(ev listener.Event) (Event, bool) {
	switch e := ev.(type) {
	case listener.Incoming:
		id, err := s.sessions.OnIncoming(e.Conn, e.RemoteAddr)
		if err != nil {
			s.metrics.AdmissionRejected()
			logger.Debug("拒绝入站连接", "remote", e.RemoteAddr, "error", err)
			return nil, false
		}
		s.metrics.ListenerAccepted()
		return IncomingTCPConnection{SessionID: id, RemoteAddr: e.RemoteAddr}, true

	case listener.Error:
		s.listenerDone = true
		logger.Warn("监听器失败", "error", e.Err)
		return TCPListenerError{Err: e.Err}, true

	case listener.Closed:
		s.listenerDone = true
		logger.Info("监听器已关闭")
		return TCPListenerClosed{}, true
	}
	return nil, false
}

// DialOutbound 发起出站连接，OutgoingTCPConnection 在下一轮调度上报
func (s *Swarm) DialOutbound(addr string, peer types.PeerID) types.SessionID {
	id := s.sessions.DialOutbound(addr, peer)
	s.mu.Lock()
	s.queued = append(s.queued, OutgoingTCPConnection{SessionID: id, Addr: addr, Peer: peer})
	s.mu.Unlock()
	s.wake.Wake()
	return id
}

// SendMessage 尽力向节点发送消息
func (s *Swarm) SendMessage(peer types.PeerID, msg wire.Message) {
	s.sessions.SendMessage(peer, msg)
}

// DisconnectPeer 尽力断开节点
func (s *Swarm) DisconnectPeer(peer types.PeerID, reason types.DisconnectReason) {
	s.sessions.Disconnect(peer, reason)
}

// Close 关闭 Swarm，阻塞中的 Next 返回 ErrSwarmClosed
//
// 会话管理器与监听器由各自的所有者关闭。
func (s *Swarm) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
	return nil
}
