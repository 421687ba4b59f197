package session

import (
	"context"
	"net"

	"github.com/dep2p/go-chainnet/pkg/types"
)

// pendingSession 认证完成前的会话记录
type pendingSession struct {
	id         types.SessionID
	direction  types.Direction
	remoteAddr string
	peer       types.PeerID
}

// runOutgoing 出站待定会话：TCP 拨号，然后认证
func (m *Manager) runOutgoing(id types.SessionID, addr string, peer types.PeerID) {
	defer m.wg.Done()

	ctx, cancel := context.WithTimeout(m.ctx, m.cfg.DialTimeout)
	conn, err := m.dialer.DialContext(ctx, "tcp", addr)
	cancel()
	if err != nil {
		m.sendPending(dialFailed{id: id, addr: addr, peer: peer, err: err})
		return
	}
	m.authenticate(id, types.DirOutbound, conn, conn.RemoteAddr(), peer)
}

// runIncoming 入站待定会话：认证
func (m *Manager) runIncoming(id types.SessionID, conn net.Conn, remoteAddr net.Addr) {
	defer m.wg.Done()
	m.authenticate(id, types.DirInbound, conn, remoteAddr, types.PeerID{})
}

// authenticate 升级连接并把结果交给管理器；Upgrader 负责在失败时关闭连接
func (m *Manager) authenticate(id types.SessionID, dir types.Direction, conn net.Conn, remoteAddr net.Addr, peer types.PeerID) {
	ch, info, err := m.upgrader.Upgrade(m.ctx, conn, dir, peer)
	if err != nil {
		m.sendPending(pendingFailed{id: id, direction: dir, remoteAddr: remoteAddr, peer: peer, err: err})
		return
	}
	if !m.sendPending(pendingEstablished{id: id, direction: dir, remoteAddr: remoteAddr, channel: ch, info: info}) {
		_ = ch.Close()
	}
}

// sendPending 投递待定会话事件，管理器关闭时返回 false
func (m *Manager) sendPending(ev pendingEvent) bool {
	select {
	case m.pendingEvents <- ev:
		m.wake.Wake()
		return true
	case <-m.ctx.Done():
		return false
	}
}
