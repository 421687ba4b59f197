package session

import (
	"context"
	"net"
	"sync"

	"github.com/dep2p/go-chainnet/internal/core/wire"
	"github.com/dep2p/go-chainnet/internal/util/waker"
	"github.com/dep2p/go-chainnet/pkg/types"
)

// MockChannel 内存中的协议通道，记录收发顺序
type MockChannel struct {
	mu        sync.Mutex
	sendReady bool
	sent      []wire.Msg
	inbox     []wire.Msg
	recvErr   error
	closed    bool
	trace     []string
	conn      net.Conn
	wake      *waker.Waker
}

var _ wire.Channel = (*MockChannel)(nil)

// NewMockChannel 创建可发送的模拟通道
func NewMockChannel() *MockChannel {
	return &MockChannel{sendReady: true, wake: waker.New()}
}

// SendReady 实现 wire.Channel
func (c *MockChannel) SendReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendReady && !c.closed
}

// Send 实现 wire.Channel
func (c *MockChannel) Send(msg wire.Msg) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return wire.ErrStreamClosed
	}
	if !c.sendReady {
		return wire.ErrSendBufferFull
	}
	c.sent = append(c.sent, msg)
	c.trace = append(c.trace, "send:"+wire.MessageName(msg.Code))
	return nil
}

// TryRecv 实现 wire.Channel
func (c *MockChannel) TryRecv() (wire.Msg, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.inbox) > 0 {
		msg := c.inbox[0]
		c.inbox = c.inbox[1:]
		c.trace = append(c.trace, "recv:"+wire.MessageName(msg.Code))
		return msg, true, nil
	}
	if c.recvErr != nil {
		return wire.Msg{}, false, c.recvErr
	}
	return wire.Msg{}, false, nil
}

// Wake 实现 wire.Channel
func (c *MockChannel) Wake() <-chan struct{} {
	return c.wake.C()
}

// Close 实现 wire.Channel
func (c *MockChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.conn != nil {
		_ = c.conn.Close()
	}
	return nil
}

// Deliver 模拟对端发来一条消息
func (c *MockChannel) Deliver(msg wire.Msg) {
	c.mu.Lock()
	c.inbox = append(c.inbox, msg)
	c.mu.Unlock()
	c.wake.Wake()
}

// Fail 模拟读端错误，已入队的消息仍可读出
func (c *MockChannel) Fail(err error) {
	c.mu.Lock()
	c.recvErr = err
	c.mu.Unlock()
	c.wake.Wake()
}

// SetSendReady 设置发送容量
func (c *MockChannel) SetSendReady(ready bool) {
	c.mu.Lock()
	c.sendReady = ready
	c.mu.Unlock()
	c.wake.Wake()
}

// Sent 返回已发送消息的副本
func (c *MockChannel) Sent() []wire.Msg {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]wire.Msg(nil), c.sent...)
}

// Trace 返回收发顺序
func (c *MockChannel) Trace() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.trace...)
}

// IsClosed 返回通道是否已关闭
func (c *MockChannel) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// MockUpgrader 跳过认证的升级器
//
// 入站连接的对端 ID 取自 Peers（按顺序消费），出站取拨号目标。
type MockUpgrader struct {
	// Caps 对端宣告的能力，为空时为 eth/68
	Caps *types.Capabilities

	// Err 非空时升级失败
	Err error

	// Hold 非空时升级阻塞直到其关闭
	Hold chan struct{}

	mu       sync.Mutex
	peers    []types.PeerID
	channels []*MockChannel
}

// AddInboundPeer 追加下一个入站连接的对端 ID
func (u *MockUpgrader) AddInboundPeer(peer types.PeerID) {
	u.mu.Lock()
	u.peers = append(u.peers, peer)
	u.mu.Unlock()
}

// Channels 返回已创建的通道
func (u *MockUpgrader) Channels() []*MockChannel {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]*MockChannel(nil), u.channels...)
}

// Upgrade 实现 Upgrader
func (u *MockUpgrader) Upgrade(ctx context.Context, conn net.Conn, dir types.Direction, remote types.PeerID) (wire.Channel, *wire.PeerInfo, error) {
	if u.Hold != nil {
		select {
		case <-u.Hold:
		case <-ctx.Done():
			_ = conn.Close()
			return nil, nil, ctx.Err()
		}
	}
	if u.Err != nil {
		_ = conn.Close()
		return nil, nil, u.Err
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	peer := remote
	if dir == types.DirInbound && len(u.peers) > 0 {
		peer = u.peers[0]
		u.peers = u.peers[1:]
	}
	caps := u.Caps
	if caps == nil {
		caps = types.NewCapabilities(types.Capability{Name: wire.ProtocolEth, Version: 68})
	}
	ch := NewMockChannel()
	ch.conn = conn
	u.channels = append(u.channels, ch)
	return ch, &wire.PeerInfo{ID: peer, ClientID: "mock", Capabilities: caps, EthVersion: 68}, nil
}
