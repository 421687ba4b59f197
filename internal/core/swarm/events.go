package swarm

import (
	"net"

	"github.com/dep2p/go-chainnet/internal/core/session"
	"github.com/dep2p/go-chainnet/internal/core/wire"
	"github.com/dep2p/go-chainnet/pkg/types"
)

// Event swarm 事件
type Event interface {
	swarmEvent()
	// Name 事件名，用于日志与指标
	Name() string
}

// ValidMessage 收到节点能力范围内的消息
type ValidMessage struct {
	Peer    types.PeerID
	Message wire.Message
}

// InvalidCapabilityMessage 收到节点未宣告能力的消息
type InvalidCapabilityMessage struct {
	Peer         types.PeerID
	Capabilities *types.Capabilities
	Code         uint64
	Payload      []byte
}

// TCPListenerClosed 监听器已关闭，终止事件
type TCPListenerClosed struct{}

// TCPListenerError 监听器失败，终止事件
type TCPListenerError struct {
	Err error
}

// IncomingTCPConnection 入站连接已被准入，正在认证
type IncomingTCPConnection struct {
	SessionID  types.SessionID
	RemoteAddr net.Addr
}

// OutgoingTCPConnection 出站拨号已发起
type OutgoingTCPConnection struct {
	SessionID types.SessionID
	Addr      string
	Peer      types.PeerID
}

// SessionEstablished 会话已认证并通过准入
type SessionEstablished struct {
	SessionID    types.SessionID
	Peer         types.PeerID
	RemoteAddr   net.Addr
	Direction    types.Direction
	ClientID     string
	Capabilities *types.Capabilities
	Status       *wire.Status
	Sender       *session.RequestSender
}

// SessionClosed 活跃会话已终止，Err 为 nil 表示正常终止
type SessionClosed struct {
	SessionID  types.SessionID
	Peer       types.PeerID
	RemoteAddr net.Addr
	Direction  types.Direction
	Err        error
}

// IncomingPendingSessionClosed 入站连接认证失败
type IncomingPendingSessionClosed struct {
	SessionID  types.SessionID
	RemoteAddr net.Addr
	Err        error
}

// OutgoingPendingSessionClosed 出站连接认证失败
type OutgoingPendingSessionClosed struct {
	SessionID  types.SessionID
	RemoteAddr net.Addr
	Peer       types.PeerID
	Err        error
}

// OutgoingConnectionError 出站 TCP 拨号失败
type OutgoingConnectionError struct {
	SessionID  types.SessionID
	RemoteAddr string
	Peer       types.PeerID
	Err        error
}

func (ValidMessage) swarmEvent()                 {}
func (InvalidCapabilityMessage) swarmEvent()     {}
func (TCPListenerClosed) swarmEvent()            {}
func (TCPListenerError) swarmEvent()             {}
func (IncomingTCPConnection) swarmEvent()        {}
func (OutgoingTCPConnection) swarmEvent()        {}
func (SessionEstablished) swarmEvent()           {}
func (SessionClosed) swarmEvent()                {}
func (IncomingPendingSessionClosed) swarmEvent() {}
func (OutgoingPendingSessionClosed) swarmEvent() {}
func (OutgoingConnectionError) swarmEvent()      {}

func (ValidMessage) Name() string                 { return "valid_message" }
func (InvalidCapabilityMessage) Name() string     { return "invalid_capability_message" }
func (TCPListenerClosed) Name() string            { return "tcp_listener_closed" }
func (TCPListenerError) Name() string             { return "tcp_listener_error" }
func (IncomingTCPConnection) Name() string        { return "incoming_tcp_connection" }
func (OutgoingTCPConnection) Name() string        { return "outgoing_tcp_connection" }
func (SessionEstablished) Name() string           { return "session_established" }
func (SessionClosed) Name() string                { return "session_closed" }
func (IncomingPendingSessionClosed) Name() string { return "incoming_pending_session_closed" }
func (OutgoingPendingSessionClosed) Name() string { return "outgoing_pending_session_closed" }
func (OutgoingConnectionError) Name() string      { return "outgoing_connection_error" }
