package session

import (
	"net"

	"github.com/dep2p/go-chainnet/internal/core/wire"
	"github.com/dep2p/go-chainnet/pkg/types"
)

// Event 会话事件
type Event interface {
	sessionEvent()
}

// SessionEstablished 会话完成认证并已激活
type SessionEstablished struct {
	SessionID    types.SessionID
	Peer         types.PeerID
	RemoteAddr   net.Addr
	Direction    types.Direction
	ClientID     string
	Capabilities *types.Capabilities
	Status       *wire.Status

	// Sender 向该节点发送请求的句柄
	Sender *RequestSender
}

// ValidMessage 收到对端宣告能力范围内的消息
//
// 应答消息在交付给等待中的请求方之后同样以此事件上报。
type ValidMessage struct {
	Peer    types.PeerID
	Message wire.Message
}

// InvalidMessage 收到对端未宣告能力的消息，会话保持存活
type InvalidMessage struct {
	Peer         types.PeerID
	Capabilities *types.Capabilities
	Code         uint64
	Payload      []byte
}

// IncomingPendingSessionClosed 入站待定会话在认证完成前关闭
type IncomingPendingSessionClosed struct {
	SessionID  types.SessionID
	RemoteAddr net.Addr
	Err        error
}

// OutgoingPendingSessionClosed 出站待定会话在认证完成前关闭
type OutgoingPendingSessionClosed struct {
	SessionID  types.SessionID
	RemoteAddr net.Addr
	Peer       types.PeerID
	Err        error
}

// Disconnected 活跃会话已终止
//
// Err 为 nil 表示正常终止（对端关闭、本地断开或管理器关闭）。
type Disconnected struct {
	SessionID  types.SessionID
	Peer       types.PeerID
	RemoteAddr net.Addr
	Direction  types.Direction
	Err        error
}

// OutgoingConnectionError 出站 TCP 拨号失败
type OutgoingConnectionError struct {
	SessionID  types.SessionID
	RemoteAddr string
	Peer       types.PeerID
	Err        error
}

func (SessionEstablished) sessionEvent()           {}
func (ValidMessage) sessionEvent()                 {}
func (InvalidMessage) sessionEvent()               {}
func (IncomingPendingSessionClosed) sessionEvent() {}
func (OutgoingPendingSessionClosed) sessionEvent() {}
func (Disconnected) sessionEvent()                 {}
func (OutgoingConnectionError) sessionEvent()      {}

// sessionClosed 活跃会话退出时发给管理器的内部通知，
// 管理器移除会话后转换为 Disconnected
type sessionClosed struct {
	id   types.SessionID
	peer types.PeerID
	err  error
}

func (sessionClosed) sessionEvent() {}

// pendingEvent 待定会话发给管理器的内部事件
type pendingEvent interface {
	pendingEvent()
}

// pendingEstablished 认证成功
type pendingEstablished struct {
	id         types.SessionID
	direction  types.Direction
	remoteAddr net.Addr
	channel    wire.Channel
	info       *wire.PeerInfo
}

// pendingFailed 认证失败
type pendingFailed struct {
	id         types.SessionID
	direction  types.Direction
	remoteAddr net.Addr
	peer       types.PeerID
	err        error
}

// dialFailed TCP 拨号失败
type dialFailed struct {
	id   types.SessionID
	addr string
	peer types.PeerID
	err  error
}

func (pendingEstablished) pendingEvent() {}
func (pendingFailed) pendingEvent()      {}
func (dialFailed) pendingEvent()         {}
