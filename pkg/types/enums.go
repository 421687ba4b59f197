package types

import "fmt"

// ============================================================================
//                              Direction - 连接方向
// ============================================================================

// Direction 连接方向
type Direction int

const (
	// DirUnknown 未知方向
	DirUnknown Direction = iota
	// DirInbound 入站连接
	DirInbound
	// DirOutbound 出站连接
	DirOutbound
)

// String 返回方向的字符串表示
func (d Direction) String() string {
	switch d {
	case DirInbound:
		return "inbound"
	case DirOutbound:
		return "outbound"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              DisconnectReason - 断开原因
// ============================================================================

// DisconnectReason 断开原因
//
// 数值与 devp2p Disconnect 消息中的原因码一致，会原样编码到线上。
type DisconnectReason uint8

const (
	// DisconnectRequested 本地或对端主动请求断开
	DisconnectRequested DisconnectReason = 0x00
	// DisconnectTCPError TCP 子系统错误
	DisconnectTCPError DisconnectReason = 0x01
	// DisconnectProtocolError 协议违规
	DisconnectProtocolError DisconnectReason = 0x02
	// DisconnectUselessPeer 无用节点
	DisconnectUselessPeer DisconnectReason = 0x03
	// DisconnectTooManyPeers 节点数已满
	DisconnectTooManyPeers DisconnectReason = 0x04
	// DisconnectAlreadyConnected 已存在到该节点的会话
	DisconnectAlreadyConnected DisconnectReason = 0x05
	// DisconnectIncompatibleVersion 协议版本不兼容
	DisconnectIncompatibleVersion DisconnectReason = 0x06
	// DisconnectInvalidIdentity 身份无效
	DisconnectInvalidIdentity DisconnectReason = 0x07
	// DisconnectClientQuitting 客户端退出
	DisconnectClientQuitting DisconnectReason = 0x08
	// DisconnectUnexpectedIdentity 身份与预期不符
	DisconnectUnexpectedIdentity DisconnectReason = 0x09
	// DisconnectConnectedToSelf 连接到了自己
	DisconnectConnectedToSelf DisconnectReason = 0x0a
	// DisconnectPingTimeout 心跳超时
	DisconnectPingTimeout DisconnectReason = 0x0b
	// DisconnectSubprotocolError 子协议错误
	DisconnectSubprotocolError DisconnectReason = 0x10
)

var disconnectReasonNames = map[DisconnectReason]string{
	DisconnectRequested:           "disconnect requested",
	DisconnectTCPError:            "network error",
	DisconnectProtocolError:       "breach of protocol",
	DisconnectUselessPeer:         "useless peer",
	DisconnectTooManyPeers:        "too many peers",
	DisconnectAlreadyConnected:    "already connected",
	DisconnectIncompatibleVersion: "incompatible p2p protocol version",
	DisconnectInvalidIdentity:     "invalid node identity",
	DisconnectClientQuitting:      "client quitting",
	DisconnectUnexpectedIdentity:  "unexpected identity",
	DisconnectConnectedToSelf:     "connected to self",
	DisconnectPingTimeout:         "read timeout",
	DisconnectSubprotocolError:    "subprotocol error",
}

// String 返回断开原因的可读描述
func (r DisconnectReason) String() string {
	if name, ok := disconnectReasonNames[r]; ok {
		return name
	}
	return fmt.Sprintf("unknown disconnect reason %d", uint8(r))
}

// Error 使 DisconnectReason 可以作为错误返回
func (r DisconnectReason) Error() string {
	return r.String()
}

// Valid 检查是否为已知的断开原因
func (r DisconnectReason) Valid() bool {
	_, ok := disconnectReasonNames[r]
	return ok
}

// ReasonPtr 返回断开原因的指针，便于构造可选原因
func ReasonPtr(r DisconnectReason) *DisconnectReason {
	return &r
}
