package wire

import (
	"errors"
	"fmt"

	"github.com/dep2p/go-chainnet/pkg/types"
)

var (
	// ErrStreamClosed 流已关闭
	ErrStreamClosed = errors.New("wire: stream closed")

	// ErrSendBufferFull 发送缓冲区已满
	ErrSendBufferFull = errors.New("wire: send buffer full")

	// ErrMessageTooLarge 消息超过大小上限
	ErrMessageTooLarge = errors.New("wire: message too large")

	// ErrUnknownCode 消息码不属于任何已知能力
	ErrUnknownCode = errors.New("wire: unknown message code")

	// ErrUnexpectedMessage 握手阶段收到非预期消息
	ErrUnexpectedMessage = errors.New("wire: unexpected message")
)

// DecodeError 消息体解码失败
type DecodeError struct {
	Code uint64
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("wire: decode %s: %v", MessageName(e.Code), e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// HandshakeError 协议握手失败
//
// Remote 为 true 表示对端主动发送了 Disconnect。
type HandshakeError struct {
	Reason types.DisconnectReason
	Remote bool
	Err    error
}

func (e *HandshakeError) Error() string {
	if e.Remote {
		return fmt.Sprintf("wire: handshake: remote disconnected: %s", e.Reason)
	}
	if e.Err == nil {
		return fmt.Sprintf("wire: handshake: %s", e.Reason)
	}
	return fmt.Sprintf("wire: handshake: %s: %v", e.Reason, e.Err)
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}
