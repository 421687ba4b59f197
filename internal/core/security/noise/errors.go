package noise

import "errors"

var (
	// ErrInvalidHandshake 握手失败
	ErrInvalidHandshake = errors.New("noise: invalid handshake")

	// ErrPeerIDMismatch 远端 ID 与拨号目标不一致
	ErrPeerIDMismatch = errors.New("noise: peer ID mismatch")

	// ErrNilConn 底层连接为空
	ErrNilConn = errors.New("noise: nil conn")
)
