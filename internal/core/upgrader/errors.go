package upgrader

import "errors"

var (
	// ErrNoPeerID 出站连接缺少目标节点 ID
	ErrNoPeerID = errors.New("upgrader: outbound connection requires remote peer ID")

	// ErrNilTransport 未配置安全传输
	ErrNilTransport = errors.New("upgrader: security transport is nil")
)
