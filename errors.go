package chainnet

import "errors"

// 公共错误定义
var (
	// ErrNotStarted 节点未启动
	ErrNotStarted = errors.New("node not started")

	// ErrAlreadyStarted 节点已启动
	ErrAlreadyStarted = errors.New("node already started")

	// ErrNodeClosed 节点已关闭
	ErrNodeClosed = errors.New("node closed")

	// ErrPeerNotFound 节点不在活跃会话中
	ErrPeerNotFound = errors.New("peer not found")

	// ErrListenDisabled 入站监听已禁用
	ErrListenDisabled = errors.New("listen disabled")
)
