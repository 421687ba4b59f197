package swarm

import "errors"

var (
	// ErrSwarmClosed Swarm 已关闭
	ErrSwarmClosed = errors.New("swarm: closed")

	// ErrNilSessions 缺少会话管理器
	ErrNilSessions = errors.New("swarm: session manager is required")

	// ErrNilState 缺少网络状态
	ErrNilState = errors.New("swarm: network state is required")
)
