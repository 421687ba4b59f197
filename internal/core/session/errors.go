package session

import "errors"

var (
	// ErrPendingSessionLimit 待定入站会话已达上限
	ErrPendingSessionLimit = errors.New("session: pending incoming session limit reached")

	// ErrManagerClosed 管理器已关闭
	ErrManagerClosed = errors.New("session: manager closed")

	// ErrSessionClosed 会话已终止
	ErrSessionClosed = errors.New("session: session closed")

	// ErrRequestTimeout 请求超时
	ErrRequestTimeout = errors.New("session: request timed out")

	// ErrRequestBufferFull 请求缓冲区已满
	ErrRequestBufferFull = errors.New("session: request buffer full")

	// ErrAlreadyConnected 已存在到该节点的活跃会话
	ErrAlreadyConnected = errors.New("session: peer already connected")
)
