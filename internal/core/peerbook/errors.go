package peerbook

import "errors"

var (
	// ErrInvalidRecord 节点 ID 或地址为空
	ErrInvalidRecord = errors.New("peerbook: invalid record")

	// ErrClosed 节点簿已关闭
	ErrClosed = errors.New("peerbook: closed")
)
