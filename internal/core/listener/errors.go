package listener

import "errors"

var (
	// ErrListenerClosed 监听器已关闭
	ErrListenerClosed = errors.New("listener: closed")

	// ErrNotTCP 底层监听器不是 TCP
	ErrNotTCP = errors.New("listener: not a TCP listener")
)
