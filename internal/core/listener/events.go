package listener

import "net"

// Event 监听器事件
type Event interface {
	listenerEvent()
}

// Incoming 新的入站连接
type Incoming struct {
	Conn       net.Conn
	RemoteAddr net.Addr
}

// Error 监听器失败
type Error struct {
	Err error
}

// Closed 监听器已关闭
type Closed struct{}

func (Incoming) listenerEvent() {}
func (Error) listenerEvent()    {}
func (Closed) listenerEvent()   {}
