// Package waker 提供单槽唤醒信号
//
// 生产者在入队后调用 Wake()，消费者在所有输入都为空时阻塞在 C() 上。
// 信号只有一个槽位，多次 Wake() 会合并为一次，不会丢失唤醒：
// 消费者被唤醒后总会重新检查全部输入。
package waker

// Waker 单槽唤醒信号
type Waker struct {
	ch chan struct{}
}

// New 创建 Waker
func New() *Waker {
	return &Waker{ch: make(chan struct{}, 1)}
}

// Wake 发出唤醒信号（非阻塞）
func (w *Waker) Wake() {
	select {
	case w.ch <- struct{}{}:
	default:
	}
}

// C 返回唤醒通道
func (w *Waker) C() <-chan struct{} {
	return w.ch
}
