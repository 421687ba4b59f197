package wire

import (
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dep2p/go-chainnet/internal/util/waker"
	"github.com/dep2p/go-chainnet/pkg/lib/log"
)

var logger = log.Logger("core/wire")

// flushTimeout 关闭时写出剩余消息的时限
const flushTimeout = 2 * time.Second

// Channel 协议通道：会话眼中的不透明双向消息通道
//
// 所有方法都不阻塞。没有消息可读且无法发送时，调用方应等待 Wake。
type Channel interface {
	// SendReady 报告发送缓冲区是否还有容量
	SendReady() bool

	// Send 入队一条已编码的消息；缓冲区满返回 ErrSendBufferFull
	Send(msg Msg) error

	// TryRecv 取下一条已到达的消息
	//
	// ok 为 false 且 err 为 nil 表示暂无消息；
	// 对端关闭返回 ErrStreamClosed，读失败返回底层错误。
	TryRecv() (msg Msg, ok bool, err error)

	// Wake 在有新消息到达、发送容量释放或通道关闭时收到信号
	Wake() <-chan struct{}

	// Close 写出已入队的消息后关闭连接，可重复调用
	Close() error
}

// Stream 基于 net.Conn 的 Channel 实现
type Stream struct {
	conn net.Conn
	rw   *frameRW

	out  chan Msg
	in   chan Msg
	wake *waker.Waker

	readErr   atomic.Pointer[error]
	closing   chan struct{}
	closeOnce sync.Once
	done      chan struct{}
}

var _ Channel = (*Stream)(nil)

// newStream 接管已完成握手的连接
//
// rw 必须是握手时使用的同一个 frameRW，避免丢失已缓冲的字节。
func newStream(conn net.Conn, rw *frameRW, sendBuffer, recvBuffer int) *Stream {
	s := &Stream{
		conn:    conn,
		rw:      rw,
		out:     make(chan Msg, sendBuffer),
		in:      make(chan Msg, recvBuffer),
		wake:    waker.New(),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.readLoop()
	go s.writeLoop()
	return s
}

// SendReady 实现 Channel
func (s *Stream) SendReady() bool {
	select {
	case <-s.closing:
		return false
	default:
	}
	return len(s.out) < cap(s.out)
}

// Send 实现 Channel
func (s *Stream) Send(msg Msg) error {
	if msg.Size() > s.rw.maxSize {
		return ErrMessageTooLarge
	}
	select {
	case <-s.closing:
		return ErrStreamClosed
	default:
	}
	select {
	case s.out <- msg:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// TryRecv 实现 Channel
func (s *Stream) TryRecv() (Msg, bool, error) {
	select {
	case msg, ok := <-s.in:
		if !ok {
			return Msg{}, false, s.recvErr()
		}
		return msg, true, nil
	default:
		return Msg{}, false, nil
	}
}

func (s *Stream) recvErr() error {
	if p := s.readErr.Load(); p != nil {
		return *p
	}
	return ErrStreamClosed
}

// Wake 实现 Channel
func (s *Stream) Wake() <-chan struct{} {
	return s.wake.C()
}

// Close 实现 Channel
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		_ = s.conn.SetWriteDeadline(time.Now().Add(flushTimeout))
		close(s.closing)
	})
	return nil
}

// Done 在读写循环都退出后关闭
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// RemoteAddr 返回对端地址
func (s *Stream) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

func (s *Stream) readLoop() {
	defer func() {
		close(s.in)
		s.wake.Wake()
	}()

	for {
		msg, err := s.rw.ReadMsg()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
				err = ErrStreamClosed
			}
			s.readErr.Store(&err)
			return
		}
		select {
		case s.in <- msg:
			s.wake.Wake()
		case <-s.closing:
			return
		}
	}
}

func (s *Stream) writeLoop() {
	defer close(s.done)
	defer s.conn.Close()

	for {
		select {
		case msg := <-s.out:
			if err := s.rw.WriteMsg(msg); err != nil {
				logger.Debug("写入消息失败", "remote", s.conn.RemoteAddr(), "code", MessageName(msg.Code), "error", err)
				s.Close()
				return
			}
			s.wake.Wake()
		case <-s.closing:
			s.flush()
			return
		}
	}
}

// flush 写出关闭前已入队的消息
func (s *Stream) flush() {
	for {
		select {
		case msg := <-s.out:
			if err := s.rw.WriteMsg(msg); err != nil {
				return
			}
		default:
			return
		}
	}
}
