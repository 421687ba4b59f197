package listener

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/dep2p/go-chainnet/internal/util/waker"
	"github.com/dep2p/go-chainnet/pkg/lib/log"
)

var logger = log.Logger("core/listener")

// 临时错误的退避区间
const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// Listener TCP 入站监听器
type Listener struct {
	ln      net.Listener
	limiter *rate.Limiter

	events chan Event
	wake   *waker.Waker

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool

	// terminal 由 accept 循环退出前写入，Poll 在队列排空后投递一次
	terminal  atomic.Pointer[Event]
	delivered atomic.Bool
	done      chan struct{}
}

// Listen 在 cfg.Addr 上开始监听
func Listen(cfg Config) (*Listener, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp", cfg.Addr)
	if err != nil {
		cancel()
		return nil, err
	}
	if _, ok := l.(*net.TCPListener); !ok {
		cancel()
		_ = l.Close()
		return nil, ErrNotTCP
	}

	ln := serve(ctx, cancel, l, cfg)
	logger.Info("开始监听入站连接", "addr", l.Addr().String())
	return ln, nil
}

// serve 在已打开的 net.Listener 上启动 accept 循环
func serve(ctx context.Context, cancel context.CancelFunc, l net.Listener, cfg Config) *Listener {
	ln := &Listener{
		ln:     l,
		events: make(chan Event, cfg.EventBuffer),
		wake:   waker.New(),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	if cfg.AcceptRate > 0 {
		ln.limiter = rate.NewLimiter(rate.Limit(cfg.AcceptRate), cfg.AcceptBurst)
	}
	go ln.acceptLoop()
	return ln
}

// Addr 返回实际监听地址
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Poll 非阻塞地取下一个事件
func (l *Listener) Poll() (Event, bool) {
	select {
	case ev := <-l.events:
		return ev, true
	default:
	}

	select {
	case <-l.done:
	default:
		return nil, false
	}
	// 循环已退出：先排空剩余事件，再投递终止事件
	select {
	case ev := <-l.events:
		return ev, true
	default:
	}
	if p := l.terminal.Load(); p != nil && l.delivered.CompareAndSwap(false, true) {
		return *p, true
	}
	return nil, false
}

// Wake 有新事件时收到信号
func (l *Listener) Wake() <-chan struct{} {
	return l.wake.C()
}

// Close 关闭监听器，之后会投递 Closed 事件
//
// 尚未被 Poll 取走的入站连接随之关闭。
func (l *Listener) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	l.cancel()
	err := l.ln.Close()
	<-l.done
	for {
		select {
		case ev := <-l.events:
			if in, ok := ev.(Incoming); ok {
				_ = in.Conn.Close()
			}
		default:
			return err
		}
	}
}

// IsClosed 检查监听器是否已关闭
func (l *Listener) IsClosed() bool {
	return l.closed.Load()
}

func (l *Listener) acceptLoop() {
	var terminal Event = Closed{}
	defer func() {
		l.terminal.Store(&terminal)
		close(l.done)
		l.wake.Wake()
	}()

	var backoff time.Duration
	for {
		if l.limiter != nil {
			if err := l.limiter.Wait(l.ctx); err != nil {
				return
			}
		}

		conn, err := l.ln.Accept()
		if err != nil {
			if l.closed.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			if isTemporary(err) {
				backoff = nextBackoff(backoff)
				logger.Debug("accept 临时错误，稍后重试", "error", err, "backoff", backoff)
				select {
				case <-time.After(backoff):
					continue
				case <-l.ctx.Done():
					return
				}
			}
			logger.Warn("监听器失败", "addr", l.ln.Addr().String(), "error", err)
			terminal = Error{Err: err}
			return
		}
		backoff = 0

		if tcpConn, ok := conn.(*net.TCPConn); ok {
			_ = tcpConn.SetNoDelay(true)
			_ = tcpConn.SetKeepAlive(true)
		}

		select {
		case l.events <- Incoming{Conn: conn, RemoteAddr: conn.RemoteAddr()}:
			l.wake.Wake()
		case <-l.ctx.Done():
			_ = conn.Close()
			return
		}
	}
}

// isTemporary 判断 accept 错误是否可重试，资源耗尽类错误稍后可能恢复
func isTemporary(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	for _, errno := range []syscall.Errno{syscall.EMFILE, syscall.ENFILE, syscall.ENOBUFS, syscall.ENOMEM, syscall.ECONNABORTED} {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return minAcceptBackoff
	}
	if d *= 2; d > maxAcceptBackoff {
		return maxAcceptBackoff
	}
	return d
}
