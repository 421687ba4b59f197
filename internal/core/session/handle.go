package session

import (
	"context"
	"net"
	"sync"

	"github.com/dep2p/go-chainnet/internal/core/wire"
	"github.com/dep2p/go-chainnet/internal/util/waker"
	"github.com/dep2p/go-chainnet/pkg/types"
)

// command 管理器发给会话的命令
type command interface {
	sessionCommand()
}

// disconnectCommand 发送 Disconnect 后终止会话
type disconnectCommand struct {
	reason types.DisconnectReason
}

// messageCommand 追加一条出站消息
type messageCommand struct {
	msg wire.Message
}

func (disconnectCommand) sessionCommand() {}
func (messageCommand) sessionCommand()    {}

// RequestResult 请求结果
type RequestResult struct {
	Response wire.Response
	Err      error
}

// peerRequest 本地发往对端的请求
type peerRequest struct {
	request wire.Request
	result  chan RequestResult
}

// complete 交付结果，结果通道容量为 1，不会阻塞
func (r peerRequest) complete(resp wire.Response, err error) {
	r.result <- RequestResult{Response: resp, Err: err}
}

// RequestSender 向单个节点发送请求的句柄
//
// 可被多个 goroutine 并发使用。每个被接受的请求都会得到恰好一个结果。
type RequestSender struct {
	peer     types.PeerID
	requests chan peerRequest
	wake     *waker.Waker
	done     chan struct{}

	// mu 保护入队与会话终止时的排空，两者不会交错
	mu     sync.Mutex
	nextID uint64
	closed bool
}

// Peer 返回目标节点
func (s *RequestSender) Peer() types.PeerID {
	return s.peer
}

// Send 非阻塞地提交请求，返回结果通道
//
// 请求 ID 在返回前写入 req，之后 req 归会话所有，调用方不得再修改。
func (s *RequestSender) Send(req wire.Request) (<-chan RequestResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	// 只有持锁的 Send 会入队，这里检查过容量后入队不会阻塞
	if len(s.requests) == cap(s.requests) {
		return nil, ErrRequestBufferFull
	}
	req.SetRequestID(s.nextID)
	s.nextID++
	r := peerRequest{request: req, result: make(chan RequestResult, 1)}
	s.requests <- r
	s.wake.Wake()
	return r.result, nil
}

// shutdown 拒绝后续请求，以 ErrSessionClosed 完成排队中的请求，然后关闭 done
func (s *RequestSender) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for {
		select {
		case r := <-s.requests:
			r.complete(nil, ErrSessionClosed)
		default:
			close(s.done)
			return
		}
	}
}

// exited 会话是否已终止
func (s *RequestSender) exited() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Request 提交请求并等待应答
func (s *RequestSender) Request(ctx context.Context, req wire.Request) (wire.Response, error) {
	ch, err := s.Send(req)
	if err != nil {
		return nil, err
	}
	select {
	case res := <-ch:
		return res.Response, res.Err
	case <-s.done:
		// 会话在关闭 done 之前会完成所有已取出的请求
		select {
		case res := <-ch:
			return res.Response, res.Err
		default:
			return nil, ErrSessionClosed
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done 会话终止后关闭
func (s *RequestSender) Done() <-chan struct{} {
	return s.done
}

// sessionHandle 管理器持有的活跃会话句柄
type sessionHandle struct {
	id           types.SessionID
	peer         types.PeerID
	direction    types.Direction
	remoteAddr   net.Addr
	capabilities *types.Capabilities
	sender       *RequestSender
	wake         *waker.Waker

	mu            sync.Mutex
	commands      chan command
	closed        bool
	disconnecting bool
}

// trySend 非阻塞地投递命令，会话已关闭、正在断开或缓冲区满时返回 false
func (h *sessionHandle) trySend(cmd command) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || h.disconnecting {
		return false
	}
	select {
	case h.commands <- cmd:
		h.wake.Wake()
		return true
	default:
		return false
	}
}

// disconnect 请求会话断开，重复调用无效
//
// 命令缓冲区满时退化为关闭命令通道，会话不再发送 Disconnect 消息。
func (h *sessionHandle) disconnect(reason types.DisconnectReason) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || h.disconnecting {
		return false
	}
	h.disconnecting = true
	select {
	case h.commands <- disconnectCommand{reason: reason}:
		h.wake.Wake()
	default:
		h.closeLocked()
	}
	return true
}

// close 关闭命令通道
func (h *sessionHandle) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closeLocked()
}

func (h *sessionHandle) closeLocked() {
	if h.closed {
		return
	}
	h.closed = true
	close(h.commands)
	h.wake.Wake()
}
