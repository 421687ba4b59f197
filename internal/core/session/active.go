package session

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-chainnet/internal/core/metrics"
	"github.com/dep2p/go-chainnet/internal/core/wire"
	"github.com/dep2p/go-chainnet/internal/util/waker"
	"github.com/dep2p/go-chainnet/pkg/types"
)

// inflightRequest 已发出、等待应答的请求
type inflightRequest struct {
	req          peerRequest
	responseCode uint64
	sentAt       time.Time
	deadline     time.Time
}

// ActiveSession 一个已认证节点的协议会话
//
// 在途表与出站队列只由会话自己的 goroutine 访问。
type ActiveSession struct {
	id           types.SessionID
	peer         types.PeerID
	direction    types.Direction
	remoteAddr   net.Addr
	capabilities *types.Capabilities
	channel      wire.Channel

	commands <-chan command
	requests <-chan peerRequest
	sender   *RequestSender
	wake     *waker.Waker

	// 管理器侧
	events      chan<- Event
	notify      func()
	managerDone <-chan struct{}

	inflight map[uint64]*inflightRequest
	outgoing []wire.Message

	clock          clock.Clock
	requestTimeout time.Duration
	checkInterval  time.Duration
	metrics        *metrics.Metrics
	log            *slog.Logger
}

// ID 返回会话 ID
func (s *ActiveSession) ID() types.SessionID {
	return s.id
}

// Peer 返回对端节点 ID
func (s *ActiveSession) Peer() types.PeerID {
	return s.peer
}

// run 驱动会话直到终止
func (s *ActiveSession) run() {
	ticker := s.clock.Ticker(s.checkInterval)
	defer ticker.Stop()

	for {
		if stop, err := s.poll(); stop {
			s.terminate(err)
			return
		}
		select {
		case <-s.wake.C():
		case <-s.channel.Wake():
		case <-ticker.C:
		}
	}
}

// poll 执行一轮调度：按优先级分阶段排空输入，直到整轮没有进展
//
// 返回 stop 为 true 表示会话应终止，err 非 nil 表示异常终止。
func (s *ActiveSession) poll() (stop bool, err error) {
	for {
		cmdProgress, stop := s.drainCommands()
		if stop {
			return true, nil
		}

		reqProgress := s.drainRequests()

		sendProgress, err := s.flush()
		if err != nil {
			// 通道已关闭，等同于对端断开
			return true, nil
		}

		recvProgress, stop, err := s.drainInbound()
		if stop {
			return true, err
		}

		s.expireRequests()

		if !cmdProgress && !reqProgress && !sendProgress && !recvProgress {
			return false, nil
		}
	}
}

// drainCommands 阶段 1：取完全部管理器命令
func (s *ActiveSession) drainCommands() (progress, stop bool) {
	for {
		select {
		case cmd, ok := <-s.commands:
			if !ok {
				s.log.Debug("命令通道已关闭，会话终止")
				return progress, true
			}
			progress = true
			switch c := cmd.(type) {
			case disconnectCommand:
				s.sendDisconnect(c.reason)
				return progress, true
			case messageCommand:
				s.outgoing = append(s.outgoing, c.msg)
			}
		default:
			return progress, false
		}
	}
}

// drainRequests 阶段 2：取完全部本地请求并记为在途，请求 ID 已由 RequestSender 分配
func (s *ActiveSession) drainRequests() (progress bool) {
	for {
		select {
		case r := <-s.requests:
			progress = true
			id := r.request.RequestID()
			responseCode, _ := wire.ResponseCode(r.request.Code())
			now := s.clock.Now()
			s.inflight[id] = &inflightRequest{
				req:          r,
				responseCode: responseCode,
				sentAt:       now,
				deadline:     now.Add(s.requestTimeout),
			}
			s.outgoing = append(s.outgoing, r.request)
		default:
			return progress
		}
	}
}

// flush 阶段 3：通道有容量时按 FIFO 发送缓冲的消息
//
// 返回的错误只可能是 wire.ErrStreamClosed。
func (s *ActiveSession) flush() (progress bool, err error) {
	for len(s.outgoing) > 0 && s.channel.SendReady() {
		m := s.outgoing[0]
		msg, err := wire.Encode(m)
		if err != nil {
			s.dropOutgoing(m, err)
			continue
		}

		switch err := s.channel.Send(msg); {
		case err == nil:
		case errors.Is(err, wire.ErrSendBufferFull):
			return progress, nil
		case errors.Is(err, wire.ErrStreamClosed):
			return progress, err
		default:
			s.dropOutgoing(m, err)
			continue
		}

		s.outgoing[0] = nil
		s.outgoing = s.outgoing[1:]
		progress = true
		s.metrics.MessageSent(wire.MessageName(msg.Code))
		s.metrics.LogSentMessage(int64(msg.Size()), protocolLabel(msg.Code))
	}
	return progress, nil
}

// dropOutgoing 丢弃队首无法发送的消息，若是请求则以错误完成
func (s *ActiveSession) dropOutgoing(m wire.Message, err error) {
	s.outgoing[0] = nil
	s.outgoing = s.outgoing[1:]
	s.log.Warn("丢弃无法发送的消息", "message", wire.MessageName(m.Code()), "error", err)
	s.metrics.MessageDropped("encode")

	if req, ok := m.(wire.Request); ok {
		if r, found := s.inflight[req.RequestID()]; found && r.req.request == req {
			delete(s.inflight, req.RequestID())
			r.req.complete(nil, err)
		}
	}
}

// drainInbound 阶段 4：取完全部已到达的消息
func (s *ActiveSession) drainInbound() (progress, stop bool, err error) {
	for {
		msg, ok, err := s.channel.TryRecv()
		if err != nil {
			if errors.Is(err, wire.ErrStreamClosed) {
				s.log.Debug("对端关闭连接")
				return progress, true, nil
			}
			return progress, true, err
		}
		if !ok {
			return progress, false, nil
		}
		progress = true
		if stop, err := s.onMessage(msg); stop {
			return progress, true, err
		}
	}
}

// onMessage 处理一条入站消息
func (s *ActiveSession) onMessage(msg wire.Msg) (stop bool, err error) {
	name := wire.MessageName(msg.Code)
	s.metrics.MessageReceived(name)
	s.metrics.LogRecvMessage(int64(msg.Size()), protocolLabel(msg.Code))

	if wire.IsBaseCode(msg.Code) {
		return s.onBaseMessage(msg)
	}

	proto, known := wire.ProtocolForCode(msg.Code)
	if !known || !s.supports(proto) {
		s.reportInvalid(msg)
		return false, nil
	}

	m, err := wire.Decode(msg)
	if err != nil {
		return true, err
	}
	if resp, ok := m.(wire.Response); ok {
		s.completeRequest(msg.Code, resp)
	}
	s.emit(ValidMessage{Peer: s.peer, Message: m})
	return false, nil
}

// onBaseMessage 处理基础协议消息：Ping 应答 Pong，Disconnect 正常终止
func (s *ActiveSession) onBaseMessage(msg wire.Msg) (bool, error) {
	m, err := wire.Decode(msg)
	if errors.Is(err, wire.ErrUnknownCode) {
		s.reportInvalid(msg)
		return false, nil
	}
	if err != nil {
		return true, err
	}

	switch m := m.(type) {
	case *wire.Ping:
		s.outgoing = append(s.outgoing, wire.Pong{})
	case *wire.Pong:
	case *wire.Disconnect:
		s.log.Debug("对端请求断开", "reason", m.Reason)
		return true, nil
	default:
		return true, fmt.Errorf("%w: %s after handshake", wire.ErrUnexpectedMessage, wire.MessageName(msg.Code))
	}
	return false, nil
}

func (s *ActiveSession) supports(proto string) bool {
	_, ok := s.capabilities.SupportsProtocol(proto)
	return ok
}

func (s *ActiveSession) reportInvalid(msg wire.Msg) {
	s.metrics.MessageInvalid(wire.MessageName(msg.Code))
	s.log.Debug("收到未宣告能力的消息", "message", wire.MessageName(msg.Code))
	s.emit(InvalidMessage{
		Peer:         s.peer,
		Capabilities: s.capabilities,
		Code:         msg.Code,
		Payload:      msg.Payload,
	})
}

// completeRequest 应答匹配在途请求时移除并交付；不匹配的视为主动消息
func (s *ActiveSession) completeRequest(code uint64, resp wire.Response) {
	id := resp.RequestID()
	r, ok := s.inflight[id]
	if !ok || r.responseCode != code {
		return
	}
	delete(s.inflight, id)
	s.metrics.RequestCompleted(wire.MessageName(code), s.clock.Since(r.sentAt))
	r.req.complete(resp, nil)
}

// expireRequests 移除超时的在途请求
func (s *ActiveSession) expireRequests() {
	if len(s.inflight) == 0 {
		return
	}
	now := s.clock.Now()
	for id, r := range s.inflight {
		if now.Before(r.deadline) {
			continue
		}
		delete(s.inflight, id)
		s.metrics.RequestTimeout()
		s.log.Debug("请求超时", "id", id, "message", wire.MessageName(r.req.request.Code()))
		r.req.complete(nil, ErrRequestTimeout)
	}
}

// sendDisconnect 先尽量发出缓冲的消息，再发送 Disconnect
//
// 发送缓冲已满时 Disconnect 被丢弃并计入 dropped 指标。
func (s *ActiveSession) sendDisconnect(reason types.DisconnectReason) {
	if _, err := s.flush(); err != nil {
		return
	}
	msg, err := wire.Encode(wire.Disconnect{Reason: reason})
	if err != nil {
		return
	}
	if !s.channel.SendReady() {
		s.metrics.MessageDropped("disconnect")
		s.log.Debug("发送缓冲已满，丢弃 Disconnect", "reason", reason, "buffered", len(s.outgoing))
		return
	}
	if err := s.channel.Send(msg); err != nil {
		s.metrics.MessageDropped("disconnect")
		s.log.Debug("发送 Disconnect 失败", "reason", reason, "error", err)
	}
}

// emit 向管理器上报事件，管理器处理不过来时阻塞
func (s *ActiveSession) emit(ev Event) {
	select {
	case s.events <- ev:
		s.notify()
	case <-s.managerDone:
	}
}

// terminate 关闭通道，完成所有在途与排队中的请求，然后通知管理器
func (s *ActiveSession) terminate(err error) {
	_ = s.channel.Close()

	for id, r := range s.inflight {
		delete(s.inflight, id)
		r.req.complete(nil, ErrSessionClosed)
	}
	for range s.outgoing {
		s.metrics.MessageDropped("teardown")
	}
	s.outgoing = nil
	s.sender.shutdown()

	if err != nil {
		s.log.Debug("会话异常终止", "error", err)
	} else {
		s.log.Debug("会话终止")
	}
	s.emit(sessionClosed{id: s.id, peer: s.peer, err: err})
}

// protocolLabel 返回消息码所属协议，用于带宽统计
func protocolLabel(code uint64) string {
	if wire.IsBaseCode(code) {
		return "p2p"
	}
	if proto, ok := wire.ProtocolForCode(code); ok {
		return proto
	}
	return "unknown"
}
