package session

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-chainnet/internal/core/metrics"
	"github.com/dep2p/go-chainnet/internal/core/wire"
	"github.com/dep2p/go-chainnet/pkg/types"
)

func testPeer(b byte) types.PeerID {
	var p types.PeerID
	p[0] = b
	p[31] = b
	return p
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RequestTimeout = time.Second
	return cfg
}

func mustEncode(t *testing.T, m wire.Message) wire.Msg {
	t.Helper()
	msg, err := wire.Encode(m)
	require.NoError(t, err)
	return msg
}

// newTestSession 构造未启动的会话，由测试直接驱动 poll
func newTestSession(t *testing.T, clk clock.Clock, opts ...Option) (*Manager, *sessionHandle, *ActiveSession, *MockChannel) {
	t.Helper()
	m, err := NewManager(testConfig(), &MockUpgrader{}, append([]Option{WithClock(clk)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	ch := NewMockChannel()
	info := &wire.PeerInfo{
		ID:           testPeer(1),
		Capabilities: types.NewCapabilities(types.Capability{Name: wire.ProtocolEth, Version: 68}),
	}
	h, s := m.newSession(1, types.DirOutbound, nil, ch, info)
	return m, h, s, ch
}

// droppedCount 读取 messages_dropped_total 中指定原因的计数
func droppedCount(t *testing.T, reg *prometheus.Registry, reason string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "test_messages_dropped_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "reason" && l.GetValue() == reason {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func mustPoll(t *testing.T, s *ActiveSession) {
	t.Helper()
	stop, err := s.poll()
	require.NoError(t, err)
	require.False(t, stop)
}

// drainEvents 取出会话已上报但管理器尚未处理的事件
func drainEvents(m *Manager) []Event {
	var out []Event
	for {
		select {
		case ev := <-m.activeEvents:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func nextEvent(t *testing.T, m *Manager) Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		if ev, ok := m.Poll(); ok {
			return ev
		}
		select {
		case <-m.Wake():
		case <-deadline:
			t.Fatal("timed out waiting for session event")
		}
	}
}

// ============================================================================
// ActiveSession
// ============================================================================

// TestActiveSession_RequestIDsIncrease 测试请求 ID 严格递增且不复用
func TestActiveSession_RequestIDsIncrease(t *testing.T) {
	_, h, s, ch := newTestSession(t, clock.New())

	for i := 0; i < 3; i++ {
		_, err := h.sender.Send(&wire.GetBlockHeaders{Amount: 1})
		require.NoError(t, err)
	}
	mustPoll(t, s)

	_, err := h.sender.Send(&wire.GetBlockBodies{})
	require.NoError(t, err)
	mustPoll(t, s)

	sent := ch.Sent()
	require.Len(t, sent, 4)
	for i, msg := range sent {
		m, err := wire.Decode(msg)
		require.NoError(t, err)
		req, ok := m.(wire.Request)
		require.True(t, ok)
		assert.Equal(t, uint64(i), req.RequestID())
	}
	assert.Len(t, s.inflight, 4)

	t.Log("✅ 请求 ID 严格递增")
}

// TestActiveSession_PriorityOrder 测试命令先于请求、发送先于接收
func TestActiveSession_PriorityOrder(t *testing.T) {
	m, h, s, ch := newTestSession(t, clock.New())

	// 请求先于命令到达，仍应排在命令之后
	_, err := h.sender.Send(&wire.GetBlockHeaders{Amount: 1})
	require.NoError(t, err)
	require.True(t, h.trySend(messageCommand{msg: wire.Transactions{}}))
	ch.Deliver(mustEncode(t, wire.NewBlockHashes{}))

	mustPoll(t, s)

	assert.Equal(t, []string{
		"send:Transactions",
		"send:GetBlockHeaders",
		"recv:NewBlockHashes",
	}, ch.Trace())

	events := drainEvents(m)
	require.Len(t, events, 1)
	valid, ok := events[0].(ValidMessage)
	require.True(t, ok)
	assert.Equal(t, uint64(wire.NewBlockHashesMsg), valid.Message.Code())

	t.Log("✅ 调度优先级正确")
}

// TestActiveSession_Backpressure 测试通道无容量时消息留在队列中
func TestActiveSession_Backpressure(t *testing.T) {
	_, h, s, ch := newTestSession(t, clock.New())

	ch.SetSendReady(false)
	require.True(t, h.trySend(messageCommand{msg: wire.Transactions{}}))
	require.True(t, h.trySend(messageCommand{msg: wire.NewBlockHashes{}}))
	mustPoll(t, s)
	assert.Empty(t, ch.Sent())
	assert.Len(t, s.outgoing, 2)

	ch.SetSendReady(true)
	mustPoll(t, s)
	sent := ch.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, uint64(wire.TransactionsMsg), sent[0].Code)
	assert.Equal(t, uint64(wire.NewBlockHashesMsg), sent[1].Code)
	assert.Empty(t, s.outgoing)

	t.Log("✅ 出站背压正确")
}

// TestActiveSession_ResponseCompletesRequest 测试应答交付给请求方并上报
func TestActiveSession_ResponseCompletesRequest(t *testing.T) {
	m, h, s, ch := newTestSession(t, clock.New())

	result, err := h.sender.Send(&wire.GetBlockHeaders{Amount: 1})
	require.NoError(t, err)
	mustPoll(t, s)

	// 不匹配的 ID 视为主动消息
	ch.Deliver(mustEncode(t, &wire.BlockHeaders{ID: 9}))
	// 匹配 ID 但消息码不对，不完成请求
	ch.Deliver(mustEncode(t, &wire.BlockBodies{ID: 0}))
	mustPoll(t, s)
	select {
	case <-result:
		t.Fatal("request completed by unrelated message")
	default:
	}

	ch.Deliver(mustEncode(t, &wire.BlockHeaders{ID: 0}))
	mustPoll(t, s)

	select {
	case res := <-result:
		require.NoError(t, res.Err)
		headers, ok := res.Response.(*wire.BlockHeaders)
		require.True(t, ok)
		assert.Equal(t, uint64(0), headers.ID)
	default:
		t.Fatal("request not completed")
	}
	assert.Empty(t, s.inflight)
	assert.Len(t, drainEvents(m), 3)

	t.Log("✅ 应答匹配在途请求")
}

// TestActiveSession_RequestTimeout 测试在途请求超时
func TestActiveSession_RequestTimeout(t *testing.T) {
	clk := clock.NewMock()
	_, h, s, _ := newTestSession(t, clk)

	result, err := h.sender.Send(&wire.GetReceipts{})
	require.NoError(t, err)
	mustPoll(t, s)
	require.Len(t, s.inflight, 1)

	clk.Add(500 * time.Millisecond)
	mustPoll(t, s)
	assert.Len(t, s.inflight, 1)

	clk.Add(time.Second)
	mustPoll(t, s)
	assert.Empty(t, s.inflight)

	res := <-result
	assert.ErrorIs(t, res.Err, ErrRequestTimeout)

	t.Log("✅ 请求超时后移除")
}

// TestActiveSession_InvalidCapability 测试未宣告能力的消息被上报且会话存活
func TestActiveSession_InvalidCapability(t *testing.T) {
	m, _, s, ch := newTestSession(t, clock.New())

	ch.Deliver(wire.Msg{Code: 0x21, Payload: []byte{0xc0}})
	ch.Deliver(wire.Msg{Code: 0x7f, Payload: []byte{0xc0}})
	mustPoll(t, s)

	ch.Deliver(mustEncode(t, wire.NewBlockHashes{}))
	mustPoll(t, s)

	events := drainEvents(m)
	require.Len(t, events, 3)

	invalid, ok := events[0].(InvalidMessage)
	require.True(t, ok)
	assert.Equal(t, uint64(0x21), invalid.Code)
	assert.Equal(t, testPeer(1), invalid.Peer)
	assert.True(t, invalid.Capabilities.Contains(types.Capability{Name: wire.ProtocolEth, Version: 68}))

	invalid, ok = events[1].(InvalidMessage)
	require.True(t, ok)
	assert.Equal(t, uint64(0x7f), invalid.Code)

	_, ok = events[2].(ValidMessage)
	assert.True(t, ok)
	assert.False(t, ch.IsClosed())

	t.Log("✅ 无效能力消息不终止会话")
}

// TestActiveSession_PingPong 测试 Ping 应答 Pong
func TestActiveSession_PingPong(t *testing.T) {
	m, _, s, ch := newTestSession(t, clock.New())

	ch.Deliver(mustEncode(t, wire.Ping{}))
	mustPoll(t, s)

	sent := ch.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, uint64(wire.PongMsg), sent[0].Code)
	assert.Empty(t, drainEvents(m))

	t.Log("✅ Ping 应答 Pong")
}

// TestActiveSession_RemoteDisconnect 测试对端 Disconnect 正常终止
func TestActiveSession_RemoteDisconnect(t *testing.T) {
	_, _, s, ch := newTestSession(t, clock.New())

	ch.Deliver(mustEncode(t, wire.Disconnect{Reason: types.DisconnectClientQuitting}))
	stop, err := s.poll()
	assert.True(t, stop)
	assert.NoError(t, err)

	t.Log("✅ 对端断开正常终止")
}

// TestActiveSession_DecodeErrorIsFatal 测试解码错误终止会话并携带错误
func TestActiveSession_DecodeErrorIsFatal(t *testing.T) {
	m, _, s, ch := newTestSession(t, clock.New())

	ch.Deliver(wire.Msg{Code: wire.StatusMsg, Payload: []byte{0x01, 0x02}})
	stop, err := s.poll()
	require.True(t, stop)
	var decodeErr *wire.DecodeError
	require.ErrorAs(t, err, &decodeErr)

	s.terminate(err)
	events := drainEvents(m)
	require.Len(t, events, 1)
	closed, ok := events[0].(sessionClosed)
	require.True(t, ok)
	assert.ErrorAs(t, closed.err, &decodeErr)

	t.Log("✅ 解码错误终止会话")
}

// TestActiveSession_TerminateCompletesRequests 测试终止时完成全部请求
func TestActiveSession_TerminateCompletesRequests(t *testing.T) {
	_, h, s, ch := newTestSession(t, clock.New())

	inflight, err := h.sender.Send(&wire.GetBlockHeaders{})
	require.NoError(t, err)
	mustPoll(t, s)
	queued, err := h.sender.Send(&wire.GetBlockBodies{})
	require.NoError(t, err)

	ch.Fail(wire.ErrStreamClosed)
	// 阶段 2 会先取走排队的请求，再在阶段 4 发现通道关闭
	stop, err := s.poll()
	require.True(t, stop)
	require.NoError(t, err)
	s.terminate(err)

	assert.ErrorIs(t, (<-inflight).Err, ErrSessionClosed)
	assert.ErrorIs(t, (<-queued).Err, ErrSessionClosed)
	assert.True(t, ch.IsClosed())

	_, err = h.sender.Request(context.Background(), &wire.GetReceipts{})
	assert.ErrorIs(t, err, ErrSessionClosed)

	t.Log("✅ 终止时完成全部请求")
}

// TestActiveSession_CommandChannelClosed 测试命令通道关闭后终止
func TestActiveSession_CommandChannelClosed(t *testing.T) {
	_, h, s, _ := newTestSession(t, clock.New())

	h.close()
	stop, err := s.poll()
	assert.True(t, stop)
	assert.NoError(t, err)
	assert.False(t, h.trySend(messageCommand{msg: wire.Transactions{}}))

	t.Log("✅ 命令通道关闭即终止")
}

// TestActiveSession_DisconnectFlushesBuffered 测试断开前先发出缓冲的消息
func TestActiveSession_DisconnectFlushesBuffered(t *testing.T) {
	reg := prometheus.NewRegistry()
	mt, err := metrics.New("test", reg, nil)
	require.NoError(t, err)
	_, h, s, ch := newTestSession(t, clock.New(), WithMetrics(mt))

	ch.SetSendReady(false)
	require.True(t, h.trySend(messageCommand{msg: wire.Transactions{}}))
	mustPoll(t, s)
	require.Len(t, s.outgoing, 1)

	ch.SetSendReady(true)
	require.True(t, h.disconnect(types.DisconnectUselessPeer))
	stop, err := s.poll()
	require.True(t, stop)
	require.NoError(t, err)

	sent := ch.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, uint64(wire.TransactionsMsg), sent[0].Code)
	msg, err := wire.Decode(sent[1])
	require.NoError(t, err)
	assert.Equal(t, types.DisconnectUselessPeer, msg.(*wire.Disconnect).Reason)
	assert.Equal(t, 0.0, droppedCount(t, reg, "disconnect"))

	t.Log("✅ 断开前发出缓冲消息")
}

// TestActiveSession_DisconnectDroppedWhenFull 测试发送缓冲已满时丢弃的消息被计数
func TestActiveSession_DisconnectDroppedWhenFull(t *testing.T) {
	reg := prometheus.NewRegistry()
	mt, err := metrics.New("test", reg, nil)
	require.NoError(t, err)
	_, h, s, ch := newTestSession(t, clock.New(), WithMetrics(mt))

	ch.SetSendReady(false)
	require.True(t, h.trySend(messageCommand{msg: wire.Transactions{}}))
	require.True(t, h.trySend(messageCommand{msg: wire.NewBlockHashes{}}))
	mustPoll(t, s)

	require.True(t, h.disconnect(types.DisconnectRequested))
	stop, err := s.poll()
	require.True(t, stop)
	s.terminate(err)

	assert.Empty(t, ch.Sent())
	assert.Equal(t, 1.0, droppedCount(t, reg, "disconnect"))
	assert.Equal(t, 2.0, droppedCount(t, reg, "teardown"))

	t.Log("✅ 无法发送的消息计入丢弃指标")
}

// TestRequestSender_IDAssignedOnSend 测试请求 ID 在 Send 返回前写入
func TestRequestSender_IDAssignedOnSend(t *testing.T) {
	_, h, s, _ := newTestSession(t, clock.New())

	for i := uint64(0); i < 3; i++ {
		req := &wire.GetBlockHeaders{Amount: 1}
		_, err := h.sender.Send(req)
		require.NoError(t, err)
		// 会话尚未运行，ID 已由调用方 goroutine 写入
		assert.Equal(t, i, req.RequestID())
	}
	mustPoll(t, s)
	for i := uint64(0); i < 3; i++ {
		assert.Contains(t, s.inflight, i)
	}

	t.Log("✅ 请求 ID 在 Send 时分配")
}

// TestRequestSender_SendAfterTerminate 测试会话终止后拒绝新请求
func TestRequestSender_SendAfterTerminate(t *testing.T) {
	_, h, s, _ := newTestSession(t, clock.New())

	h.close()
	stop, err := s.poll()
	require.True(t, stop)
	s.terminate(err)

	_, err = h.sender.Send(&wire.GetBlockHeaders{})
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.True(t, h.sender.exited())

	t.Log("✅ 终止后 Send 返回 ErrSessionClosed")
}

// TestRequestSender_ConcurrentSendGetsResult 测试与终止并发的 Send 要么被拒绝要么得到结果
func TestRequestSender_ConcurrentSendGetsResult(t *testing.T) {
	for round := 0; round < 50; round++ {
		_, h, s, _ := newTestSession(t, clock.New())

		const senders = 8
		results := make(chan (<-chan RequestResult), senders*4)
		var wg sync.WaitGroup
		for i := 0; i < senders; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 4; j++ {
					if ch, err := h.sender.Send(&wire.GetBlockBodies{}); err == nil {
						results <- ch
					}
				}
			}()
		}

		h.close()
		stop, err := s.poll()
		require.True(t, stop)
		s.terminate(err)
		wg.Wait()
		close(results)

		for ch := range results {
			select {
			case res := <-ch:
				assert.ErrorIs(t, res.Err, ErrSessionClosed)
			case <-time.After(time.Second):
				t.Fatal("accepted request never completed")
			}
		}
	}

	t.Log("✅ 被接受的请求都得到结果")
}

// ============================================================================
// Manager
// ============================================================================

type pipeDialer struct {
	err   error
	peers []net.Conn
}

func (d *pipeDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if d.err != nil {
		return nil, d.err
	}
	c1, c2 := net.Pipe()
	d.peers = append(d.peers, c2)
	return c1, nil
}

func newTestManager(t *testing.T, cfg Config, up *MockUpgrader, opts ...Option) *Manager {
	t.Helper()
	m, err := NewManager(cfg, up, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func incoming(t *testing.T, m *Manager) (types.SessionID, error) {
	t.Helper()
	c1, c2 := net.Pipe()
	t.Cleanup(func() { _ = c2.Close() })
	return m.OnIncoming(c1, c1.RemoteAddr())
}

// TestManager_IncomingEstablished 测试入站会话建立并可收发
func TestManager_IncomingEstablished(t *testing.T) {
	up := &MockUpgrader{}
	up.AddInboundPeer(testPeer(2))
	m := newTestManager(t, testConfig(), up)

	id, err := incoming(t, m)
	require.NoError(t, err)

	ev := nextEvent(t, m)
	est, ok := ev.(SessionEstablished)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, id, est.SessionID)
	assert.Equal(t, testPeer(2), est.Peer)
	assert.Equal(t, types.DirInbound, est.Direction)
	require.NotNil(t, est.Sender)
	assert.Equal(t, []types.PeerID{testPeer(2)}, m.Peers())
	assert.Equal(t, 0, m.NumPending())

	ch := up.Channels()[0]
	m.SendMessage(testPeer(2), wire.Transactions{})
	require.Eventually(t, func() bool { return len(ch.Sent()) == 1 }, 2*time.Second, 5*time.Millisecond)

	ch.Deliver(mustEncode(t, wire.NewBlockHashes{}))
	ev = nextEvent(t, m)
	valid, ok := ev.(ValidMessage)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, testPeer(2), valid.Peer)

	t.Log("✅ 入站会话建立")
}

// TestManager_Request 测试通过 RequestSender 完成请求
func TestManager_Request(t *testing.T) {
	up := &MockUpgrader{}
	up.AddInboundPeer(testPeer(2))
	m := newTestManager(t, testConfig(), up)

	_, err := incoming(t, m)
	require.NoError(t, err)
	est := nextEvent(t, m).(SessionEstablished)
	ch := up.Channels()[0]

	type result struct {
		resp wire.Response
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := est.Sender.Request(context.Background(), &wire.GetBlockHeaders{Amount: 1})
		done <- result{resp, err}
	}()

	require.Eventually(t, func() bool { return len(ch.Sent()) == 1 }, 2*time.Second, 5*time.Millisecond)
	ch.Deliver(mustEncode(t, &wire.BlockHeaders{ID: 0}))

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Equal(t, uint64(wire.BlockHeadersMsg), r.resp.Code())
	case <-time.After(2 * time.Second):
		t.Fatal("request not completed")
	}

	_, ok := nextEvent(t, m).(ValidMessage)
	assert.True(t, ok)

	t.Log("✅ 请求-应答往返")
}

// TestManager_DisconnectTwice 测试重复断开只产生一个 Disconnected
func TestManager_DisconnectTwice(t *testing.T) {
	up := &MockUpgrader{}
	up.AddInboundPeer(testPeer(3))
	m := newTestManager(t, testConfig(), up)

	_, err := incoming(t, m)
	require.NoError(t, err)
	_, ok := nextEvent(t, m).(SessionEstablished)
	require.True(t, ok)

	m.Disconnect(testPeer(3), types.DisconnectRequested)
	m.Disconnect(testPeer(3), types.DisconnectRequested)

	ev := nextEvent(t, m)
	disc, ok := ev.(Disconnected)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, testPeer(3), disc.Peer)
	assert.NoError(t, disc.Err)

	// 之后的断开是空操作
	m.Disconnect(testPeer(3), types.DisconnectRequested)
	time.Sleep(50 * time.Millisecond)
	_, ok = m.Poll()
	assert.False(t, ok)
	assert.Empty(t, m.Peers())

	sent := up.Channels()[0].Sent()
	require.Len(t, sent, 1)
	msg, err := wire.Decode(sent[0])
	require.NoError(t, err)
	assert.Equal(t, types.DisconnectRequested, msg.(*wire.Disconnect).Reason)

	t.Log("✅ 重复断开只上报一次")
}

// TestManager_UnknownPeer 测试对未知节点的操作被忽略
func TestManager_UnknownPeer(t *testing.T) {
	m := newTestManager(t, testConfig(), &MockUpgrader{})

	m.Disconnect(testPeer(9), types.DisconnectRequested)
	m.SendMessage(testPeer(9), wire.Transactions{})
	_, ok := m.Sender(testPeer(9))
	assert.False(t, ok)
	_, ok = m.Poll()
	assert.False(t, ok)

	t.Log("✅ 未知节点操作被忽略")
}

// TestManager_PendingLimit 测试待定入站会话上限
func TestManager_PendingLimit(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPendingIncoming = 1
	up := &MockUpgrader{Hold: make(chan struct{})}
	up.AddInboundPeer(testPeer(4))
	up.AddInboundPeer(testPeer(5))
	m := newTestManager(t, cfg, up)

	_, err := incoming(t, m)
	require.NoError(t, err)

	c1, c2 := net.Pipe()
	_, err = m.OnIncoming(c1, c1.RemoteAddr())
	assert.ErrorIs(t, err, ErrPendingSessionLimit)
	// 被拒绝的连接已关闭
	_, err = c2.Read(make([]byte, 1))
	assert.Error(t, err)

	close(up.Hold)
	_, ok := nextEvent(t, m).(SessionEstablished)
	require.True(t, ok)

	_, err = incoming(t, m)
	assert.NoError(t, err)

	t.Log("✅ 待定入站会话上限生效")
}

// TestManager_AlreadyConnected 测试同一节点的第二个会话被拒绝
func TestManager_AlreadyConnected(t *testing.T) {
	up := &MockUpgrader{}
	up.AddInboundPeer(testPeer(6))
	up.AddInboundPeer(testPeer(6))
	m := newTestManager(t, testConfig(), up)

	_, err := incoming(t, m)
	require.NoError(t, err)
	_, err = incoming(t, m)
	require.NoError(t, err)

	var established, rejected int
	for i := 0; i < 2; i++ {
		switch ev := nextEvent(t, m).(type) {
		case SessionEstablished:
			established++
		case IncomingPendingSessionClosed:
			rejected++
			assert.ErrorIs(t, ev.Err, ErrAlreadyConnected)
		default:
			t.Fatalf("unexpected event %T", ev)
		}
	}
	assert.Equal(t, 1, established)
	assert.Equal(t, 1, rejected)

	var found bool
	for _, ch := range up.Channels() {
		if !ch.IsClosed() {
			continue
		}
		found = true
		sent := ch.Sent()
		require.Len(t, sent, 1)
		msg, err := wire.Decode(sent[0])
		require.NoError(t, err)
		assert.Equal(t, types.DisconnectAlreadyConnected, msg.(*wire.Disconnect).Reason)
	}
	assert.True(t, found)

	t.Log("✅ 重复会话被拒绝")
}

// TestManager_ReconnectAfterClose 测试旧会话已退出但尚未上报时，同一节点的新会话接替它
func TestManager_ReconnectAfterClose(t *testing.T) {
	up := &MockUpgrader{}
	up.AddInboundPeer(testPeer(9))
	up.AddInboundPeer(testPeer(9))
	m := newTestManager(t, testConfig(), up)

	first, err := incoming(t, m)
	require.NoError(t, err)
	est := nextEvent(t, m).(SessionEstablished)
	require.Equal(t, first, est.SessionID)

	up.Channels()[0].Fail(wire.ErrStreamClosed)
	<-est.Sender.Done()
	require.Eventually(t, func() bool { return len(m.activeEvents) == 1 }, 2*time.Second, 5*time.Millisecond)

	// 新连接的认证结果先于旧会话的关闭被处理
	second, err := incoming(t, m)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(m.pendingEvents) == 1 }, 2*time.Second, 5*time.Millisecond)

	ev := nextEvent(t, m)
	est2, ok := ev.(SessionEstablished)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, second, est2.SessionID)

	ev = nextEvent(t, m)
	disc, ok := ev.(Disconnected)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, first, disc.SessionID)
	assert.Equal(t, types.DirInbound, disc.Direction)

	// 旧会话的关闭不影响新会话
	assert.Equal(t, []types.PeerID{testPeer(9)}, m.Peers())
	sender, ok := m.Sender(testPeer(9))
	require.True(t, ok)
	assert.Same(t, est2.Sender, sender)
	assert.False(t, up.Channels()[1].IsClosed())

	t.Log("✅ 节点重连接替已退出的会话")
}

// TestManager_AuthFailure 测试认证失败产生待定关闭事件
func TestManager_AuthFailure(t *testing.T) {
	boom := errors.New("handshake failed")
	m := newTestManager(t, testConfig(), &MockUpgrader{Err: boom})

	id, err := incoming(t, m)
	require.NoError(t, err)

	ev := nextEvent(t, m)
	closed, ok := ev.(IncomingPendingSessionClosed)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, id, closed.SessionID)
	assert.ErrorIs(t, closed.Err, boom)
	assert.Equal(t, 0, m.NumPending())

	t.Log("✅ 认证失败上报")
}

// TestManager_Outbound 测试出站会话
func TestManager_Outbound(t *testing.T) {
	up := &MockUpgrader{}
	m := newTestManager(t, testConfig(), up, WithDialer(&pipeDialer{}))

	id := m.DialOutbound("10.0.0.1:30303", testPeer(7))
	ev := nextEvent(t, m)
	est, ok := ev.(SessionEstablished)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, id, est.SessionID)
	assert.Equal(t, testPeer(7), est.Peer)
	assert.Equal(t, types.DirOutbound, est.Direction)

	t.Log("✅ 出站会话建立")
}

// TestManager_DialFailure 测试拨号失败
func TestManager_DialFailure(t *testing.T) {
	boom := errors.New("connection refused")
	m := newTestManager(t, testConfig(), &MockUpgrader{}, WithDialer(&pipeDialer{err: boom}))

	id := m.DialOutbound("10.0.0.1:30303", testPeer(8))
	ev := nextEvent(t, m)
	failed, ok := ev.(OutgoingConnectionError)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, id, failed.SessionID)
	assert.Equal(t, "10.0.0.1:30303", failed.RemoteAddr)
	assert.ErrorIs(t, failed.Err, boom)

	t.Log("✅ 拨号失败上报")
}

// TestManager_SessionIDsMonotonic 测试会话 ID 单调分配
func TestManager_SessionIDsMonotonic(t *testing.T) {
	m := newTestManager(t, testConfig(), &MockUpgrader{Err: errors.New("x")}, WithDialer(&pipeDialer{}))

	a := m.DialOutbound("a:1", testPeer(1))
	b, err := incoming(t, m)
	require.NoError(t, err)
	c := m.DialOutbound("c:1", testPeer(2))
	assert.Less(t, a, b)
	assert.Less(t, b, c)

	t.Log("✅ 会话 ID 单调递增")
}

// TestManager_Close 测试关闭管理器终止全部会话
func TestManager_Close(t *testing.T) {
	up := &MockUpgrader{}
	up.AddInboundPeer(testPeer(2))
	m, err := NewManager(testConfig(), up)
	require.NoError(t, err)

	_, err = incoming(t, m)
	require.NoError(t, err)
	est := nextEvent(t, m).(SessionEstablished)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	select {
	case <-est.Sender.Done():
	default:
		t.Fatal("session still running after close")
	}
	assert.True(t, up.Channels()[0].IsClosed())

	_, err = incoming(t, m)
	assert.ErrorIs(t, err, ErrManagerClosed)

	t.Log("✅ 关闭管理器")
}
