package chainnet

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-chainnet/config"
	"github.com/dep2p/go-chainnet/internal/core/identity"
	"github.com/dep2p/go-chainnet/internal/core/listener"
	"github.com/dep2p/go-chainnet/internal/core/metrics"
	"github.com/dep2p/go-chainnet/internal/core/peerbook"
	"github.com/dep2p/go-chainnet/internal/core/security/noise"
	"github.com/dep2p/go-chainnet/internal/core/session"
	"github.com/dep2p/go-chainnet/internal/core/state"
	"github.com/dep2p/go-chainnet/internal/core/swarm"
	"github.com/dep2p/go-chainnet/internal/core/upgrader"
	"github.com/dep2p/go-chainnet/internal/core/wire"
	"github.com/dep2p/go-chainnet/pkg/types"
)

func startNode(t *testing.T, opts ...Option) *Node {
	t.Helper()
	opts = append([]Option{WithListenAddr("127.0.0.1:0")}, opts...)
	n, err := Start(context.Background(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Close() })
	return n
}

// waitEvent 读取事件直到出现 E 类型
func waitEvent[E swarm.Event](t *testing.T, n *Node) E {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-n.Events():
			require.True(t, ok, "events channel closed")
			if e, ok := ev.(E); ok {
				return e
			}
		case <-timeout:
			var zero E
			t.Fatalf("timed out waiting for %T", zero)
			return zero
		}
	}
}

// TestModules_Wiring 测试各模块能够装配出完整的依赖图
func TestModules_Wiring(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Listen.Addr = "127.0.0.1:0"
	cfg.Metrics.Enabled = true

	var (
		sw  *swarm.Swarm
		st  *state.NetworkState
		m   *metrics.Metrics
		lst *listener.Listener
	)
	app := fxtest.New(t,
		fx.Supply(cfg),
		identity.Module,
		noise.Module,
		upgrader.Module,
		metrics.Module,
		peerbook.Module,
		state.Module,
		session.Module,
		listener.Module,
		swarm.Module,
		fx.Populate(&sw, &st, &m, &lst),
	)
	app.RequireStart()
	require.NotNil(t, sw)
	require.NotNil(t, st)
	require.NotNil(t, m)
	require.NotNil(t, lst)
	assert.Equal(t, 0, st.PeerCount())
	app.RequireStop()

	t.Log("✅ 模块装配成功")
}

// TestNode_Lifecycle 测试启动、重复启动与关闭
func TestNode_Lifecycle(t *testing.T) {
	n, err := New(WithListenAddr("127.0.0.1:0"))
	require.NoError(t, err)

	_, err = n.Dial("127.0.0.1:1", types.PeerID{1})
	assert.ErrorIs(t, err, ErrNotStarted)

	require.NoError(t, n.Start(context.Background()))
	assert.ErrorIs(t, n.Start(context.Background()), ErrAlreadyStarted)
	require.NotNil(t, n.ListenAddr())
	assert.False(t, n.ID().IsEmpty())

	require.NoError(t, n.Close())
	require.NoError(t, n.Close())
	assert.ErrorIs(t, n.Start(context.Background()), ErrNodeClosed)

	_, ok := <-n.Events()
	assert.False(t, ok, "events channel should be closed")

	t.Log("✅ 节点生命周期")
}

// TestNode_InvalidOptions 测试非法选项
func TestNode_InvalidOptions(t *testing.T) {
	_, err := New(WithMaxPeers(2, 5))
	assert.Error(t, err)

	_, err = New(WithListenAddr("no-port"))
	assert.Error(t, err)

	_, err = New(WithKnownPeer("", "127.0.0.1:30303"))
	assert.Error(t, err)

	_, err = New(WithConfig(nil))
	assert.Error(t, err)

	_, err = New(WithoutListen(), WithKnownPeer("zz", "127.0.0.1:30303"))
	assert.Error(t, err, "unparsable known peer id")

	t.Log("✅ 非法选项被拒绝")
}

// TestNode_RequestResponse 测试两个节点建立会话后完成请求
func TestNode_RequestResponse(t *testing.T) {
	a := startNode(t)
	b := startNode(t, WithoutListen())
	assert.Nil(t, b.ListenAddr())

	_, err := b.Dial(a.ListenAddr().String(), a.ID())
	require.NoError(t, err)

	est := waitEvent[swarm.SessionEstablished](t, b)
	assert.Equal(t, a.ID(), est.Peer)
	waitEvent[swarm.SessionEstablished](t, a)
	assert.Equal(t, 1, a.PeerCount())
	require.Len(t, b.Peers(), 1)

	type result struct {
		resp wire.Response
		err  error
	}
	done := make(chan result, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		resp, err := b.Request(ctx, a.ID(), &wire.GetBlockBodies{})
		done <- result{resp, err}
	}()

	msg := waitEvent[swarm.ValidMessage](t, a)
	req, ok := msg.Message.(*wire.GetBlockBodies)
	require.True(t, ok, "got %T", msg.Message)
	a.SendMessage(b.ID(), &wire.BlockBodies{ID: req.ID})

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Equal(t, req.ID, r.resp.RequestID())
	case <-time.After(5 * time.Second):
		t.Fatal("request not completed")
	}

	_, err = a.Request(context.Background(), types.PeerID{9}, &wire.GetBlockBodies{})
	assert.ErrorIs(t, err, ErrPeerNotFound)

	a.DisconnectPeer(b.ID(), types.DisconnectUselessPeer)
	waitEvent[swarm.SessionClosed](t, a)
	waitEvent[swarm.SessionClosed](t, b)
	assert.Equal(t, 0, b.PeerCount())

	t.Log("✅ 节点请求应答")
}

// TestNode_KnownPeers 测试已知节点由出站维护自动拨号
func TestNode_KnownPeers(t *testing.T) {
	a := startNode(t)

	cfg := config.NewConfig()
	cfg.Network.MaintainInterval = config.Duration(50 * time.Millisecond)
	b := startNode(t,
		WithConfig(cfg),
		WithoutListen(),
		WithKnownPeer(a.ID().String(), a.ListenAddr().String()),
	)
	assert.Equal(t, 1, b.KnownPeers())

	est := waitEvent[swarm.SessionEstablished](t, b)
	assert.Equal(t, a.ID(), est.Peer)
	assert.Equal(t, types.DirOutbound, est.Direction)

	t.Log("✅ 已知节点自动拨号")
}
