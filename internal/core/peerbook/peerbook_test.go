package peerbook

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-chainnet/pkg/types"
)

func testPeer(b byte) types.PeerID {
	var p types.PeerID
	p[0] = b
	p[31] = b
	return p
}

func testConfig() Config {
	return Config{MaxPeers: 16, DialBackoff: time.Second, MaxBackoff: 8 * time.Second}
}

func newMockClock() *clock.Mock {
	clk := clock.NewMock()
	clk.Set(time.Unix(1_700_000_000, 0))
	return clk
}

func openMemory(t *testing.T, cfg Config, clk clock.Clock) *PeerBook {
	t.Helper()
	book, err := Open(cfg, clk)
	require.NoError(t, err)
	t.Cleanup(func() { _ = book.Close() })
	return book
}

// TestPeerBook_AddAndGet 测试添加与读取
func TestPeerBook_AddAndGet(t *testing.T) {
	book := openMemory(t, testConfig(), newMockClock())

	require.NoError(t, book.AddPeer(testPeer(1), "10.0.0.1:30303"))
	require.NoError(t, book.AddPeer(testPeer(1), "10.0.0.2:30303"))
	assert.ErrorIs(t, book.AddPeer(types.EmptyPeerID, "x:1"), ErrInvalidRecord)
	assert.ErrorIs(t, book.AddPeer(testPeer(2), ""), ErrInvalidRecord)

	rec, ok := book.Get(testPeer(1))
	require.True(t, ok)
	assert.Equal(t, "10.0.0.2:30303", rec.Addr)
	assert.Equal(t, 1, book.Len())

	t.Log("✅ 添加与读取")
}

// TestPeerBook_Backoff 测试拨号退避按失败次数翻倍并封顶
func TestPeerBook_Backoff(t *testing.T) {
	clk := newMockClock()
	book := openMemory(t, testConfig(), clk)
	peer := testPeer(1)
	require.NoError(t, book.AddPeer(peer, "10.0.0.1:30303"))

	expect := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 8 * time.Second}
	for _, d := range expect {
		require.NoError(t, book.MarkDialFailed(peer))
		rec, _ := book.Get(peer)
		assert.Equal(t, clk.Now().Add(d), rec.NextDial)
		assert.Empty(t, book.Candidates(10, nil))

		clk.Add(d)
		assert.Len(t, book.Candidates(10, nil), 1)
	}

	require.NoError(t, book.MarkConnected(peer, ""))
	rec, _ := book.Get(peer)
	assert.Zero(t, rec.Failures)
	assert.Equal(t, clk.Now(), rec.LastSeen)
	assert.Equal(t, "10.0.0.1:30303", rec.Addr)

	// 未知节点的失败被忽略
	require.NoError(t, book.MarkDialFailed(testPeer(9)))
	_, ok := book.Get(testPeer(9))
	assert.False(t, ok)

	t.Log("✅ 拨号退避")
}

// TestPeerBook_CandidatesOrder 测试候选节点排序与排除
func TestPeerBook_CandidatesOrder(t *testing.T) {
	clk := newMockClock()
	book := openMemory(t, testConfig(), clk)

	require.NoError(t, book.MarkConnected(testPeer(1), "a:1"))
	clk.Add(time.Minute)
	require.NoError(t, book.MarkConnected(testPeer(2), "b:1"))
	require.NoError(t, book.AddPeer(testPeer(3), "c:1"))
	require.NoError(t, book.MarkDialFailed(testPeer(3)))
	clk.Add(time.Minute)

	got := book.Candidates(10, nil)
	require.Len(t, got, 3)
	assert.Equal(t, testPeer(2), got[0].Peer)
	assert.Equal(t, testPeer(1), got[1].Peer)
	assert.Equal(t, testPeer(3), got[2].Peer)

	got = book.Candidates(10, func(p types.PeerID) bool { return p == testPeer(2) })
	require.Len(t, got, 2)
	assert.Equal(t, testPeer(1), got[0].Peer)

	assert.Len(t, book.Candidates(1, nil), 1)
	assert.Nil(t, book.Candidates(0, nil))

	t.Log("✅ 候选节点排序")
}

// TestPeerBook_MemoryCapacity 测试内存存储容量上限
func TestPeerBook_MemoryCapacity(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPeers = 2
	book := openMemory(t, cfg, newMockClock())

	require.NoError(t, book.AddPeer(testPeer(1), "a:1"))
	require.NoError(t, book.AddPeer(testPeer(2), "b:1"))
	require.NoError(t, book.AddPeer(testPeer(3), "c:1"))

	assert.Equal(t, 2, book.Len())
	_, ok := book.Get(testPeer(1))
	assert.False(t, ok)

	t.Log("✅ 内存存储容量上限")
}

// TestPeerBook_BadgerPersistence 测试持久化存储重启后保留记录
func TestPeerBook_BadgerPersistence(t *testing.T) {
	dir := t.TempDir()
	clk := newMockClock()
	cfg := testConfig()
	cfg.Path = dir

	book, err := Open(cfg, clk)
	require.NoError(t, err)
	require.NoError(t, book.MarkConnected(testPeer(1), "10.0.0.1:30303"))
	require.NoError(t, book.AddPeer(testPeer(2), "10.0.0.2:30303"))
	require.NoError(t, book.MarkDialFailed(testPeer(2)))
	require.NoError(t, book.Remove(testPeer(3)))
	require.NoError(t, book.Close())
	assert.ErrorIs(t, book.AddPeer(testPeer(4), "x:1"), ErrClosed)

	book, err = Open(cfg, clk)
	require.NoError(t, err)
	defer book.Close()

	assert.Equal(t, 2, book.Len())
	rec, ok := book.Get(testPeer(1))
	require.True(t, ok)
	assert.Equal(t, "10.0.0.1:30303", rec.Addr)
	assert.True(t, rec.LastSeen.Equal(clk.Now()))

	rec, ok = book.Get(testPeer(2))
	require.True(t, ok)
	assert.Equal(t, uint32(1), rec.Failures)
	assert.True(t, rec.NextDial.Equal(clk.Now().Add(time.Second)))

	require.NoError(t, book.Remove(testPeer(2)))
	assert.Equal(t, 1, book.Len())

	t.Log("✅ 持久化存储")
}

// TestPeerBook_BadgerEviction 测试持久化存储淘汰最久未活跃的节点
func TestPeerBook_BadgerEviction(t *testing.T) {
	clk := newMockClock()
	cfg := testConfig()
	cfg.Path = t.TempDir()
	cfg.MaxPeers = 2

	book, err := Open(cfg, clk)
	require.NoError(t, err)
	defer book.Close()

	require.NoError(t, book.MarkConnected(testPeer(1), "a:1"))
	clk.Add(time.Minute)
	require.NoError(t, book.MarkConnected(testPeer(2), "b:1"))
	clk.Add(time.Minute)
	require.NoError(t, book.MarkConnected(testPeer(3), "c:1"))

	assert.Equal(t, 2, book.Len())
	_, ok := book.Get(testPeer(1))
	assert.False(t, ok)
	_, ok = book.Get(testPeer(3))
	assert.True(t, ok)

	t.Log("✅ 持久化存储淘汰")
}

// TestRecord_Encoding 测试零值时间编码
func TestRecord_Encoding(t *testing.T) {
	rec := Record{Peer: testPeer(5), Addr: "a:1", Failures: 3}
	data, err := encodeRecord(rec)
	require.NoError(t, err)
	got, err := decodeRecord(data)
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	t.Log("✅ 记录编码")
}
