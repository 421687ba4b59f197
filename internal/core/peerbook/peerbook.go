package peerbook

import (
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-chainnet/pkg/lib/log"
	"github.com/dep2p/go-chainnet/pkg/types"
)

var logger = log.Logger("core/peerbook")

// PeerBook 已知节点簿
//
// 所有方法并发安全。读改写操作由一把互斥锁串行化。
type PeerBook struct {
	store      Store
	clock      clock.Clock
	backoff    time.Duration
	maxBackoff time.Duration

	mu     sync.Mutex
	closed bool
}

// New 基于给定存储创建节点簿
func New(store Store, cfg Config, clk clock.Clock) *PeerBook {
	if clk == nil {
		clk = clock.New()
	}
	return &PeerBook{
		store:      store,
		clock:      clk,
		backoff:    cfg.DialBackoff,
		maxBackoff: cfg.MaxBackoff,
	}
}

// Open 按配置选择存储并创建节点簿
func Open(cfg Config, clk clock.Clock) (*PeerBook, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var (
		store Store
		err   error
	)
	if cfg.Path == "" {
		store, err = NewMemoryStore(cfg.MaxPeers)
	} else {
		store, err = OpenBadgerStore(cfg.Path, cfg.MaxPeers)
	}
	if err != nil {
		return nil, err
	}
	return New(store, cfg, clk), nil
}

// AddPeer 记录节点地址，已有记录只更新地址
func (b *PeerBook) AddPeer(peer types.PeerID, addr string) error {
	if peer.IsEmpty() || addr == "" {
		return ErrInvalidRecord
	}
	return b.update(peer, func(r *Record, exists bool) bool {
		if exists && r.Addr == addr {
			return false
		}
		r.Addr = addr
		return true
	})
}

// Get 返回节点记录
func (b *PeerBook) Get(peer types.PeerID) (Record, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return Record{}, false
	}
	r, ok, err := b.store.Get(peer)
	if err != nil {
		logger.Warn("读取节点记录失败", "peer", peer.ShortString(), "error", err)
		return Record{}, false
	}
	return r, ok
}

// MarkConnected 会话建立成功：更新地址与活跃时间，清除退避
//
// addr 为空时保留原地址；没有地址的新节点不会被记录。
func (b *PeerBook) MarkConnected(peer types.PeerID, addr string) error {
	now := b.clock.Now()
	return b.update(peer, func(r *Record, exists bool) bool {
		if addr != "" {
			r.Addr = addr
		}
		if r.Addr == "" {
			return false
		}
		r.LastSeen = now
		r.Failures = 0
		r.NextDial = time.Time{}
		return true
	})
}

// MarkDialFailed 记录一次拨号失败并推迟下次拨号，未知节点忽略
func (b *PeerBook) MarkDialFailed(peer types.PeerID) error {
	now := b.clock.Now()
	return b.update(peer, func(r *Record, exists bool) bool {
		if !exists {
			return false
		}
		r.Failures++
		r.LastDial = now
		r.NextDial = now.Add(b.backoffFor(r.Failures))
		logger.Debug("拨号失败，进入退避",
			"peer", peer.ShortString(),
			"failures", r.Failures,
			"next", r.NextDial)
		return true
	})
}

// backoffFor 第 n 次连续失败后的退避时间
func (b *PeerBook) backoffFor(failures uint32) time.Duration {
	if b.backoff <= 0 || failures == 0 {
		return 0
	}
	d := b.backoff
	for i := uint32(1); i < failures; i++ {
		d *= 2
		if d >= b.maxBackoff {
			return b.maxBackoff
		}
	}
	return d
}

// Candidates 返回最多 n 个当前允许拨号的节点
//
// 失败次数少的优先，其次最近活跃的优先。exclude 返回 true 的节点被跳过。
func (b *PeerBook) Candidates(n int, exclude func(types.PeerID) bool) []Record {
	if n <= 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}

	all, err := b.store.All()
	if err != nil {
		logger.Warn("读取节点簿失败", "error", err)
		return nil
	}
	now := b.clock.Now()
	out := all[:0]
	for _, r := range all {
		if !r.Dialable(now) || (exclude != nil && exclude(r.Peer)) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Failures != out[j].Failures {
			return out[i].Failures < out[j].Failures
		}
		return out[i].LastSeen.After(out[j].LastSeen)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Remove 删除节点
func (b *PeerBook) Remove(peer types.PeerID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	return b.store.Delete(peer)
}

// Len 返回节点数
func (b *PeerBook) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0
	}
	return b.store.Len()
}

// Close 关闭存储
func (b *PeerBook) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.store.Close()
}

// update 读改写一条记录，fn 返回 false 时不写回
func (b *PeerBook) update(peer types.PeerID, fn func(r *Record, exists bool) bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	r, exists, err := b.store.Get(peer)
	if err != nil {
		return err
	}
	if !exists {
		r = Record{Peer: peer}
	}
	if !fn(&r, exists) {
		return nil
	}
	return b.store.Put(r)
}
