package metrics

import (
	"sort"
	"sync"

	"github.com/benbjohnson/clock"
)

// Stats 某一维度的带宽统计
type Stats struct {
	TotalIn  int64
	TotalOut int64
	RateIn   float64
	RateOut  float64
}

// Reporter 消息大小上报接口
type Reporter interface {
	// LogSentMessage 记录发往对端的消息
	LogSentMessage(size int64, protocol string)

	// LogRecvMessage 记录从对端收到的消息
	LogRecvMessage(size int64, protocol string)
}

// BandwidthCounter 带宽计数器
type BandwidthCounter struct {
	clock clock.Clock

	in  *RateMeter
	out *RateMeter

	mu          sync.RWMutex
	protocolIn  map[string]*RateMeter
	protocolOut map[string]*RateMeter
}

var _ Reporter = (*BandwidthCounter)(nil)

// NewBandwidthCounter 创建带宽计数器
func NewBandwidthCounter(clk clock.Clock) *BandwidthCounter {
	if clk == nil {
		clk = clock.New()
	}
	return &BandwidthCounter{
		clock:       clk,
		in:          NewRateMeter(clk),
		out:         NewRateMeter(clk),
		protocolIn:  make(map[string]*RateMeter),
		protocolOut: make(map[string]*RateMeter),
	}
}

// LogSentMessage 实现 Reporter
func (b *BandwidthCounter) LogSentMessage(size int64, protocol string) {
	if b == nil {
		return
	}
	b.out.Add(size)
	b.meter(b.protocolOut, protocol).Add(size)
}

// LogRecvMessage 实现 Reporter
func (b *BandwidthCounter) LogRecvMessage(size int64, protocol string) {
	if b == nil {
		return
	}
	b.in.Add(size)
	b.meter(b.protocolIn, protocol).Add(size)
}

func (b *BandwidthCounter) meter(m map[string]*RateMeter, protocol string) *RateMeter {
	b.mu.RLock()
	r, ok := m[protocol]
	b.mu.RUnlock()
	if ok {
		return r
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if r, ok = m[protocol]; !ok {
		r = NewRateMeter(b.clock)
		m[protocol] = r
	}
	return r
}

// Totals 返回全局带宽统计
func (b *BandwidthCounter) Totals() Stats {
	if b == nil {
		return Stats{}
	}
	return Stats{
		TotalIn:  b.in.Total(),
		TotalOut: b.out.Total(),
		RateIn:   b.in.Rate(),
		RateOut:  b.out.Rate(),
	}
}

// ForProtocol 返回指定协议的带宽统计
func (b *BandwidthCounter) ForProtocol(protocol string) Stats {
	if b == nil {
		return Stats{}
	}
	b.mu.RLock()
	in, out := b.protocolIn[protocol], b.protocolOut[protocol]
	b.mu.RUnlock()

	var s Stats
	if in != nil {
		s.TotalIn, s.RateIn = in.Total(), in.Rate()
	}
	if out != nil {
		s.TotalOut, s.RateOut = out.Total(), out.Rate()
	}
	return s
}

// Protocols 返回出现过的协议名（有序）
func (b *BandwidthCounter) Protocols() []string {
	if b == nil {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	seen := make(map[string]struct{}, len(b.protocolIn)+len(b.protocolOut))
	for p := range b.protocolIn {
		seen[p] = struct{}{}
	}
	for p := range b.protocolOut {
		seen[p] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
