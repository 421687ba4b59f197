package metrics

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// windowSize 滑动窗口的秒数
const windowSize = 60

// RateMeter 速率计算器（60 个 1 秒桶的滑动窗口）
type RateMeter struct {
	clock clock.Clock

	mu       sync.Mutex
	buckets  [windowSize]int64
	lastIdx  int
	lastTime time.Time
	total    int64
}

// NewRateMeter 创建速率计算器
func NewRateMeter(clk clock.Clock) *RateMeter {
	if clk == nil {
		clk = clock.New()
	}
	return &RateMeter{clock: clk, lastTime: clk.Now()}
}

// Add 记录字节数
func (r *RateMeter) Add(n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advance()
	r.buckets[r.lastIdx] += n
	r.total += n
}

// Rate 返回最近 60 秒的平均速率（字节/秒）
func (r *RateMeter) Rate() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advance()

	var sum int64
	for _, v := range r.buckets {
		sum += v
	}
	return float64(sum) / windowSize
}

// Total 返回累计总量
func (r *RateMeter) Total() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

// advance 按流逝的整秒数轮转桶，调用方持有锁
func (r *RateMeter) advance() {
	now := r.clock.Now()
	seconds := int(now.Sub(r.lastTime) / time.Second)
	if seconds <= 0 {
		return
	}
	if seconds >= windowSize {
		r.buckets = [windowSize]int64{}
		r.lastIdx = 0
	} else {
		for i := 0; i < seconds; i++ {
			r.lastIdx = (r.lastIdx + 1) % windowSize
			r.buckets[r.lastIdx] = 0
		}
	}
	r.lastTime = r.lastTime.Add(time.Duration(seconds) * time.Second)
}
