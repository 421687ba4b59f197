package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 会话层 Prometheus 指标
type Metrics struct {
	sessionsActive      prometheus.Gauge
	sessionsPending     *prometheus.GaugeVec
	sessionsEstablished *prometheus.CounterVec
	sessionsClosed      *prometheus.CounterVec
	pendingClosed       *prometheus.CounterVec
	dialFailures        prometheus.Counter
	disconnects         *prometheus.CounterVec

	messagesReceived *prometheus.CounterVec
	messagesSent     *prometheus.CounterVec
	messagesInvalid  *prometheus.CounterVec
	messagesDropped  *prometheus.CounterVec

	requestsTimeout  prometheus.Counter
	requestDuration  *prometheus.HistogramVec
	swarmEvents      *prometheus.CounterVec
	listenerAccepted prometheus.Counter
	admissionReject  prometheus.Counter

	bandwidth *BandwidthCounter
}

// New 创建并注册指标
//
// bandwidth 为 nil 时不导出带宽指标。
func New(namespace string, reg prometheus.Registerer, bandwidth *BandwidthCounter) (*Metrics, error) {
	m := &Metrics{
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "session", Name: "active",
			Help: "Number of active sessions.",
		}),
		sessionsPending: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "session", Name: "pending",
			Help: "Number of sessions still authenticating.",
		}, []string{"direction"}),
		sessionsEstablished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "session", Name: "established_total",
			Help: "Sessions that completed authentication.",
		}, []string{"direction"}),
		sessionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "session", Name: "closed_total",
			Help: "Active sessions that terminated.",
		}, []string{"result"}),
		pendingClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "session", Name: "pending_closed_total",
			Help: "Pending sessions that failed authentication.",
		}, []string{"direction"}),
		dialFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "session", Name: "dial_failures_total",
			Help: "Outbound TCP dials that failed.",
		}),
		disconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "session", Name: "disconnects_total",
			Help: "Disconnects issued locally, by reason.",
		}, []string{"reason"}),
		messagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "messages", Name: "received_total",
			Help: "Messages received from peers.",
		}, []string{"message"}),
		messagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "messages", Name: "sent_total",
			Help: "Messages handed to peer channels.",
		}, []string{"message"}),
		messagesInvalid: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "messages", Name: "invalid_total",
			Help: "Messages outside the capabilities a peer announced.",
		}, []string{"message"}),
		messagesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "messages", Name: "dropped_total",
			Help: "Outbound messages dropped before reaching a session.",
		}, []string{"reason"}),
		requestsTimeout: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "requests", Name: "timeout_total",
			Help: "In-flight requests that timed out.",
		}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "requests", Name: "duration_seconds",
			Help:    "Time from sending a request to receiving its response.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"message"}),
		swarmEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "swarm", Name: "events_total",
			Help: "Events emitted by the swarm.",
		}, []string{"event"}),
		listenerAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "listener", Name: "accepted_total",
			Help: "Inbound connections admitted to the session manager.",
		}),
		admissionReject: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "swarm", Name: "admission_rejected_total",
			Help: "Established sessions rejected by network state.",
		}),
		bandwidth: bandwidth,
	}

	collectors := []prometheus.Collector{
		m.sessionsActive, m.sessionsPending, m.sessionsEstablished, m.sessionsClosed,
		m.pendingClosed, m.dialFailures, m.disconnects,
		m.messagesReceived, m.messagesSent, m.messagesInvalid, m.messagesDropped,
		m.requestsTimeout, m.requestDuration, m.swarmEvents, m.listenerAccepted, m.admissionReject,
	}
	if bandwidth != nil {
		collectors = append(collectors, newBandwidthCollector(namespace, bandwidth))
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Bandwidth 返回带宽计数器，可能为 nil
func (m *Metrics) Bandwidth() *BandwidthCounter {
	if m == nil {
		return nil
	}
	return m.bandwidth
}

// SessionPending 调整认证中会话数
func (m *Metrics) SessionPending(direction string, delta float64) {
	if m == nil {
		return
	}
	m.sessionsPending.WithLabelValues(direction).Add(delta)
}

// SessionEstablished 记录会话建立
func (m *Metrics) SessionEstablished(direction string) {
	if m == nil {
		return
	}
	m.sessionsEstablished.WithLabelValues(direction).Inc()
	m.sessionsActive.Inc()
}

// SessionClosed 记录活跃会话终止
func (m *Metrics) SessionClosed(err error) {
	if m == nil {
		return
	}
	result := "normal"
	if err != nil {
		result = "error"
	}
	m.sessionsClosed.WithLabelValues(result).Inc()
	m.sessionsActive.Dec()
}

// PendingClosed 记录认证失败
func (m *Metrics) PendingClosed(direction string) {
	if m == nil {
		return
	}
	m.pendingClosed.WithLabelValues(direction).Inc()
}

// DialFailed 记录拨号失败
func (m *Metrics) DialFailed() {
	if m == nil {
		return
	}
	m.dialFailures.Inc()
}

// Disconnect 记录本地发起的断开
func (m *Metrics) Disconnect(reason string) {
	if m == nil {
		return
	}
	m.disconnects.WithLabelValues(reason).Inc()
}

// MessageReceived 记录收到的消息
func (m *Metrics) MessageReceived(name string) {
	if m == nil {
		return
	}
	m.messagesReceived.WithLabelValues(name).Inc()
}

// MessageSent 记录发出的消息
func (m *Metrics) MessageSent(name string) {
	if m == nil {
		return
	}
	m.messagesSent.WithLabelValues(name).Inc()
}

// MessageInvalid 记录能力之外的消息
func (m *Metrics) MessageInvalid(name string) {
	if m == nil {
		return
	}
	m.messagesInvalid.WithLabelValues(name).Inc()
}

// MessageDropped 记录被丢弃的出站消息
func (m *Metrics) MessageDropped(reason string) {
	if m == nil {
		return
	}
	m.messagesDropped.WithLabelValues(reason).Inc()
}

// RequestTimeout 记录请求超时
func (m *Metrics) RequestTimeout() {
	if m == nil {
		return
	}
	m.requestsTimeout.Inc()
}

// RequestCompleted 记录请求往返时间
func (m *Metrics) RequestCompleted(name string, d time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(name).Observe(d.Seconds())
}

// SwarmEvent 记录 Swarm 事件
func (m *Metrics) SwarmEvent(name string) {
	if m == nil {
		return
	}
	m.swarmEvents.WithLabelValues(name).Inc()
}

// ListenerAccepted 记录被接纳的入站连接
func (m *Metrics) ListenerAccepted() {
	if m == nil {
		return
	}
	m.listenerAccepted.Inc()
}

// AdmissionRejected 记录被网络状态拒绝的会话
func (m *Metrics) AdmissionRejected() {
	if m == nil {
		return
	}
	m.admissionReject.Inc()
}

// LogSentMessage 转发到带宽计数器
func (m *Metrics) LogSentMessage(size int64, protocol string) {
	m.Bandwidth().LogSentMessage(size, protocol)
}

// LogRecvMessage 转发到带宽计数器
func (m *Metrics) LogRecvMessage(size int64, protocol string) {
	m.Bandwidth().LogRecvMessage(size, protocol)
}

var _ Reporter = (*Metrics)(nil)

// bandwidthCollector 在抓取时读取带宽计数器
type bandwidthCollector struct {
	counter *BandwidthCounter
	bytes   *prometheus.Desc
	rate    *prometheus.Desc
}

func newBandwidthCollector(namespace string, counter *BandwidthCounter) *bandwidthCollector {
	return &bandwidthCollector{
		counter: counter,
		bytes: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "bandwidth", "bytes_total"),
			"Payload bytes exchanged with peers.",
			[]string{"protocol", "direction"}, nil),
		rate: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "bandwidth", "rate_bytes"),
			"Average payload bytes per second over the last minute.",
			[]string{"protocol", "direction"}, nil),
	}
}

func (c *bandwidthCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.bytes
	ch <- c.rate
}

func (c *bandwidthCollector) Collect(ch chan<- prometheus.Metric) {
	for _, p := range c.counter.Protocols() {
		s := c.counter.ForProtocol(p)
		ch <- prometheus.MustNewConstMetric(c.bytes, prometheus.CounterValue, float64(s.TotalIn), p, "in")
		ch <- prometheus.MustNewConstMetric(c.bytes, prometheus.CounterValue, float64(s.TotalOut), p, "out")
		ch <- prometheus.MustNewConstMetric(c.rate, prometheus.GaugeValue, s.RateIn, p, "in")
		ch <- prometheus.MustNewConstMetric(c.rate, prometheus.GaugeValue, s.RateOut, p, "out")
	}
}
