// Package metrics 提供会话层的 Prometheus 指标与带宽统计
//
// Metrics 汇集会话、消息、请求与 Swarm 事件相关的计数器，
// 所有方法对 nil 接收者安全，组件可以在未启用指标时直接持有 nil。
//
// BandwidthCounter 按协议统计收发字节，并用 60 秒滑动窗口计算速率，
// 通过 Collector 以 Prometheus 指标导出。
//
// 配置了监听地址时，Server 以 promhttp 暴露 /metrics。
package metrics
