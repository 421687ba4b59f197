// Package session 实现会话生命周期管理
//
// # 组成
//
//   - ActiveSession：每个已认证节点一个，在独立 goroutine 中驱动协议通道，
//     跟踪在途请求并缓冲出站消息
//   - 待定会话：TCP 拨号与认证握手期间的会话，同样各占一个 goroutine
//   - Manager：持有全部待定与活跃会话，负责出站拨号、入站准入、
//     断开编排，并把所有会话事件汇聚为一个非阻塞事件源
//
// # 调度
//
// ActiveSession 的每一轮按固定优先级分阶段排空输入，
// 只要任一阶段有进展就重复整轮，直到一整轮没有任何进展才挂起：
//
//  1. 管理器命令（全部取完；命令通道关闭即管理器已退出，立即终止）
//  2. 本地请求（全部取完并记为在途；请求 ID 由 RequestSender 在入队时递增分配）
//  3. 发送（通道有容量时按 FIFO 取出缓冲的出站消息）
//  4. 入站消息（全部取完；应答从在途表移除，能力之外的消息报告为无效）
//
// 挂起时阻塞在命令/请求唤醒、通道唤醒与超时检查时钟上，不会忙等。
//
// # 取消
//
// 关闭会话的命令通道是唯一的取消原语。
// 在途请求在应答、超时或会话终止三者中最先发生时被移除，且只移除一次。
package session
