// Package upgrader 将原始 TCP 连接升级为已认证的协议通道
//
// 升级流程：
//  1. Noise XX 安全握手，得到对端节点 ID（出站时校验与拨号目标一致）
//  2. Hello/Status 协议握手，协商共享能力
//  3. 在加密连接上创建 wire.Stream
//
// 整个流程受 HandshakeTimeout 约束，失败时连接会被关闭。
package upgrader
