// Package state 实现网络状态：节点准入、区块传播与出站维护策略
//
// NetworkState 不直接操作连接。它只产生 Action，由 swarm 在每轮调度
// 开始时取出并执行：
//
//   - Connect：拨号
//   - Disconnect：断开节点
//   - NewBlock / NewBlockHashes：向节点发送区块公告
//
// # 准入
//
// swarm 在上报 SessionEstablished 之前调用 OnSessionActivated。
// 活跃节点已达 MaxActivePeers 时返回 *AddSessionError（AtCapacity），
// swarm 随后以 TooManyPeers 断开该会话并吞掉事件。
// 活跃节点计数只由 swarm 转换的会话事件修改。
//
// # 区块传播
//
// AnnounceBlock 把完整区块发给 ⌈√n⌉ 个尚不知道该区块的节点，
// 其余节点只收到哈希公告。每个节点的已知区块保存在容量有限的 LRU 中。
//
// # 出站维护
//
// Start 启动维护循环，按 MaintainInterval 从节点簿补齐空闲出站槽位，
// 处于拨号退避中的节点会被跳过。
package state
