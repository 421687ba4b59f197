// Package swarm 把网络状态、会话管理器与监听器合并为一个有序事件流
//
// # 调度
//
// 消费者在一个 goroutine 中循环调用 Next。每轮调度按严格优先级：
//
//  1. 取完网络状态的全部动作并立即执行（拨号、断开、发送区块公告）
//  2. 取一个会话事件并转换；SessionEstablished 先交给网络状态准入，
//     被拒绝的会话以 TooManyPeers 断开且不上报；处理完一个会话事件后回到 1
//  3. 取一个监听器事件：入站连接交给会话管理器准入，
//     监听器错误或关闭作为终止事件上报，之后不再读取监听器
//
// 三个来源都为空时 Next 才会阻塞。
//
// # 外部命令
//
// DialOutbound、SendMessage 与 DisconnectPeer 都是尽力而为的非阻塞操作，
// 对未知节点的操作被静默忽略。DialOutbound 在下一轮调度上报
// OutgoingTCPConnection。
package swarm
