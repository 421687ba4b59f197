// Package listener 实现入站 TCP 连接监听
//
// accept 循环在独立 goroutine 中运行，结果以事件形式放入有界队列，
// 由上层通过非阻塞的 Poll 取出、在 Wake 上等待：
//   - Incoming：新的入站连接
//   - Error：监听器失败（终止事件）
//   - Closed：监听器已关闭（终止事件）
//
// 队列满时 accept 循环阻塞，形成入站背压；
// 可选的令牌桶限速器约束每秒接受的连接数。
// 终止事件只投递一次，之后 Poll 不再返回事件，监听器需要由调用方重建。
package listener
