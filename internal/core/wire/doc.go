// Package wire 实现节点间的消息编解码与协议握手
//
// # 帧格式
//
// 每条消息在 Noise 加密通道上以如下格式成帧：
//
//	uvarint(len(body)) | body
//	body = uvarint(code) | snappy(payload)
//
// payload 为 RLP 编码的消息体。
//
// # 消息码空间
//
// 0x00-0x0f 为基础协议（Hello、Disconnect、Ping、Pong），
// 其后按能力划分固定区间：eth 占用 0x10 起的 17 个码，snap 占用 0x21 起的 8 个码。
// 不属于任何已知区间的消息码视为未知能力。
//
// # 握手
//
// 加密通道建立后，双方交换 Hello（客户端标识、能力列表、节点 ID），
// 要求至少共享一个 eth 版本；随后交换 Status（网络 ID、创世哈希、链头），
// 任一检查失败都会先发送 Disconnect 再关闭连接。
//
// # Stream
//
// Stream 在握手完成后接管连接，提供非阻塞的发送就绪检查、
// 入队发送、取下一条消息与唤醒通道，读写各由一个 goroutine 驱动。
package wire
