// Package noise 实现会话层的 Noise 安全通道
//
// 握手使用 Noise_XX_25519_ChaChaPoly_SHA256：
//
//	-> e
//	<- e, ee, s, es
//	-> s, se
//
// 双方静态公钥即节点 ID，握手完成后通过 PeerStatic 得到远端 ID，
// 无需额外的签名 payload。出站连接会校验远端 ID 与拨号目标一致。
//
// 握手完成后，每条加密消息以 2 字节大端长度前缀成帧，
// 单帧密文不超过 65535 字节，较大的写入自动分片。
package noise
