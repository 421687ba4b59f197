// Package identity 提供节点身份管理
//
// 节点身份即 Noise 握手使用的 Curve25519 静态密钥对，
// 公钥直接作为 PeerID。身份模块负责：
//   - 密钥对生成
//   - 从十六进制私钥或密钥文件加载
//   - 密钥文件持久化
package identity
