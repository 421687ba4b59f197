// Package types 定义 chainnet 的公共数据结构
//
// 这是整个系统的最底层包，不依赖任何其他 chainnet 内部包。
// 所有类型都是纯值类型（或创建后不可变的共享类型），用于在各模块间传递数据。
//
// # 文件组织
//
//   - ids.go        - PeerID, SessionID
//   - capability.go - Capability, Capabilities（握手时宣告的协议能力集合）
//   - enums.go      - Direction, DisconnectReason
//
// # 与 wire 的区别
//
// pkg/types 定义 Go 内部数据结构（内存结构），
// internal/core/wire 定义网络协议消息（wire format）。
package types
