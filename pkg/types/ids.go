package types

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ============================================================================
//                              PeerID - 节点标识
// ============================================================================

// PeerID 节点唯一标识符
//
// 即节点的 Noise 静态公钥（Curve25519，32 字节），在重连之间保持不变。
// 对外用于拨号、断开以及消息路由。
//
// 外部表示格式：
//   - String(): 十六进制编码
//   - ShortString(): 前 8 个十六进制字符（日志简短标识）
type PeerID [32]byte

// EmptyPeerID 空节点 ID
var EmptyPeerID PeerID

// ErrInvalidPeerID 无效的节点 ID
var ErrInvalidPeerID = errors.New("invalid peer id: must be 32 bytes hex")

// String 返回 PeerID 的十六进制字符串表示
func (id PeerID) String() string {
	return hex.EncodeToString(id[:])
}

// ShortString 返回 PeerID 的短字符串表示
func (id PeerID) ShortString() string {
	return id.String()[:8]
}

// Bytes 返回 PeerID 的字节切片
func (id PeerID) Bytes() []byte {
	return id[:]
}

// IsEmpty 检查 PeerID 是否为空
func (id PeerID) IsEmpty() bool {
	return id == EmptyPeerID
}

// MarshalText 实现 encoding.TextMarshaler
func (id PeerID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (id *PeerID) UnmarshalText(text []byte) error {
	parsed, err := ParsePeerID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// PeerIDFromBytes 从字节切片创建 PeerID
func PeerIDFromBytes(b []byte) (PeerID, error) {
	if len(b) != len(EmptyPeerID) {
		return EmptyPeerID, ErrInvalidPeerID
	}
	var id PeerID
	copy(id[:], b)
	return id, nil
}

// ParsePeerID 解析十六进制字符串形式的 PeerID（允许 0x 前缀）
func ParsePeerID(s string) (PeerID, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return EmptyPeerID, fmt.Errorf("%w: %v", ErrInvalidPeerID, err)
	}
	return PeerIDFromBytes(b)
}

// ============================================================================
//                              SessionID - 会话标识
// ============================================================================

// SessionID 会话标识
//
// 由会话管理器单调递增分配，在会话管理器生命周期内唯一。
// 认证完成前后都使用同一个 SessionID 标识会话。
type SessionID uint64

// String 返回会话标识的字符串表示
func (id SessionID) String() string {
	return fmt.Sprintf("session-%d", uint64(id))
}
