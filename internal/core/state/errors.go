package state

import (
	"errors"
	"fmt"

	"github.com/dep2p/go-chainnet/pkg/types"
)

// ErrAtCapacity 活跃节点已满
var ErrAtCapacity = errors.New("state: at capacity")

// AddSessionErrorKind 会话准入失败的类型
type AddSessionErrorKind int

const (
	// AtCapacity 活跃节点已达上限
	AtCapacity AddSessionErrorKind = iota
)

// AddSessionError 新建立的会话被网络状态拒绝
type AddSessionError struct {
	Kind AddSessionErrorKind
	Peer types.PeerID
}

func (e *AddSessionError) Error() string {
	return fmt.Sprintf("state: reject session from %s: at capacity", e.Peer.ShortString())
}

func (e *AddSessionError) Unwrap() error {
	return ErrAtCapacity
}
