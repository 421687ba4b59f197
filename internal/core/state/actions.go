package state

import (
	"github.com/dep2p/go-chainnet/internal/core/wire"
	"github.com/dep2p/go-chainnet/pkg/types"
)

// Action 网络状态要求 swarm 执行的动作
type Action interface {
	stateAction()
}

// Connect 拨号
type Connect struct {
	Addr string
	Peer types.PeerID
}

// Disconnect 断开节点，Reason 为空时使用 DisconnectRequested
type Disconnect struct {
	Peer   types.PeerID
	Reason *types.DisconnectReason
}

// NewBlock 向节点发送完整区块
type NewBlock struct {
	Peer  types.PeerID
	Block *wire.NewBlock
}

// NewBlockHashes 向节点发送区块哈希公告
type NewBlockHashes struct {
	Peer   types.PeerID
	Hashes wire.NewBlockHashes
}

func (Connect) stateAction()        {}
func (Disconnect) stateAction()     {}
func (NewBlock) stateAction()       {}
func (NewBlockHashes) stateAction() {}
