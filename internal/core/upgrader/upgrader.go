package upgrader

import (
	"context"
	"fmt"
	"net"

	"github.com/dep2p/go-chainnet/internal/core/security/noise"
	"github.com/dep2p/go-chainnet/internal/core/wire"
	"github.com/dep2p/go-chainnet/pkg/lib/log"
	"github.com/dep2p/go-chainnet/pkg/types"
)

var logger = log.Logger("core/upgrader")

// Upgrader 连接升级器
type Upgrader struct {
	security *noise.Transport
	cfg      Config
}

// New 创建连接升级器
func New(security *noise.Transport, cfg Config) (*Upgrader, error) {
	if security == nil {
		return nil, ErrNilTransport
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Upgrader{security: security, cfg: cfg}, nil
}

// LocalPeer 返回本地节点 ID
func (u *Upgrader) LocalPeer() types.PeerID {
	return u.security.LocalPeer()
}

// Upgrade 升级连接
//
// 出站必须提供 remote；入站 remote 由安全握手确定。
// 任何一步失败都会关闭 conn。
func (u *Upgrader) Upgrade(ctx context.Context, conn net.Conn, dir types.Direction, remote types.PeerID) (wire.Channel, *wire.PeerInfo, error) {
	if dir == types.DirOutbound && remote.IsEmpty() {
		conn.Close()
		return nil, nil, ErrNoPeerID
	}

	ctx, cancel := context.WithTimeout(ctx, u.cfg.HandshakeTimeout)
	defer cancel()

	var (
		secConn *noise.Conn
		err     error
	)
	if dir == types.DirOutbound {
		secConn, err = u.security.SecureOutbound(ctx, conn, remote)
	} else {
		secConn, err = u.security.SecureInbound(ctx, conn)
	}
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("security handshake: %w", err)
	}

	stream, info, err := wire.Handshake(ctx, secConn, u.LocalPeer(), secConn.RemotePeer(), u.cfg.Wire)
	if err != nil {
		logger.Debug("协议握手失败", "peer", secConn.RemotePeer().ShortString(), "direction", dir, "error", err)
		secConn.Close()
		return nil, nil, fmt.Errorf("protocol handshake: %w", err)
	}

	logger.Debug("连接升级成功",
		"peer", info.ID.ShortString(),
		"direction", dir,
		"client", info.ClientID,
		"caps", info.Capabilities.String())
	return stream, info, nil
}
