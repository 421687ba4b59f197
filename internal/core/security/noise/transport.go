package noise

import (
	"context"
	"net"
	"time"

	"github.com/dep2p/go-chainnet/internal/core/identity"
	"github.com/dep2p/go-chainnet/pkg/lib/log"
	"github.com/dep2p/go-chainnet/pkg/types"
)

var logger = log.Logger("core/security/noise")

// Transport Noise 安全传输
type Transport struct {
	id *identity.Identity
}

// New 创建 Noise 传输
func New(id *identity.Identity) *Transport {
	return &Transport{id: id}
}

// LocalPeer 返回本地节点 ID
func (t *Transport) LocalPeer() types.PeerID {
	return t.id.ID()
}

// SecureInbound 保护入站连接（响应者）
func (t *Transport) SecureInbound(ctx context.Context, conn net.Conn) (*Conn, error) {
	return t.secure(ctx, conn, false, types.PeerID{})
}

// SecureOutbound 保护出站连接（发起者），并校验远端 ID
func (t *Transport) SecureOutbound(ctx context.Context, conn net.Conn, remote types.PeerID) (*Conn, error) {
	return t.secure(ctx, conn, true, remote)
}

func (t *Transport) secure(ctx context.Context, conn net.Conn, initiator bool, remote types.PeerID) (*Conn, error) {
	if conn == nil {
		return nil, ErrNilConn
	}

	// 握手期间用 ctx 的截止时间约束读写，ctx 取消时立即打断阻塞 IO
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	sc, err := performHandshake(conn, t.id.StaticKey(), initiator, remote)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		logger.Debug("Noise 握手失败", "remote", conn.RemoteAddr(), "initiator", initiator, "error", err)
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})

	logger.Debug("Noise 握手成功", "peer", sc.RemotePeer().ShortString(), "initiator", initiator)
	return sc, nil
}
