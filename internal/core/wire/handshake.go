package wire

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/dep2p/go-chainnet/pkg/types"
)

// rejectTimeout 拒绝握手时发送 Disconnect 的写超时
const rejectTimeout = 500 * time.Millisecond

// PeerInfo 握手得到的对端信息
type PeerInfo struct {
	ID         types.PeerID
	ClientID   string
	ListenPort uint64

	// Capabilities 对端宣告的全部能力
	Capabilities *types.Capabilities

	// EthVersion 双方共享的最高 eth 版本
	EthVersion uint

	Status *Status
}

// Handshake 在已认证的连接上完成 Hello/Status 交换并返回 Stream
//
// remote 为安全层认证得到的对端 ID，Hello 中宣告的 ID 必须与之一致。
// 失败时连接由调用方关闭。
func Handshake(ctx context.Context, conn net.Conn, local, remote types.PeerID, cfg Config) (*Stream, *PeerInfo, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	rw := newFrameRW(conn, cfg.MaxMessageSize)
	info, err := handshake(rw, conn, local, remote, cfg)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		return nil, nil, err
	}
	if !stop() {
		return nil, nil, ctx.Err()
	}
	_ = conn.SetDeadline(time.Time{})

	return newStream(conn, rw, cfg.SendBuffer, cfg.RecvBuffer), info, nil
}

func handshake(rw *frameRW, conn net.Conn, local, remote types.PeerID, cfg Config) (*PeerInfo, error) {
	if remote == local {
		return nil, reject(rw, conn, types.DisconnectConnectedToSelf, nil)
	}

	hello := &Hello{
		Version:    ProtocolVersion,
		ClientID:   cfg.ClientID,
		Caps:       cfg.Capabilities.List(),
		ListenPort: cfg.ListenPort,
		ID:         local.Bytes(),
	}
	reply, err := exchange(rw, hello, HelloMsg)
	if err != nil {
		return nil, err
	}
	their := reply.(*Hello)

	if their.Version < ProtocolVersion {
		return nil, reject(rw, conn, types.DisconnectIncompatibleVersion,
			fmt.Errorf("protocol version %d", their.Version))
	}
	id, err := types.PeerIDFromBytes(their.ID)
	if err != nil {
		return nil, reject(rw, conn, types.DisconnectInvalidIdentity, err)
	}
	if id != remote {
		return nil, reject(rw, conn, types.DisconnectUnexpectedIdentity,
			fmt.Errorf("hello id %s, authenticated %s", id.ShortString(), remote.ShortString()))
	}

	peerCaps := types.NewCapabilities(their.Caps...)
	ethVersion := sharedVersion(cfg.Capabilities, peerCaps, ProtocolEth)
	if ethVersion == 0 {
		return nil, reject(rw, conn, types.DisconnectUselessPeer,
			fmt.Errorf("no shared eth version, peer has %s", peerCaps))
	}

	head, td := cfg.head()
	status := &Status{
		ProtocolVersion: uint32(ethVersion),
		NetworkID:       cfg.NetworkID,
		TD:              td,
		Head:            head,
		Genesis:         cfg.Genesis,
	}
	reply, err = exchange(rw, status, StatusMsg)
	if err != nil {
		return nil, err
	}
	theirStatus := reply.(*Status)

	switch {
	case theirStatus.ProtocolVersion != uint32(ethVersion):
		return nil, reject(rw, conn, types.DisconnectSubprotocolError,
			fmt.Errorf("eth version %d, negotiated %d", theirStatus.ProtocolVersion, ethVersion))
	case theirStatus.NetworkID != cfg.NetworkID:
		return nil, reject(rw, conn, types.DisconnectSubprotocolError,
			fmt.Errorf("network id %d, want %d", theirStatus.NetworkID, cfg.NetworkID))
	case theirStatus.Genesis != cfg.Genesis:
		return nil, reject(rw, conn, types.DisconnectSubprotocolError,
			fmt.Errorf("genesis %x, want %x", theirStatus.Genesis[:8], cfg.Genesis[:8]))
	}

	return &PeerInfo{
		ID:           id,
		ClientID:     their.ClientID,
		ListenPort:   their.ListenPort,
		Capabilities: peerCaps,
		EthVersion:   ethVersion,
		Status:       theirStatus,
	}, nil
}

// sharedVersion 返回双方都宣告的最高协议版本，没有返回 0
func sharedVersion(local, remote *types.Capabilities, name string) uint {
	var best uint
	for _, c := range local.List() {
		if c.Name == name && c.Version > best && remote.Contains(c) {
			best = c.Version
		}
	}
	return best
}

// exchange 同时发送本地消息并读取对端的同类消息
//
// 写入放在独立 goroutine 中，避免双方同时写入无缓冲连接时互相阻塞。
func exchange(rw *frameRW, mine Message, want uint64) (Message, error) {
	msg, err := Encode(mine)
	if err != nil {
		return nil, err
	}
	werr := make(chan error, 1)
	go func() { werr <- rw.WriteMsg(msg) }()

	reply, err := readExpected(rw, want)
	if err != nil {
		return nil, err
	}
	if err := <-werr; err != nil {
		return nil, fmt.Errorf("send %s: %w", MessageName(want), err)
	}
	return reply, nil
}

func readExpected(rw *frameRW, want uint64) (Message, error) {
	msg, err := rw.ReadMsg()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", MessageName(want), err)
	}
	if msg.Code == DisconnectMsg {
		m, err := Decode(msg)
		if err != nil {
			return nil, &HandshakeError{Reason: types.DisconnectProtocolError, Err: err}
		}
		return nil, &HandshakeError{Reason: m.(*Disconnect).Reason, Remote: true}
	}
	if msg.Code != want {
		return nil, &HandshakeError{
			Reason: types.DisconnectProtocolError,
			Err:    fmt.Errorf("%w: %s, want %s", ErrUnexpectedMessage, MessageName(msg.Code), MessageName(want)),
		}
	}
	m, err := Decode(msg)
	if err != nil {
		return nil, &HandshakeError{Reason: types.DisconnectProtocolError, Err: err}
	}
	return m, nil
}

// reject 尽力通知对端断开原因，并返回对应的握手错误
func reject(rw *frameRW, conn net.Conn, reason types.DisconnectReason, cause error) error {
	if msg, err := Encode(&Disconnect{Reason: reason}); err == nil {
		_ = conn.SetWriteDeadline(time.Now().Add(rejectTimeout))
		_ = rw.WriteMsg(msg)
	}
	return &HandshakeError{Reason: reason, Err: cause}
}
