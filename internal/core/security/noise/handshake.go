package noise

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"github.com/flynn/noise"

	"github.com/dep2p/go-chainnet/pkg/types"
)

// prologue 绑定到握手哈希，不同协议的握手互不兼容
var prologue = []byte("chainnet-noise/1")

var cipherSuite = noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashSHA256)

// performHandshake 执行 Noise XX 握手
//
// expected 非空时（出站）要求远端静态公钥与之相同。
func performHandshake(conn net.Conn, static noise.DHKey, initiator bool, expected types.PeerID) (*Conn, error) {
	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite:   cipherSuite,
		Pattern:       noise.HandshakeXX,
		Initiator:     initiator,
		Prologue:      prologue,
		StaticKeypair: static,
	})
	if err != nil {
		return nil, fmt.Errorf("create handshake state: %w", err)
	}

	var sendCS, recvCS *noise.CipherState
	if initiator {
		sendCS, recvCS, err = clientHandshake(conn, hs)
	} else {
		sendCS, recvCS, err = serverHandshake(conn, hs)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHandshake, err)
	}

	remote, err := types.PeerIDFromBytes(hs.PeerStatic())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHandshake, err)
	}
	if !expected.IsEmpty() && remote != expected {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrPeerIDMismatch, expected.ShortString(), remote.ShortString())
	}

	local, _ := types.PeerIDFromBytes(static.Public)
	return &Conn{
		Conn:       conn,
		sendCS:     sendCS,
		recvCS:     recvCS,
		localPeer:  local,
		remotePeer: remote,
	}, nil
}

// clientHandshake 发起者：-> e, <- e ee s es, -> s se
func clientHandshake(conn net.Conn, hs *noise.HandshakeState) (*noise.CipherState, *noise.CipherState, error) {
	msg1, _, _, err := hs.WriteMessage(nil, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("write message 1: %w", err)
	}
	if err := writeFrame(conn, msg1); err != nil {
		return nil, nil, fmt.Errorf("send message 1: %w", err)
	}

	msg2, err := readFrame(conn)
	if err != nil {
		return nil, nil, fmt.Errorf("receive message 2: %w", err)
	}
	if _, _, _, err := hs.ReadMessage(nil, msg2); err != nil {
		return nil, nil, fmt.Errorf("read message 2: %w", err)
	}

	msg3, cs1, cs2, err := hs.WriteMessage(nil, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("write message 3: %w", err)
	}
	if err := writeFrame(conn, msg3); err != nil {
		return nil, nil, fmt.Errorf("send message 3: %w", err)
	}
	return cs1, cs2, nil
}

// serverHandshake 响应者，密钥顺序与发起者相反
func serverHandshake(conn net.Conn, hs *noise.HandshakeState) (*noise.CipherState, *noise.CipherState, error) {
	msg1, err := readFrame(conn)
	if err != nil {
		return nil, nil, fmt.Errorf("receive message 1: %w", err)
	}
	if _, _, _, err := hs.ReadMessage(nil, msg1); err != nil {
		return nil, nil, fmt.Errorf("read message 1: %w", err)
	}

	msg2, _, _, err := hs.WriteMessage(nil, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("write message 2: %w", err)
	}
	if err := writeFrame(conn, msg2); err != nil {
		return nil, nil, fmt.Errorf("send message 2: %w", err)
	}

	msg3, err := readFrame(conn)
	if err != nil {
		return nil, nil, fmt.Errorf("receive message 3: %w", err)
	}
	_, cs1, cs2, err := hs.ReadMessage(nil, msg3)
	if err != nil {
		return nil, nil, fmt.Errorf("read message 3: %w", err)
	}
	return cs2, cs1, nil
}

// writeFrame 写入帧（2 字节长度 + 数据）
func writeFrame(w io.Writer, data []byte) error {
	buf := make([]byte, 2+len(data))
	binary.BigEndian.PutUint16(buf, uint16(len(data)))
	copy(buf[2:], data)
	_, err := w.Write(buf)
	return err
}

// readFrame 读取帧（2 字节长度 + 数据）
func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	data := make([]byte, binary.BigEndian.Uint16(lenBuf[:]))
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}
