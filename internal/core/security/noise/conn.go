package noise

import (
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/flynn/noise"

	"github.com/dep2p/go-chainnet/pkg/types"
)

// maxPlaintext 单帧最大明文长度（65535 减去 16 字节 AEAD 标签）
const maxPlaintext = 65535 - 16

// Conn Noise 加密连接
type Conn struct {
	net.Conn

	sendCS *noise.CipherState
	recvCS *noise.CipherState

	localPeer  types.PeerID
	remotePeer types.PeerID

	readMu  sync.Mutex
	writeMu sync.Mutex
	readBuf []byte
}

// Read 读取并解密
func (c *Conn) Read(p []byte) (int, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	for len(c.readBuf) == 0 {
		frame, err := readFrame(c.Conn)
		if err != nil {
			return 0, err
		}
		plaintext, err := c.recvCS.Decrypt(nil, nil, frame)
		if err != nil {
			return 0, fmt.Errorf("decrypt: %w", err)
		}
		c.readBuf = plaintext
	}

	n := copy(p, c.readBuf)
	c.readBuf = c.readBuf[n:]
	return n, nil
}

// Write 加密并写入，超过单帧容量时分片
func (c *Conn) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	written := 0
	for written < len(p) {
		end := written + maxPlaintext
		if end > len(p) {
			end = len(p)
		}
		ciphertext, err := c.sendCS.Encrypt(nil, nil, p[written:end])
		if err != nil {
			return written, fmt.Errorf("encrypt: %w", err)
		}
		if err := writeFrame(c.Conn, ciphertext); err != nil {
			return written, err
		}
		written = end
	}
	return written, nil
}

// LocalPeer 返回本地节点 ID
func (c *Conn) LocalPeer() types.PeerID {
	return c.localPeer
}

// RemotePeer 返回远端节点 ID
func (c *Conn) RemotePeer() types.PeerID {
	return c.remotePeer
}

var _ io.ReadWriteCloser = (*Conn)(nil)
