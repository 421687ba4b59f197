package identity

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/flynn/noise"

	"github.com/dep2p/go-chainnet/pkg/types"
)

// Identity 节点身份
type Identity struct {
	key noise.DHKey
	id  types.PeerID
}

// Generate 生成新的随机身份
func Generate() (*Identity, error) {
	return generateFrom(rand.Reader)
}

// FromPrivateKey 从 32 字节私钥恢复身份
func FromPrivateKey(priv []byte) (*Identity, error) {
	if len(priv) != 32 {
		return nil, fmt.Errorf("%w: want 32 bytes, got %d", ErrInvalidPrivateKey, len(priv))
	}
	// DH25519 从 rng 读取 32 字节作为私钥，这里用固定输入得到确定的密钥对
	return generateFrom(bytes.NewReader(priv))
}

// FromHex 从十六进制私钥恢复身份
func FromHex(s string) (*Identity, error) {
	priv, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	return FromPrivateKey(priv)
}

func generateFrom(r io.Reader) (*Identity, error) {
	key, err := noise.DH25519.GenerateKeypair(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToGenerateKey, err)
	}
	id, err := types.PeerIDFromBytes(key.Public)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToGenerateKey, err)
	}
	return &Identity{key: key, id: id}, nil
}

// ID 返回节点 ID
func (i *Identity) ID() types.PeerID {
	return i.id
}

// StaticKey 返回 Noise 静态密钥对
func (i *Identity) StaticKey() noise.DHKey {
	return i.key
}

// PrivateKeyHex 返回十六进制私钥
func (i *Identity) PrivateKeyHex() string {
	return hex.EncodeToString(i.key.Private)
}
