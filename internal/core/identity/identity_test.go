package identity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-chainnet/config"
)

// TestGenerate 测试生成身份
func TestGenerate(t *testing.T) {
	a, err := Generate()
	require.NoError(t, err)
	b, err := Generate()
	require.NoError(t, err)

	assert.False(t, a.ID().IsEmpty())
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, a.ID().Bytes(), a.StaticKey().Public)
}

// TestFromHex_Deterministic 测试同一私钥恢复出同一身份
func TestFromHex_Deterministic(t *testing.T) {
	a, err := Generate()
	require.NoError(t, err)

	b, err := FromHex(a.PrivateKeyHex())
	require.NoError(t, err)
	assert.Equal(t, a.ID(), b.ID())

	_, err = FromHex("xyz")
	assert.ErrorIs(t, err, ErrInvalidPrivateKey)
	_, err = FromPrivateKey([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidPrivateKey)
}

// TestLoadOrCreate 测试密钥文件持久化
func TestLoadOrCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "node.key")

	first, err := LoadOrCreate(path)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	second, err := LoadOrCreate(path)
	require.NoError(t, err)
	assert.Equal(t, first.ID(), second.ID())
}

// TestProvideIdentity 测试按配置提供身份
func TestProvideIdentity(t *testing.T) {
	fixed, err := Generate()
	require.NoError(t, err)

	cfg := config.NewConfig()
	cfg.Identity.PrivateKey = fixed.PrivateKeyHex()
	id, err := ProvideIdentity(cfg)
	require.NoError(t, err)
	assert.Equal(t, fixed.ID(), id.ID())

	cfg = config.NewConfig()
	cfg.Identity.KeyFile = filepath.Join(t.TempDir(), "node.key")
	id, err = ProvideIdentity(cfg)
	require.NoError(t, err)
	assert.FileExists(t, cfg.Identity.KeyFile)
	assert.False(t, id.ID().IsEmpty())

	id, err = ProvideIdentity(config.NewConfig())
	require.NoError(t, err)
	assert.False(t, id.ID().IsEmpty())
}
