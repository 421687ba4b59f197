package identity

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LoadOrCreate 从密钥文件加载身份，文件不存在时生成并写入
func LoadOrCreate(path string) (*Identity, error) {
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		return FromHex(strings.TrimSpace(string(data)))
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("read key file: %w", err)
	}

	id, err := Generate()
	if err != nil {
		return nil, err
	}
	if err := Save(path, id); err != nil {
		return nil, err
	}
	logger.Info("已生成新的节点身份", "peer", id.ID().ShortString(), "file", path)
	return id, nil
}

// Save 将私钥以十六进制写入文件（权限 0600）
func Save(path string, id *Identity) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create key dir: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(id.PrivateKeyHex()+"\n"), 0600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	return nil
}
