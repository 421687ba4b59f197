package config

import (
	"encoding/hex"
	"errors"
)

// IdentityConfig 身份配置
//
// PrivateKey 优先于 KeyFile；两者都为空时每次启动生成临时身份。
type IdentityConfig struct {
	// KeyFile 私钥文件路径（十六进制），不存在时生成并写入
	KeyFile string `json:"key_file,omitempty"`

	// PrivateKey 十六进制编码的 Curve25519 私钥
	PrivateKey string `json:"private_key,omitempty"`
}

// DefaultIdentityConfig 返回默认身份配置
func DefaultIdentityConfig() IdentityConfig {
	return IdentityConfig{}
}

// Validate 验证身份配置
func (c IdentityConfig) Validate() error {
	if c.PrivateKey == "" {
		return nil
	}
	b, err := hex.DecodeString(c.PrivateKey)
	if err != nil {
		return errors.New("private key must be hex encoded")
	}
	if len(b) != 32 {
		return errors.New("private key must be 32 bytes")
	}
	return nil
}
