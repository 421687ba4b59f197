package identity

import "errors"

var (
	// ErrInvalidPrivateKey 私钥格式无效
	ErrInvalidPrivateKey = errors.New("identity: invalid private key")

	// ErrFailedToGenerateKey 密钥生成失败
	ErrFailedToGenerateKey = errors.New("identity: failed to generate key")
)
