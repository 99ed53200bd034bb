package utils

import (
	"encoding/hex"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ethereum/go-ethereum/common"
)

// KeyManager 保存一把签名私钥及其推导出的地址
type KeyManager struct {
	privateKey *secp256k1.PrivateKey
	address    common.Address
}

// NewKeyManager 解析私钥（WIF 或 hex）
func NewKeyManager(priKey string) (*KeyManager, error) {
	priv, err := ParseSecp256k1PrivateKey(priKey)
	if err != nil {
		return nil, err
	}
	return NewKeyManagerFromKey(priv), nil
}

func NewKeyManagerFromKey(priv *secp256k1.PrivateKey) *KeyManager {
	return &KeyManager{
		privateKey: priv,
		address:    DeriveEthereumAddress(priv),
	}
}

// GetAddress 返回推导出的地址
func (km *KeyManager) GetAddress() common.Address {
	return km.address
}

// GetPrivateKeyHex 返回 32 字节私钥的 hex
func (km *KeyManager) GetPrivateKeyHex() string {
	return hex.EncodeToString(km.privateKey.Serialize())
}

// Sign 对 payload 签名，返回 65 字节的紧凑签名
func (km *KeyManager) Sign(payload []byte) []byte {
	return SignPayload(km.privateKey, payload)
}
