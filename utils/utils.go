package utils

import (
	"encoding/hex"
	"errors"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// Keccak256 以太坊风格的 keccak-256
func Keccak256(data ...[]byte) []byte {
	hash := sha3.NewLegacyKeccak256()
	for _, d := range data {
		hash.Write(d)
	}
	return hash.Sum(nil)
}

// PubKeyToAddress keccak256(pubUncompressed[1:]) 的后 20 字节
func PubKeyToAddress(pub *secp256k1.PublicKey) common.Address {
	// uncompressed 公钥：首字节 0x04 + 32字节X + 32字节Y
	pubUncompressed := pub.SerializeUncompressed()
	digest := Keccak256(pubUncompressed[1:])
	return common.BytesToAddress(digest[12:])
}

// DeriveEthereumAddress 从私钥推导以太坊地址，作为金库内的身份
func DeriveEthereumAddress(privKey *secp256k1.PrivateKey) common.Address {
	return PubKeyToAddress(privKey.PubKey())
}

// DeriveBtcBech32Address 同一把私钥的 bc1q 地址，keygen 时一并展示
func DeriveBtcBech32Address(privKey *secp256k1.PrivateKey) (string, error) {
	pubKeyHash := btcutil.Hash160(privKey.PubKey().SerializeCompressed())
	addr, err := btcutil.NewAddressWitnessPubKeyHash(pubKeyHash, &chaincfg.MainNetParams)
	if err != nil {
		return "", err
	}
	return addr.String(), nil
}

// ParseSecp256k1PrivateKey 同时支持 WIF 或 16 进制的32字节私钥字符串
func ParseSecp256k1PrivateKey(keyStr string) (*secp256k1.PrivateKey, error) {
	keyStr = strings.TrimSpace(keyStr)

	// 1) 尝试当作WIF解析
	if wif, err := btcutil.DecodeWIF(keyStr); err == nil {
		return wif.PrivKey, nil
	}

	// 2) 如果不是WIF，则尝试按Hex进行解析
	raw, err := hex.DecodeString(strings.TrimPrefix(keyStr, "0x"))
	if err != nil {
		return nil, errors.New("invalid key (neither valid WIF nor valid hex): " + err.Error())
	}
	if len(raw) != 32 {
		return nil, errors.New("invalid private key length in hex (must be 32 bytes)")
	}
	return secp256k1.PrivKeyFromBytes(raw), nil
}

// GeneratePrivateKey 生成新的 secp256k1 私钥
func GeneratePrivateKey() (*secp256k1.PrivateKey, error) {
	return secp256k1.GeneratePrivateKey()
}

// EncodeWIF 压缩格式的主网 WIF
func EncodeWIF(privKey *secp256k1.PrivateKey) (string, error) {
	wif, err := btcutil.NewWIF(privKey, &chaincfg.MainNetParams, true)
	if err != nil {
		return "", err
	}
	return wif.String(), nil
}
