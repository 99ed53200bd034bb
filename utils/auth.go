package utils

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ethereum/go-ethereum/common"
)

// CompactSignatureLen 1 字节恢复码 + 32 字节 R + 32 字节 S
const CompactSignatureLen = 65

var ErrInvalidSignature = errors.New("invalid signature")

// SignPayload 对 keccak256(payload) 做可恢复签名
func SignPayload(priv *secp256k1.PrivateKey, payload []byte) []byte {
	return ecdsa.SignCompact(priv, Keccak256(payload), true)
}

// RecoverAddress 从签名中恢复签名者地址
func RecoverAddress(payload, sig []byte) (common.Address, error) {
	if len(sig) != CompactSignatureLen {
		return common.Address{}, fmt.Errorf("%w: length %d", ErrInvalidSignature, len(sig))
	}
	pub, _, err := ecdsa.RecoverCompact(sig, Keccak256(payload))
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return PubKeyToAddress(pub), nil
}
