package db

import (
	"fmt"
	"math/big"

	"heirvault/keys"

	"github.com/ethereum/go-ethereum/common"
)

// SaveLedgerAccount 保存外部账户余额（十进制字符串）
func (manager *Manager) SaveLedgerAccount(addr common.Address, balance *big.Int) error {
	return manager.Set(keys.KeyLedgerAccount(addr.Hex()), []byte(balance.String()))
}

// LoadLedgerAccounts 读取所有外部账户余额
func (manager *Manager) LoadLedgerAccounts() (map[common.Address]*big.Int, error) {
	kvs, err := manager.ScanOrdered(keys.KeyLedgerAccountPrefix(), 0, false)
	if err != nil {
		return nil, err
	}
	out := make(map[common.Address]*big.Int, len(kvs))
	prefix := keys.KeyLedgerAccountPrefix()
	for _, kv := range kvs {
		hexAddr := kv.Key[len(prefix):]
		if !common.IsHexAddress(hexAddr) {
			manager.logError("[db.LoadLedgerAccounts] bad address key %s", kv.Key)
			continue
		}
		bal, ok := new(big.Int).SetString(string(kv.Value), 10)
		if !ok {
			return nil, fmt.Errorf("corrupt ledger balance for %s", hexAddr)
		}
		out[common.HexToAddress(hexAddr)] = bal
	}
	return out, nil
}
