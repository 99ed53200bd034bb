package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"heirvault/types"
	"heirvault/utils"

	"github.com/ethereum/go-ethereum/common"
)

// readSignedCommand 读取并校验签名命令，返回签名者地址
// 校验顺序：方法、请求体、签名、命令类型、时间戳、重放
func (hm *HandlerManager) readSignedCommand(w http.ResponseWriter, r *http.Request, c *apiCall, op types.Op) (common.Address, *types.Command, bool) {
	if r.Method != http.MethodPost {
		c.fail(w, http.StatusMethodNotAllowed, types.CodeBadRequest, "method not allowed")
		return common.Address{}, nil, false
	}
	if hm.maxBodySize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, hm.maxBodySize)
	}

	var signed types.SignedCommand
	if err := json.NewDecoder(r.Body).Decode(&signed); err != nil {
		c.fail(w, http.StatusBadRequest, types.CodeBadRequest, "invalid request body: "+err.Error())
		return common.Address{}, nil, false
	}

	caller, err := utils.RecoverAddress(signed.Payload, signed.Signature)
	if err != nil {
		c.fail(w, http.StatusUnauthorized, types.CodeUnauthorized, err.Error())
		return common.Address{}, nil, false
	}

	cmd, err := types.DecodeCommand(signed.Payload, op)
	if err != nil {
		c.failErr(w, err)
		return common.Address{}, nil, false
	}

	now := hm.clock.Now()
	skew := time.Duration(now-cmd.Timestamp) * time.Second
	if skew < 0 {
		skew = -skew
	}
	if hm.maxClockSkew > 0 && skew > hm.maxClockSkew {
		c.fail(w, http.StatusBadRequest, types.CodeStale,
			fmt.Sprintf("command timestamp %d too far from server time %d", cmd.Timestamp, now))
		return common.Address{}, nil, false
	}

	if !hm.markNonce(caller, cmd.Nonce) {
		c.fail(w, http.StatusConflict, types.CodeReplay,
			fmt.Sprintf("nonce %d already used by %s", cmd.Nonce, caller.Hex()))
		return common.Address{}, nil, false
	}
	return caller, cmd, true
}

// markNonce 第一次见到 (caller, nonce) 时返回 true
func (hm *HandlerManager) markNonce(caller common.Address, nonce uint64) bool {
	key := caller.Hex() + ":" + strconv.FormatUint(nonce, 10)
	hm.replayMu.Lock()
	defer hm.replayMu.Unlock()
	if hm.seenNonces.Contains(key) {
		return false
	}
	hm.seenNonces.Add(key, struct{}{})
	return true
}

// parseAddress 空字符串解析为零地址，交给金库按 InvalidHeir 处理
func parseAddress(s string) (common.Address, error) {
	if s == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: invalid address %q", types.ErrBadCommand, s)
	}
	return common.HexToAddress(s), nil
}

// parseVaultID 金库 ID 必须存在且合法
func parseVaultID(s string) (common.Address, error) {
	if s == "" {
		return common.Address{}, fmt.Errorf("%w: missing vault id", types.ErrBadCommand)
	}
	return parseAddress(s)
}
