package types

import (
	"encoding/json"

	"heirvault/logs"
)

// 错误码
const (
	CodeUnauthorized       = "unauthorized"
	CodeInvalidHeir        = "invalid_heir"
	CodeInactivityNotEnded = "inactivity_period_not_reached"
	CodeInsufficient       = "insufficient_balance"
	CodeTransferFailed     = "transfer_failed"
	CodeInvalidAmount      = "invalid_amount"
	CodeNotFound           = "not_found"
	CodeBadRequest         = "bad_request"
	CodeReplay             = "replay"
	CodeStale              = "stale"
	CodeUnavailable        = "vault_unavailable"
	CodeInternal           = "internal"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteResponse 写操作成功后的返回
type WriteResponse struct {
	Vault string `json:"vault"`
	Op    Op     `json:"op"`
}

type VaultStatus struct {
	Vault              string `json:"vault"`
	Creator            string `json:"creator"`
	Owner              string `json:"owner"`
	Heir               string `json:"heir"`
	LastActivity       int64  `json:"lastActivity"`
	Balance            string `json:"balance"`
	BalanceFormatted   string `json:"balanceFormatted"`
	Now                int64  `json:"now"`
	CanHeirClaim       bool   `json:"canHeirClaim"`
	TimeUntilClaimable int64  `json:"timeUntilClaimable"`
}

type VaultEvent struct {
	Seq       uint64          `json:"seq"`
	Kind      string          `json:"kind"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

type EventsResponse struct {
	Vault  string       `json:"vault"`
	Events []VaultEvent `json:"events"`
}

type VaultsResponse struct {
	Vaults []VaultStatus `json:"vaults"`
}

type StatusResponse struct {
	Status    string            `json:"status"`
	Address   string            `json:"address"`
	Vaults    int               `json:"vaults"`
	Custody   string            `json:"custody"`
	APICalls  map[string]uint64 `json:"apiCalls"`
	APIErrors map[string]uint64 `json:"apiErrors"`
	Events    map[string]uint64 `json:"events"`
}

type LogsResponse struct {
	Logs []logs.LogLine `json:"logs"`
}
