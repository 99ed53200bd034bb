package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"heirvault/registry"
	"heirvault/types"
	"heirvault/vault"
)

// apiCall 单次请求的统计上下文
type apiCall struct {
	hm    *HandlerManager
	name  string
	start time.Time
	done  bool
}

func (hm *HandlerManager) begin(name string) *apiCall {
	hm.Stats.RecordAPICall(name)
	return &apiCall{hm: hm, name: name, start: time.Now()}
}

func (c *apiCall) finish(code string) {
	if c.done {
		return
	}
	c.done = true
	c.hm.Stats.RecordAPIResult(c.name, code, time.Since(c.start))
}

func (c *apiCall) ok(w http.ResponseWriter, v interface{}) {
	c.finish("")
	writeJSON(w, http.StatusOK, v)
}

func (c *apiCall) fail(w http.ResponseWriter, status int, code, msg string) {
	c.finish(code)
	writeJSON(w, status, types.ErrorResponse{Error: code, Message: msg})
}

// failErr 按错误类型映射状态码与错误码
func (c *apiCall) failErr(w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError && c.hm.Logger != nil {
		c.hm.Logger.Error("[handlers] %s: %v", c.name, err)
	}
	c.fail(w, status, code, err.Error())
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, registry.ErrVaultNotFound):
		return http.StatusNotFound, types.CodeNotFound
	case errors.Is(err, registry.ErrVaultUnavailable):
		return http.StatusServiceUnavailable, types.CodeUnavailable
	case errors.Is(err, vault.ErrUnauthorized):
		return http.StatusForbidden, types.CodeUnauthorized
	case errors.Is(err, vault.ErrInvalidHeir), errors.Is(err, vault.ErrInvalidOwner):
		return http.StatusBadRequest, types.CodeInvalidHeir
	case errors.Is(err, vault.ErrInactivityPeriodNotReached):
		return http.StatusConflict, types.CodeInactivityNotEnded
	case errors.Is(err, vault.ErrInsufficientBalance):
		return http.StatusConflict, types.CodeInsufficient
	case errors.Is(err, vault.ErrTransferFailed):
		return http.StatusBadGateway, types.CodeTransferFailed
	case errors.Is(err, vault.ErrInvalidAmount),
		errors.Is(err, vault.ErrOverflow),
		errors.Is(err, vault.ErrAmountTooLong):
		return http.StatusBadRequest, types.CodeInvalidAmount
	case errors.Is(err, types.ErrBadCommand):
		return http.StatusBadRequest, types.CodeBadRequest
	default:
		return http.StatusInternalServerError, types.CodeInternal
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
