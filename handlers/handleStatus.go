package handlers

import (
	"net/http"
	"strconv"

	"heirvault/logs"
	"heirvault/types"
)

// 处理状态查询
func (hm *HandlerManager) HandleStatus(w http.ResponseWriter, r *http.Request) {
	c := hm.begin("HandleStatus")

	list, err := hm.registry.List()
	if err != nil {
		c.failErr(w, err)
		return
	}
	custody := "0"
	if hm.custody != nil {
		custody = hm.custody.Custody().String()
	}
	c.ok(w, types.StatusResponse{
		Status:    "ok",
		Address:   hm.address,
		Vaults:    len(list),
		Custody:   custody,
		APICalls:  hm.Stats.GetAPICallStats(),
		APIErrors: hm.Stats.GetAPIErrorStats(),
		Events:    hm.Stats.GetEventStats(),
	})
}

// HandleLogs 处理获取日志请求，?max= 限制返回最近的行数
func (hm *HandlerManager) HandleLogs(w http.ResponseWriter, r *http.Request) {
	c := hm.begin("HandleLogs")

	var lines []logs.LogLine
	if hm.Logger != nil {
		lines = hm.Logger.GetLogs()
	}
	// 如果指定了最大行数，进行截断
	if raw := r.URL.Query().Get("max"); raw != "" {
		maxLines, err := strconv.Atoi(raw)
		if err != nil || maxLines < 0 {
			c.fail(w, http.StatusBadRequest, types.CodeBadRequest, "invalid max "+strconv.Quote(raw))
			return
		}
		if maxLines < len(lines) {
			lines = lines[len(lines)-maxLines:]
		}
	}
	if lines == nil {
		lines = []logs.LogLine{}
	}
	c.ok(w, types.LogsResponse{Logs: lines})
}
