package handlers

import (
	"net/http"
	"strconv"

	"heirvault/registry"
	"heirvault/types"
	"heirvault/utils"
)

func (hm *HandlerManager) toVaultStatus(s registry.Summary) types.VaultStatus {
	return types.VaultStatus{
		Vault:              s.ID.Hex(),
		Creator:            s.Creator.Hex(),
		Owner:              s.Owner.Hex(),
		Heir:               s.Heir.Hex(),
		LastActivity:       s.LastActivity,
		Balance:            s.Balance.String(),
		BalanceFormatted:   utils.FormatUnits(s.Balance, hm.decimals),
		Now:                s.Now,
		CanHeirClaim:       s.CanHeirClaim,
		TimeUntilClaimable: s.TimeUntilClaimable,
	}
}

func requireGet(w http.ResponseWriter, r *http.Request, c *apiCall) bool {
	if r.Method != http.MethodGet {
		c.fail(w, http.StatusMethodNotAllowed, types.CodeBadRequest, "method not allowed")
		return false
	}
	return true
}

// HandleVaultStatus GET /vault/status?id=
func (hm *HandlerManager) HandleVaultStatus(w http.ResponseWriter, r *http.Request) {
	c := hm.begin("HandleVaultStatus")
	if !requireGet(w, r, c) {
		return
	}
	id, err := parseVaultID(r.URL.Query().Get("id"))
	if err != nil {
		c.failErr(w, err)
		return
	}
	summary, err := hm.registry.Status(id)
	if err != nil {
		c.failErr(w, err)
		return
	}
	c.ok(w, hm.toVaultStatus(summary))
}

// HandleVaultEvents GET /vault/events?id=&limit=
func (hm *HandlerManager) HandleVaultEvents(w http.ResponseWriter, r *http.Request) {
	c := hm.begin("HandleVaultEvents")
	if !requireGet(w, r, c) {
		return
	}
	q := r.URL.Query()
	id, err := parseVaultID(q.Get("id"))
	if err != nil {
		c.failErr(w, err)
		return
	}

	limit := hm.maxEventsPage
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.fail(w, http.StatusBadRequest, types.CodeBadRequest, "invalid limit "+strconv.Quote(raw))
			return
		}
		if limit <= 0 || n < limit {
			limit = n
		}
	}

	records, err := hm.registry.Events(id, limit)
	if err != nil {
		c.failErr(w, err)
		return
	}
	resp := types.EventsResponse{Vault: id.Hex(), Events: make([]types.VaultEvent, 0, len(records))}
	for _, rec := range records {
		resp.Events = append(resp.Events, types.VaultEvent{
			Seq:       rec.Seq,
			Kind:      string(rec.Kind),
			Timestamp: rec.Timestamp,
			Data:      rec.Data,
		})
	}
	c.ok(w, resp)
}

// HandleListVaults GET /vaults
func (hm *HandlerManager) HandleListVaults(w http.ResponseWriter, r *http.Request) {
	c := hm.begin("HandleListVaults")
	if !requireGet(w, r, c) {
		return
	}
	list, err := hm.registry.List()
	if err != nil {
		c.failErr(w, err)
		return
	}
	resp := types.VaultsResponse{Vaults: make([]types.VaultStatus, 0, len(list))}
	for _, s := range list {
		resp.Vaults = append(resp.Vaults, hm.toVaultStatus(s))
	}
	c.ok(w, resp)
}
