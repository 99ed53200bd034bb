package handlers

import (
	"net/http"

	"heirvault/types"
	"heirvault/vault"
)

// HandleCreate 签名者成为 owner
func (hm *HandlerManager) HandleCreate(w http.ResponseWriter, r *http.Request) {
	c := hm.begin("HandleCreate")
	caller, cmd, ok := hm.readSignedCommand(w, r, c, types.OpCreate)
	if !ok {
		return
	}
	heir, err := parseAddress(cmd.Heir)
	if err != nil {
		c.failErr(w, err)
		return
	}

	id, err := hm.registry.Create(caller, heir)
	if err != nil {
		c.failErr(w, err)
		return
	}
	c.ok(w, types.WriteResponse{Vault: id.Hex(), Op: types.OpCreate})
}

// HandleDeposit 任何人都可以存入
func (hm *HandlerManager) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	c := hm.begin("HandleDeposit")
	caller, cmd, ok := hm.readSignedCommand(w, r, c, types.OpDeposit)
	if !ok {
		return
	}
	id, err := parseVaultID(cmd.Vault)
	if err != nil {
		c.failErr(w, err)
		return
	}
	amount, err := vault.ParseAmount(cmd.Amount)
	if err != nil {
		c.failErr(w, err)
		return
	}

	if err := hm.registry.Deposit(r.Context(), id, caller, amount); err != nil {
		c.failErr(w, err)
		return
	}
	c.ok(w, types.WriteResponse{Vault: id.Hex(), Op: types.OpDeposit})
}

// HandleWithdraw owner 提取；amount 为空或 0 时只刷新心跳
func (hm *HandlerManager) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	c := hm.begin("HandleWithdraw")
	caller, cmd, ok := hm.readSignedCommand(w, r, c, types.OpWithdraw)
	if !ok {
		return
	}
	id, err := parseVaultID(cmd.Vault)
	if err != nil {
		c.failErr(w, err)
		return
	}
	amount, err := vault.ParseAmount(cmd.Amount)
	if err != nil {
		c.failErr(w, err)
		return
	}

	if err := hm.registry.Withdraw(r.Context(), id, caller, amount); err != nil {
		c.failErr(w, err)
		return
	}
	c.ok(w, types.WriteResponse{Vault: id.Hex(), Op: types.OpWithdraw})
}

func (hm *HandlerManager) HandleUpdateHeir(w http.ResponseWriter, r *http.Request) {
	c := hm.begin("HandleUpdateHeir")
	caller, cmd, ok := hm.readSignedCommand(w, r, c, types.OpUpdateHeir)
	if !ok {
		return
	}
	id, err := parseVaultID(cmd.Vault)
	if err != nil {
		c.failErr(w, err)
		return
	}
	heir, err := parseAddress(cmd.Heir)
	if err != nil {
		c.failErr(w, err)
		return
	}

	if err := hm.registry.UpdateHeir(id, caller, heir); err != nil {
		c.failErr(w, err)
		return
	}
	c.ok(w, types.WriteResponse{Vault: id.Hex(), Op: types.OpUpdateHeir})
}

// HandleClaim heir 在不活跃期满后接管，并指定新的 heir
func (hm *HandlerManager) HandleClaim(w http.ResponseWriter, r *http.Request) {
	c := hm.begin("HandleClaim")
	caller, cmd, ok := hm.readSignedCommand(w, r, c, types.OpClaim)
	if !ok {
		return
	}
	id, err := parseVaultID(cmd.Vault)
	if err != nil {
		c.failErr(w, err)
		return
	}
	heir, err := parseAddress(cmd.Heir)
	if err != nil {
		c.failErr(w, err)
		return
	}

	if err := hm.registry.ClaimOwnership(id, caller, heir); err != nil {
		c.failErr(w, err)
		return
	}
	c.ok(w, types.WriteResponse{Vault: id.Hex(), Op: types.OpClaim})
}
