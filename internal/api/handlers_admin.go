package api

import (
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"

	"github.com/vault-router/internal/storage"
	"github.com/vault-router/internal/vault"
)

// account loads the live account or writes the error response
func (s *Server) account(w http.ResponseWriter, address common.Address) (*vault.Account, bool) {
	acct, err := s.vaultService.Account(address)
	if err != nil {
		respondServiceError(w, err)
		return nil, false
	}
	return acct, true
}

// handlePause handles POST /api/accounts/{address}/pause
func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	account, caller, ok := s.requestContext(w, r)
	if !ok {
		return
	}
	acct, ok := s.account(w, account)
	if !ok {
		return
	}

	if err := acct.Pause(caller); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"paused": true})
}

// handleUnpause handles POST /api/accounts/{address}/unpause
func (s *Server) handleUnpause(w http.ResponseWriter, r *http.Request) {
	account, caller, ok := s.requestContext(w, r)
	if !ok {
		return
	}
	acct, ok := s.account(w, account)
	if !ok {
		return
	}

	if err := acct.Unpause(caller); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"paused": false})
}

// handleGetFees handles GET /api/accounts/{address}/fees
func (s *Server) handleGetFees(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	account, ok := parseAddress(vars["address"])
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid account address", nil)
		return
	}
	acct, ok := s.account(w, account)
	if !ok {
		return
	}

	settings, err := acct.FeeSettingsView()
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, settings)
}

// handleSetFee handles PUT /api/accounts/{address}/fees. One field changes
// per request; each field runs its own change cooldown.
func (s *Server) handleSetFee(w http.ResponseWriter, r *http.Request) {
	account, caller, ok := s.requestContext(w, r)
	if !ok {
		return
	}
	acct, ok := s.account(w, account)
	if !ok {
		return
	}

	var req struct {
		Field string `json:"field"`
		Value string `json:"value"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	before, err := acct.FeeSettingsView()
	if err != nil {
		respondServiceError(w, err)
		return
	}

	switch req.Field {
	case "withdrawal", "rebalance", "claim":
		bps, parseErr := strconv.ParseUint(req.Value, 10, 32)
		if parseErr != nil {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid fee value", nil)
			return
		}
		switch req.Field {
		case "withdrawal":
			err = acct.SetWithdrawalFeeBps(caller, uint32(bps))
		case "rebalance":
			err = acct.SetRebalanceFeeBps(caller, uint32(bps))
		case "claim":
			err = acct.SetClaimFeeBps(caller, uint32(bps))
		}
	case "threshold":
		threshold, valid := parseAmount(req.Value)
		if !valid {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid threshold value", nil)
			return
		}
		err = acct.SetMinProfitThreshold(caller, threshold)
	default:
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Unknown fee field", map[string]interface{}{
			"field": req.Field,
		})
		return
	}

	if err != nil {
		respondServiceError(w, err)
		return
	}

	settings, err := acct.FeeSettingsView()
	if err != nil {
		respondServiceError(w, err)
		return
	}

	// Audit failures never fail the change itself, it is already applied.
	if s.feeAudit != nil {
		change := &storage.FeeChange{
			Account:   account,
			Field:     req.Field,
			OldValue:  feeFieldValue(before, req.Field),
			NewValue:  feeFieldValue(settings, req.Field),
			ChangedBy: caller,
		}
		if auditErr := s.feeAudit.Record(r.Context(), change); auditErr != nil {
			s.logger.WithError(auditErr).Warn("Failed to record fee change audit")
		}
	}

	respondJSON(w, http.StatusOK, settings)
}

// feeFieldValue renders the named field of a fee settings snapshot for the
// audit trail.
func feeFieldValue(settings *vault.FeeSettings, field string) string {
	switch field {
	case "withdrawal":
		return strconv.FormatUint(uint64(settings.WithdrawalFeeBps), 10)
	case "rebalance":
		return strconv.FormatUint(uint64(settings.RebalanceFeeBps), 10)
	case "claim":
		return strconv.FormatUint(uint64(settings.ClaimFeeBps), 10)
	case "threshold":
		return settings.MinProfitThreshold.String()
	default:
		return ""
	}
}

// handleGetFeeHistory handles GET /api/accounts/{address}/fees/history
func (s *Server) handleGetFeeHistory(w http.ResponseWriter, r *http.Request) {
	if s.feeAudit == nil {
		respondError(w, http.StatusServiceUnavailable, ErrCodeInternalError, "Fee audit store is not configured", nil)
		return
	}

	vars := mux.Vars(r)
	account, ok := parseAddress(vars["address"])
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid account address", nil)
		return
	}

	changes, err := s.feeAudit.ListByAccount(r.Context(), account)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	entries := make([]map[string]interface{}, 0, len(changes))
	for _, change := range changes {
		entries = append(entries, map[string]interface{}{
			"id":        change.ID.String(),
			"field":     change.Field,
			"oldValue":  change.OldValue,
			"newValue":  change.NewValue,
			"changedBy": change.ChangedBy.Hex(),
			"changedAt": change.ChangedAt,
		})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"changes": entries})
}

// handleRoleTransfer handles POST /api/accounts/{address}/roles/{role}/{action}.
// Roles move in two steps: the incumbent proposes, the recipient accepts.
func (s *Server) handleRoleTransfer(w http.ResponseWriter, r *http.Request) {
	account, caller, ok := s.requestContext(w, r)
	if !ok {
		return
	}
	acct, ok := s.account(w, account)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	role := vars["role"]
	action := vars["action"]

	var to common.Address
	if action == "propose" {
		var req struct {
			To string `json:"to"`
		}
		if err := parseJSONBody(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
			return
		}
		to, ok = parseAddress(req.To)
		if !ok {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid recipient address", nil)
			return
		}
	}

	var err error
	switch role + "/" + action {
	case "owner/propose":
		err = acct.ProposeOwnerTransfer(caller, to)
	case "owner/accept":
		err = acct.AcceptOwnerTransfer(caller)
	case "owner/cancel":
		err = acct.CancelOwnerTransfer(caller)
	case "admin/propose":
		err = acct.ProposeAdminTransfer(caller, to)
	case "admin/accept":
		err = acct.AcceptAdminTransfer(caller)
	case "admin/cancel":
		err = acct.CancelAdminTransfer(caller)
	default:
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Unknown role transfer action", nil)
		return
	}

	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"owner": acct.Owner().Hex(),
		"admin": acct.Admin().Hex(),
	})
}

// handleAddSource handles POST /api/accounts/{address}/sources
func (s *Server) handleAddSource(w http.ResponseWriter, r *http.Request) {
	account, caller, ok := s.requestContext(w, r)
	if !ok {
		return
	}
	acct, ok := s.account(w, account)
	if !ok {
		return
	}

	var req struct {
		Source string `json:"source"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	source, ok := parseAddress(req.Source)
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid source address", nil)
		return
	}

	if err := acct.AddVault(r.Context(), caller, source); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{"source": source.Hex()})
}

// handleRemoveSource handles DELETE /api/accounts/{address}/sources/{source}
func (s *Server) handleRemoveSource(w http.ResponseWriter, r *http.Request) {
	account, caller, ok := s.requestContext(w, r)
	if !ok {
		return
	}
	acct, ok := s.account(w, account)
	if !ok {
		return
	}

	source, ok := parseAddress(mux.Vars(r)["source"])
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid source address", nil)
		return
	}

	if err := acct.RemoveVault(caller, source); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"removed": source.Hex()})
}

// handleAddAsset handles POST /api/accounts/{address}/assets
func (s *Server) handleAddAsset(w http.ResponseWriter, r *http.Request) {
	account, caller, ok := s.requestContext(w, r)
	if !ok {
		return
	}
	acct, ok := s.account(w, account)
	if !ok {
		return
	}

	var req struct {
		Asset         string `json:"asset"`
		InitialSource string `json:"initialSource"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	asset, ok := parseAddress(req.Asset)
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid asset address", nil)
		return
	}
	source, ok := parseAddress(req.InitialSource)
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid initial source address", nil)
		return
	}

	if err := acct.AddAsset(caller, asset, source); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{"asset": asset.Hex()})
}

// handleRemoveAsset handles DELETE /api/accounts/{address}/assets/{asset}
func (s *Server) handleRemoveAsset(w http.ResponseWriter, r *http.Request) {
	account, caller, ok := s.requestContext(w, r)
	if !ok {
		return
	}
	acct, ok := s.account(w, account)
	if !ok {
		return
	}

	asset, ok := parseAddress(mux.Vars(r)["asset"])
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid asset address", nil)
		return
	}

	if err := acct.RemoveAsset(caller, asset); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"removed": asset.Hex()})
}

// handleAddSourceToAsset handles POST /api/accounts/{address}/assets/{asset}/sources
func (s *Server) handleAddSourceToAsset(w http.ResponseWriter, r *http.Request) {
	account, caller, ok := s.requestContext(w, r)
	if !ok {
		return
	}
	acct, ok := s.account(w, account)
	if !ok {
		return
	}

	asset, ok := parseAddress(mux.Vars(r)["asset"])
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid asset address", nil)
		return
	}

	var req struct {
		Source string `json:"source"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	source, ok := parseAddress(req.Source)
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid source address", nil)
		return
	}

	if err := acct.AddVaultToAsset(caller, asset, source); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{"asset": asset.Hex(), "source": source.Hex()})
}

// handleRemoveSourceFromAsset handles DELETE /api/accounts/{address}/assets/{asset}/sources/{source}
func (s *Server) handleRemoveSourceFromAsset(w http.ResponseWriter, r *http.Request) {
	account, caller, ok := s.requestContext(w, r)
	if !ok {
		return
	}
	acct, ok := s.account(w, account)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	asset, ok := parseAddress(vars["asset"])
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid asset address", nil)
		return
	}
	source, ok := parseAddress(vars["source"])
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid source address", nil)
		return
	}

	if err := acct.RemoveVaultFromAsset(caller, asset, source); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"removed": source.Hex()})
}
