package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/vault-router/internal/storage"
	"github.com/vault-router/internal/types"
)

// handleGetAccount handles GET /api/accounts/{address}
func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	account, ok := parseAddress(mux.Vars(r)["address"])
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid account address", nil)
		return
	}
	acct, ok := s.account(w, account)
	if !ok {
		return
	}

	assets, err := acct.AllowedAssets()
	if err != nil {
		respondServiceError(w, err)
		return
	}
	sources, err := acct.AllowedVaults()
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"address":        acct.Address().Hex(),
		"owner":          acct.Owner().Hex(),
		"admin":          acct.Admin().Hex(),
		"paused":         acct.Paused(),
		"allowedAssets":  assets,
		"allowedSources": sources,
	})
}

// handleGetPortfolio handles GET /api/accounts/{address}/portfolio
func (s *Server) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	account, ok := parseAddress(mux.Vars(r)["address"])
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid account address", nil)
		return
	}

	positions, err := s.vaultService.Portfolio(r.Context(), account)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, positions)
}

// handleGetRebalanceInfo handles GET /api/accounts/{address}/assets/{asset}/rebalance-info
func (s *Server) handleGetRebalanceInfo(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	account, ok := parseAddress(vars["address"])
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid account address", nil)
		return
	}
	asset, ok := parseAddress(vars["asset"])
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid asset address", nil)
		return
	}

	info, err := s.vaultService.RebalanceInfo(r.Context(), account, asset)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, info)
}

// handleGetProfit handles GET /api/accounts/{address}/assets/{asset}/profit.
// The percentage carries 6 implied decimals on the wire from the ledger;
// the human-readable field renders it as a plain decimal percent.
func (s *Server) handleGetProfit(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	account, ok := parseAddress(vars["address"])
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid account address", nil)
		return
	}
	asset, ok := parseAddress(vars["asset"])
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid asset address", nil)
		return
	}

	acct, ok := s.account(w, account)
	if !ok {
		return
	}

	principal, err := acct.Principal(asset)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	value, err := acct.CurrentValue(r.Context(), asset)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	profit, err := acct.UnrealizedProfit(r.Context(), asset)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	percentage, err := acct.ProfitPercentage(r.Context(), asset)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"asset":             asset.Hex(),
		"principal":         principal.String(),
		"currentValue":      value.String(),
		"unrealizedProfit":  profit.String(),
		"profitPercentage":  percentage.String(),
		"percentageDisplay": decimal.NewFromBigInt(percentage, -int32(types.ThresholdDecimals)).String() + "%",
	})
}

// handleGetHistory handles GET /api/accounts/{address}/history
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Operation history is not configured", nil)
		return
	}

	account, ok := parseAddress(mux.Vars(r)["address"])
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid account address", nil)
		return
	}

	query := r.URL.Query()
	filters := &storage.OperationFilters{
		Kind: types.OperationKind(query.Get("kind")),
	}

	if raw := query.Get("asset"); raw != "" {
		asset, ok := parseAddress(raw)
		if !ok {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid asset filter", nil)
			return
		}
		filters.Asset = &asset
	}

	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid limit", nil)
			return
		}
		filters.Limit = limit
	}
	if raw := query.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid offset", nil)
			return
		}
		filters.Offset = offset
	}

	events, err := s.history.ListByAccount(r.Context(), account, filters)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	total, err := s.history.CountByAccount(r.Context(), account)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"total":  total,
	})
}
