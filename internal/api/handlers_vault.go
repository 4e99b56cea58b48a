package api

import (
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
)

// requestContext pulls the account address and caller out of the request.
// Both are mandatory on every vault endpoint.
func (s *Server) requestContext(w http.ResponseWriter, r *http.Request) (account, caller common.Address, ok bool) {
	vars := mux.Vars(r)
	account, valid := parseAddress(vars["address"])
	if !valid {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid account address", nil)
		return common.Address{}, common.Address{}, false
	}

	caller, valid = callerAddress(r)
	if !valid {
		respondError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "X-Caller-Address header required", nil)
		return common.Address{}, common.Address{}, false
	}

	return account, caller, true
}

// handleInitialDeposit handles POST /api/accounts/{address}/deposits
func (s *Server) handleInitialDeposit(w http.ResponseWriter, r *http.Request) {
	account, caller, ok := s.requestContext(w, r)
	if !ok {
		return
	}

	var req struct {
		Asset  string `json:"asset"`
		Source string `json:"source"`
		Amount string `json:"amount"`
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
	source, ok := parseAddress(req.Source)
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid source address", nil)
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid amount", nil)
		return
	}

	result, err := s.vaultService.InitialDeposit(r.Context(), account, caller, asset, source, amount)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, result)
}

// handleTopUpDeposit handles POST /api/accounts/{address}/deposits/top-up.
// Routing between the owner and admin top-up paths follows the caller's
// role on the account.
func (s *Server) handleTopUpDeposit(w http.ResponseWriter, r *http.Request) {
	account, caller, ok := s.requestContext(w, r)
	if !ok {
		return
	}

	var req struct {
		Asset  string `json:"asset"`
		Amount string `json:"amount"`
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
	amount, ok := parseAmount(req.Amount)
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid amount", nil)
		return
	}

	acct, err := s.vaultService.Account(account)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	topUp := s.vaultService.TopUpDeposit
	if caller == acct.Admin() && caller != acct.Owner() {
		topUp = s.vaultService.AdminTopUpDeposit
	}

	result, err := topUp(r.Context(), account, caller, asset, amount)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// handleWithdraw handles POST /api/accounts/{address}/withdrawals.
// A zero or absent amount withdraws the full position.
func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	account, caller, ok := s.requestContext(w, r)
	if !ok {
		return
	}

	var req struct {
		Asset  string `json:"asset"`
		Amount string `json:"amount,omitempty"`
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

	amount := new(big.Int)
	if req.Amount != "" {
		amount, ok = parseAmount(req.Amount)
		if !ok {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid amount", nil)
			return
		}
	}

	result, err := s.vaultService.Withdraw(r.Context(), account, caller, asset, amount)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// handleEmergencyWithdraw handles POST /api/accounts/{address}/withdrawals/emergency
func (s *Server) handleEmergencyWithdraw(w http.ResponseWriter, r *http.Request) {
	account, caller, ok := s.requestContext(w, r)
	if !ok {
		return
	}

	var req struct {
		Asset string `json:"asset"`
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

	result, err := s.vaultService.EmergencyWithdraw(r.Context(), account, caller, asset)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// handleRebalance handles POST /api/accounts/{address}/rebalances
func (s *Server) handleRebalance(w http.ResponseWriter, r *http.Request) {
	account, caller, ok := s.requestContext(w, r)
	if !ok {
		return
	}

	var req struct {
		Asset    string `json:"asset"`
		ToSource string `json:"toSource"`
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
	toSource, ok := parseAddress(req.ToSource)
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid target source address", nil)
		return
	}

	result, err := s.vaultService.Rebalance(r.Context(), account, caller, asset, toSource)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// handleClaimRewards handles POST /api/accounts/{address}/claims
func (s *Server) handleClaimRewards(w http.ResponseWriter, r *http.Request) {
	account, caller, ok := s.requestContext(w, r)
	if !ok {
		return
	}

	var req struct {
		Accounts []string        `json:"accounts"`
		Tokens   []string        `json:"tokens"`
		Amounts  []string        `json:"amounts"`
		Proofs   [][]common.Hash `json:"proofs"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	accounts := make([]common.Address, 0, len(req.Accounts))
	for _, raw := range req.Accounts {
		addr, ok := parseAddress(raw)
		if !ok {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid claim account address", nil)
			return
		}
		accounts = append(accounts, addr)
	}

	tokens := make([]common.Address, 0, len(req.Tokens))
	for _, raw := range req.Tokens {
		addr, ok := parseAddress(raw)
		if !ok {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid reward token address", nil)
			return
		}
		tokens = append(tokens, addr)
	}

	amounts := make([]*big.Int, 0, len(req.Amounts))
	for _, raw := range req.Amounts {
		amount, ok := parseAmount(raw)
		if !ok {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid claim amount", nil)
			return
		}
		amounts = append(amounts, amount)
	}

	claimed, err := s.vaultService.ClaimRewards(r.Context(), account, caller, accounts, tokens, amounts, req.Proofs)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, claimed)
}
