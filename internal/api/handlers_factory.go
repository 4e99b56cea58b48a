package api

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"

	"github.com/vault-router/internal/factory"
)

// deployRequest is the shared body of the predict and deploy endpoints.
// The salt derives from the owner and nonce, so resubmitting the same
// request always lands on the same address.
type deployRequest struct {
	Owner   string   `json:"owner"`
	Admin   string   `json:"admin"`
	Revenue string   `json:"revenue"`
	Assets  []string `json:"assets"`
	Sources []string `json:"sources"`
	Nonce   uint64   `json:"nonce"`
}

func (req *deployRequest) instanceConfig() (*factory.InstanceConfig, common.Hash, bool) {
	owner, ok := parseAddress(req.Owner)
	if !ok {
		return nil, common.Hash{}, false
	}
	admin, ok := parseAddress(req.Admin)
	if !ok {
		return nil, common.Hash{}, false
	}
	revenue, ok := parseAddress(req.Revenue)
	if !ok {
		return nil, common.Hash{}, false
	}

	assets := make([]common.Address, 0, len(req.Assets))
	for _, raw := range req.Assets {
		asset, ok := parseAddress(raw)
		if !ok {
			return nil, common.Hash{}, false
		}
		assets = append(assets, asset)
	}
	sources := make([]common.Address, 0, len(req.Sources))
	for _, raw := range req.Sources {
		source, ok := parseAddress(raw)
		if !ok {
			return nil, common.Hash{}, false
		}
		sources = append(sources, source)
	}

	cfg := &factory.InstanceConfig{
		Owner:   owner,
		Admin:   admin,
		Revenue: revenue,
		Assets:  assets,
		Sources: sources,
	}
	return cfg, factory.GenerateSalt(owner, req.Nonce), true
}

// handlePredict handles POST /api/factory/predict
func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req deployRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	cfg, salt, ok := req.instanceConfig()
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid address in deployment config", nil)
		return
	}

	predicted, err := s.factoryService.Predict(cfg, salt)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"instance": predicted.Hex(),
		"salt":     salt.Hex(),
	})
}

// handleDeploy handles POST /api/factory/deploy
func (s *Server) handleDeploy(w http.ResponseWriter, r *http.Request) {
	var req deployRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	cfg, salt, ok := req.instanceConfig()
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid address in deployment config", nil)
		return
	}

	event, err := s.factoryService.Deploy(r.Context(), cfg, salt)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, event)
}

// handleListInstances handles GET /api/factory/instances/{owner}
func (s *Server) handleListInstances(w http.ResponseWriter, r *http.Request) {
	owner, ok := parseAddress(mux.Vars(r)["owner"])
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid owner address", nil)
		return
	}

	records, err := s.factoryService.Instances(r.Context(), owner)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, records)
}
