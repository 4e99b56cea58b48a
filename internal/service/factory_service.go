package service

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vault-router/internal/errors"
	"github.com/vault-router/internal/factory"
	"github.com/vault-router/internal/logging"
	"github.com/vault-router/internal/storage"
	"github.com/vault-router/internal/types"
)

// VaultRecordStore persists deployment records
type VaultRecordStore interface {
	Create(ctx context.Context, record *storage.VaultRecord) error
	Exists(ctx context.Context, owner common.Address, salt common.Hash) (bool, error)
	ListByOwner(ctx context.Context, owner common.Address) ([]*storage.VaultRecord, error)
	GetByInstance(ctx context.Context, instance common.Address) (*storage.VaultRecord, error)
}

// FactoryService drives deterministic deployment: address prediction, the
// once-only (owner, salt) bookkeeping and bringing the deployed account live
// in the vault service.
type FactoryService struct {
	registry *factory.Registry
	records  VaultRecordStore
	vaults   *VaultService
	chainID  types.ChainID
	logger   *logging.Logger
}

// NewFactoryService creates a new factory service. records may be nil in
// test wiring; duplicate rejection then relies on the in-memory registry
// alone.
func NewFactoryService(registry *factory.Registry, records VaultRecordStore, vaults *VaultService, chainID types.ChainID) *FactoryService {
	return &FactoryService{
		registry: registry,
		records:  records,
		vaults:   vaults,
		chainID:  chainID,
		logger:   logging.GetGlobalLogger().WithField("component", "factory_service"),
	}
}

// Predict returns the address Deploy would produce, without deploying
func (s *FactoryService) Predict(cfg *factory.InstanceConfig, salt common.Hash) (common.Address, error) {
	return s.registry.Predict(cfg, salt)
}

// Deploy creates a vault instance for (cfg.Owner, salt): it derives the
// address, persists the record, registers the live account and seeds its
// initial asset bindings from the configuration.
func (s *FactoryService) Deploy(ctx context.Context, cfg *factory.InstanceConfig, salt common.Hash) (*types.DeploymentEvent, error) {
	if s.records != nil {
		exists, err := s.records.Exists(ctx, cfg.Owner, salt)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, errors.NewDeploymentExistsError(cfg.Owner, salt)
		}
	}

	event, err := s.registry.Deploy(cfg, salt)
	if err != nil {
		return nil, err
	}

	if s.records != nil {
		record := &storage.VaultRecord{
			Instance:  event.Instance,
			Owner:     event.Owner,
			Salt:      event.Salt,
			ChainID:   uint64(event.ChainID),
			CreatedAt: time.Now().UTC(),
		}
		if err := s.records.Create(ctx, record); err != nil {
			return nil, err
		}
	}

	acct, err := s.vaults.CreateAccount(event.Instance, cfg.Owner, cfg.Admin)
	if err != nil {
		return nil, err
	}

	// Seed the instance's initial whitelist from the config arrays. The
	// same source may back several assets; the duplicate is benign.
	for i, asset := range cfg.Assets {
		source := cfg.Sources[i]
		if err := acct.AddVault(ctx, cfg.Admin, source); err != nil && !isCode(err, "VAULT_ALREADY_EXISTS") {
			return nil, err
		}
		if err := acct.AddAsset(cfg.Admin, asset, source); err != nil {
			return nil, err
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"instance": event.Instance.Hex(),
		"owner":    event.Owner.Hex(),
	}).Info("Deployment completed")

	return event, nil
}

// Instances lists the deployment records for an owner
func (s *FactoryService) Instances(ctx context.Context, owner common.Address) ([]*storage.VaultRecord, error) {
	if s.records != nil {
		return s.records.ListByOwner(ctx, owner)
	}

	addrs := s.registry.InstancesOf(owner)
	records := make([]*storage.VaultRecord, 0, len(addrs))
	for _, addr := range addrs {
		records = append(records, &storage.VaultRecord{
			Instance: addr,
			Owner:    owner,
			ChainID:  uint64(s.chainID),
		})
	}
	return records, nil
}

func isCode(err error, code string) bool {
	var catErr *errors.CategorizedError
	return stderrors.As(err, &catErr) && catErr.Code == code
}
