package storage

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/vault-router/internal/errors"
)

// VaultRecord is one deployed vault instance as persisted by the factory
type VaultRecord struct {
	Instance  common.Address
	Owner     common.Address
	Salt      common.Hash
	ChainID   uint64
	CreatedAt time.Time
}

// VaultRecordRepository handles vault deployment persistence
type VaultRecordRepository struct {
	db *PostgresDB
}

// NewVaultRecordRepository creates a new vault record repository
func NewVaultRecordRepository(db *PostgresDB) *VaultRecordRepository {
	return &VaultRecordRepository{db: db}
}

func hexLower(b []byte) string {
	return strings.ToLower(common.Bytes2Hex(b))
}

// Create inserts a deployment record. The unique index on (owner, salt)
// backs the factory's duplicate rejection across restarts.
func (r *VaultRecordRepository) Create(ctx context.Context, record *VaultRecord) error {
	query := `
		INSERT INTO vault_records (instance, owner, salt, chain_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		strings.ToLower(record.Instance.Hex()),
		strings.ToLower(record.Owner.Hex()),
		hexLower(record.Salt.Bytes()),
		record.ChainID,
		record.CreatedAt,
	)
	if err != nil {
		return errors.NewDatabaseError("create vault record", err)
	}
	return nil
}

// Exists reports whether an (owner, salt) pair is already recorded
func (r *VaultRecordRepository) Exists(ctx context.Context, owner common.Address, salt common.Hash) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM vault_records WHERE owner = $1 AND salt = $2)`

	var exists bool
	err := r.db.Pool().QueryRow(ctx, query,
		strings.ToLower(owner.Hex()),
		hexLower(salt.Bytes()),
	).Scan(&exists)
	if err != nil {
		return false, errors.NewDatabaseError("check vault record", err)
	}
	return exists, nil
}

// GetByInstance fetches the record for an instance address
func (r *VaultRecordRepository) GetByInstance(ctx context.Context, instance common.Address) (*VaultRecord, error) {
	query := `
		SELECT instance, owner, salt, chain_id, created_at
		FROM vault_records
		WHERE instance = $1
	`

	row := r.db.Pool().QueryRow(ctx, query, strings.ToLower(instance.Hex()))
	record, err := scanVaultRecord(row)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.NewNotFoundError("vault record", instance.Hex())
		}
		return nil, errors.NewDatabaseError("get vault record", err)
	}
	return record, nil
}

// ListByOwner fetches every recorded instance for an owner, oldest first
func (r *VaultRecordRepository) ListByOwner(ctx context.Context, owner common.Address) ([]*VaultRecord, error) {
	query := `
		SELECT instance, owner, salt, chain_id, created_at
		FROM vault_records
		WHERE owner = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.Pool().Query(ctx, query, strings.ToLower(owner.Hex()))
	if err != nil {
		return nil, errors.NewDatabaseError("list vault records", err)
	}
	defer rows.Close()

	var records []*VaultRecord
	for rows.Next() {
		record, err := scanVaultRecord(rows)
		if err != nil {
			return nil, errors.NewDatabaseError("scan vault record", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabaseError("list vault records", err)
	}
	return records, nil
}

func scanVaultRecord(row pgx.Row) (*VaultRecord, error) {
	var record VaultRecord
	var instance, ownerStr, saltStr string
	if err := row.Scan(&instance, &ownerStr, &saltStr, &record.ChainID, &record.CreatedAt); err != nil {
		return nil, err
	}
	record.Instance = common.HexToAddress(instance)
	record.Owner = common.HexToAddress(ownerStr)
	record.Salt = common.HexToHash(saltStr)
	return &record, nil
}
