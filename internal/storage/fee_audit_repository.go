package storage

import (
	"context"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/vault-router/internal/errors"
)

// FeeChange is one audited fee configuration change. Values are stored as
// decimal strings so bps fields and big.Int thresholds share one column.
type FeeChange struct {
	ID        uuid.UUID
	Account   common.Address
	Field     string
	OldValue  string
	NewValue  string
	ChangedBy common.Address
	ChangedAt time.Time
}

// FeeAuditRepository persists fee configuration changes for compliance review
type FeeAuditRepository struct {
	db *PostgresDB
}

// NewFeeAuditRepository creates a new fee audit repository
func NewFeeAuditRepository(db *PostgresDB) *FeeAuditRepository {
	return &FeeAuditRepository{db: db}
}

// Record inserts one audit row. The id is assigned here when unset.
func (r *FeeAuditRepository) Record(ctx context.Context, change *FeeChange) error {
	if change.ID == uuid.Nil {
		change.ID = uuid.New()
	}
	if change.ChangedAt.IsZero() {
		change.ChangedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO fee_config_audit (id, account, field, old_value, new_value, changed_by, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		change.ID,
		strings.ToLower(change.Account.Hex()),
		change.Field,
		change.OldValue,
		change.NewValue,
		strings.ToLower(change.ChangedBy.Hex()),
		change.ChangedAt,
	)
	if err != nil {
		return errors.NewDatabaseError("record fee change", err)
	}
	return nil
}

// ListByAccount fetches an account's fee change trail, newest first
func (r *FeeAuditRepository) ListByAccount(ctx context.Context, account common.Address) ([]*FeeChange, error) {
	query := `
		SELECT id, account, field, old_value, new_value, changed_by, changed_at
		FROM fee_config_audit
		WHERE account = $1
		ORDER BY changed_at DESC
	`

	rows, err := r.db.Pool().Query(ctx, query, strings.ToLower(account.Hex()))
	if err != nil {
		return nil, errors.NewDatabaseError("list fee changes", err)
	}
	defer rows.Close()

	var changes []*FeeChange
	for rows.Next() {
		var (
			change          FeeChange
			account, caller string
		)
		if err := rows.Scan(&change.ID, &account, &change.Field, &change.OldValue,
			&change.NewValue, &caller, &change.ChangedAt); err != nil {
			return nil, errors.NewDatabaseError("scan fee change", err)
		}
		change.Account = common.HexToAddress(account)
		change.ChangedBy = common.HexToAddress(caller)
		changes = append(changes, &change)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabaseError("list fee changes", err)
	}
	return changes, nil
}
