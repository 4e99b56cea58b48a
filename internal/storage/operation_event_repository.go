package storage

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/vault-router/internal/types"
)

// OperationEventRepository handles the append-only operation history in
// ClickHouse. Events are written after every successful value-moving
// operation and never updated.
type OperationEventRepository struct {
	db *ClickHouseDB
}

// NewOperationEventRepository creates a new operation event repository
func NewOperationEventRepository(db *ClickHouseDB) *OperationEventRepository {
	return &OperationEventRepository{db: db}
}

// OperationFilters narrows history queries
type OperationFilters struct {
	Kind   types.OperationKind
	Asset  *common.Address
	Limit  int
	Offset int
}

// Insert appends a single operation event. A missing ID is assigned.
func (r *OperationEventRepository) Insert(ctx context.Context, event *types.OperationEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	query := `
		INSERT INTO operation_events (
			id, account, kind, asset, source, amount, fee, caller, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := r.db.Conn().Exec(ctx, query,
		event.ID,
		strings.ToLower(event.Account.Hex()),
		string(event.Kind),
		strings.ToLower(event.Asset.Hex()),
		strings.ToLower(event.Source.Hex()),
		event.Amount.String(),
		event.Fee.String(),
		strings.ToLower(event.Caller.Hex()),
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert operation event: %w", err)
	}

	return nil
}

// BatchInsert appends multiple operation events in one batch
func (r *OperationEventRepository) BatchInsert(ctx context.Context, events []*types.OperationEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := r.db.Conn().PrepareBatch(ctx, `
		INSERT INTO operation_events (
			id, account, kind, asset, source, amount, fee, caller, timestamp
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, event := range events {
		if event.ID == "" {
			event.ID = uuid.New().String()
		}
		err := batch.Append(
			event.ID,
			strings.ToLower(event.Account.Hex()),
			string(event.Kind),
			strings.ToLower(event.Asset.Hex()),
			strings.ToLower(event.Source.Hex()),
			event.Amount.String(),
			event.Fee.String(),
			strings.ToLower(event.Caller.Hex()),
			event.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("failed to append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

// ListByAccount retrieves an account's operation history, newest first
func (r *OperationEventRepository) ListByAccount(ctx context.Context, account common.Address, filters *OperationFilters) ([]*types.OperationEvent, error) {
	query := `
		SELECT id, account, kind, asset, source, amount, fee, caller, timestamp
		FROM operation_events
		WHERE account = ?
	`
	args := []interface{}{strings.ToLower(account.Hex())}

	if filters != nil && filters.Kind != "" {
		query += " AND kind = ?"
		args = append(args, string(filters.Kind))
	}
	if filters != nil && filters.Asset != nil {
		query += " AND asset = ?"
		args = append(args, strings.ToLower(filters.Asset.Hex()))
	}

	query += " ORDER BY timestamp DESC"

	limit := 100
	offset := 0
	if filters != nil {
		if filters.Limit > 0 {
			limit = filters.Limit
		}
		if filters.Offset > 0 {
			offset = filters.Offset
		}
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.Conn().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query operation events: %w", err)
	}
	defer rows.Close()

	var events []*types.OperationEvent
	for rows.Next() {
		var event types.OperationEvent
		var accountStr, kind, asset, source, amount, fee, caller string
		var timestamp time.Time
		if err := rows.Scan(&event.ID, &accountStr, &kind, &asset, &source, &amount, &fee, &caller, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan operation event: %w", err)
		}

		event.Account = common.HexToAddress(accountStr)
		event.Kind = types.OperationKind(kind)
		event.Asset = common.HexToAddress(asset)
		event.Source = common.HexToAddress(source)
		event.Amount, _ = new(big.Int).SetString(amount, 10)
		event.Fee, _ = new(big.Int).SetString(fee, 10)
		event.Caller = common.HexToAddress(caller)
		event.Timestamp = timestamp

		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate operation events: %w", err)
	}

	return events, nil
}

// CountByAccount counts an account's recorded operations
func (r *OperationEventRepository) CountByAccount(ctx context.Context, account common.Address) (uint64, error) {
	var count uint64
	err := r.db.Conn().QueryRow(ctx,
		"SELECT count() FROM operation_events WHERE account = ?",
		strings.ToLower(account.Hex()),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count operation events: %w", err)
	}
	return count, nil
}
