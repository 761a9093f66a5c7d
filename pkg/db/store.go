package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// Store provides database operations for the indexer
type Store struct {
	db bun.IDB
}

// NewStore creates a new database store
func NewStore(db bun.IDB) *Store {
	return &Store{db: db}
}

// RunInTx runs fn with a store bound to one database transaction. A store
// already inside a transaction runs fn directly.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx *Store) error) error {
	db, ok := s.db.(*bun.DB)
	if !ok {
		return fn(ctx, s)
	}
	return db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &Store{db: tx})
	})
}

// =============================================================================
// Static topology (domains, resources, routes)
// =============================================================================

// SeedDomains inserts domains from shared configuration, preserving the
// watermark of domains that already exist.
func (s *Store) SeedDomains(ctx context.Context, domains []*Domain) error {
	if len(domains) == 0 {
		return nil
	}
	_, err := s.db.NewInsert().
		Model(&domains).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("type = EXCLUDED.type").
		Exec(ctx)
	return err
}

// SeedResources inserts resources from shared configuration.
func (s *Store) SeedResources(ctx context.Context, resources []*Resource) error {
	if len(resources) == 0 {
		return nil
	}
	_, err := s.db.NewInsert().
		Model(&resources).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	return err
}

// SeedRoutes inserts routes from shared configuration.
func (s *Store) SeedRoutes(ctx context.Context, routes []*Route) error {
	if len(routes) == 0 {
		return nil
	}
	_, err := s.db.NewInsert().
		Model(&routes).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	return err
}

// ListDomains returns all known domains.
func (s *Store) ListDomains(ctx context.Context) ([]*Domain, error) {
	var domains []*Domain
	err := s.db.NewSelect().Model(&domains).Order("id ASC").Scan(ctx)
	return domains, err
}

// ListResources returns all known resources.
func (s *Store) ListResources(ctx context.Context) ([]*Resource, error) {
	var resources []*Resource
	err := s.db.NewSelect().Model(&resources).Order("id ASC").Scan(ctx)
	return resources, err
}

// GetResource returns the resource with the given id, or nil when unknown.
func (s *Store) GetResource(ctx context.Context, id string) (*Resource, error) {
	resource := &Resource{}
	err := s.db.NewSelect().Model(resource).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return resource, nil
}

// ListRoutes returns the routes between two domains.
func (s *Store) ListRoutes(ctx context.Context, from, to uint8) ([]*Route, error) {
	var routes []*Route
	err := s.db.NewSelect().
		Model(&routes).
		Where("from_domain_id = ?", from).
		Where("to_domain_id = ?", to).
		Order("resource_id ASC").
		Scan(ctx)
	return routes, err
}

// LastIndexedBlock returns the watermark for a domain.
func (s *Store) LastIndexedBlock(ctx context.Context, domainID uint8) (uint64, error) {
	var block uint64
	err := s.db.NewSelect().
		Model((*Domain)(nil)).
		Column("last_indexed_block").
		Where("id = ?", domainID).
		Scan(ctx, &block)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return block, err
}

// SetLastIndexedBlock advances the watermark for a domain.
func (s *Store) SetLastIndexedBlock(ctx context.Context, domainID uint8, block uint64) error {
	_, err := s.db.NewUpdate().
		Model((*Domain)(nil)).
		Set("last_indexed_block = ?", block).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", domainID).
		Exec(ctx)
	return err
}

// =============================================================================
// Satellite rows (accounts, deposits, executions, fees), insert-once
// =============================================================================

// InsertAccounts creates account rows for first-time depositors. Existing
// rows are untouched so sanctions annotations survive re-indexing.
func (s *Store) InsertAccounts(ctx context.Context, accounts []*Account) error {
	if len(accounts) == 0 {
		return nil
	}
	_, err := s.db.NewInsert().
		Model(&accounts).
		On("CONFLICT (address) DO NOTHING").
		Exec(ctx)
	return err
}

// SetAccountSanctionedStatus annotates an account with its screening result.
func (s *Store) SetAccountSanctionedStatus(ctx context.Context, address, status string) error {
	_, err := s.db.NewUpdate().
		Model((*Account)(nil)).
		Set("sanctioned_status = ?", status).
		Where("address = ?", address).
		Exec(ctx)
	return err
}

// InsertDeposit creates a deposit row. Re-delivery of the same deposit is an
// idempotent no-op.
func (s *Store) InsertDeposit(ctx context.Context, deposit *Deposit) error {
	_, err := s.db.NewInsert().
		Model(deposit).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	return err
}

// InsertExecution creates an execution row. Idempotent.
func (s *Store) InsertExecution(ctx context.Context, execution *Execution) error {
	_, err := s.db.NewInsert().
		Model(execution).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	return err
}

// InsertFee creates a fee row. Idempotent.
func (s *Store) InsertFee(ctx context.Context, fee *Fee) error {
	_, err := s.db.NewInsert().
		Model(fee).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	return err
}

// =============================================================================
// Transfer aggregate
// =============================================================================

// GetTransfer returns the transfer with the given id, or nil when unknown.
func (s *Store) GetTransfer(ctx context.Context, id string) (*Transfer, error) {
	transfer := &Transfer{}
	err := s.db.NewSelect().Model(transfer).Where("t.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return transfer, nil
}

// GetTransferByDepositTxHash returns the transfer whose linked deposit has the
// given transaction identifier, or nil. Used to attach observed fee events.
func (s *Store) GetTransferByDepositTxHash(ctx context.Context, txHash string) (*Transfer, error) {
	transfer := &Transfer{}
	err := s.db.NewSelect().
		Model(transfer).
		Join("JOIN deposits AS d ON d.id = t.deposit_id").
		Where("d.tx_hash = ?", txHash).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return transfer, nil
}

// SaveTransfer upserts the full transfer aggregate row.
func (s *Store) SaveTransfer(ctx context.Context, transfer *Transfer) error {
	transfer.UpdatedAt = time.Now().UTC()
	_, err := s.db.NewInsert().
		Model(transfer).
		On("CONFLICT (id) DO UPDATE").
		Set("resource_id = EXCLUDED.resource_id").
		Set("to_domain_id = EXCLUDED.to_domain_id").
		Set("destination = EXCLUDED.destination").
		Set("amount = EXCLUDED.amount").
		Set("status = EXCLUDED.status").
		Set("message = EXCLUDED.message").
		Set("usd_value = EXCLUDED.usd_value").
		Set("account_id = EXCLUDED.account_id").
		Set("deposit_id = EXCLUDED.deposit_id").
		Set("execution_id = EXCLUDED.execution_id").
		Set("fee_id = EXCLUDED.fee_id").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

// GetTransferDetailed returns one transfer with its linked rows, or nil.
func (s *Store) GetTransferDetailed(ctx context.Context, id string) (*Transfer, error) {
	transfer := &Transfer{}
	err := s.db.NewSelect().
		Model(transfer).
		Relation("Deposit").
		Relation("Execution").
		Relation("Fee").
		Relation("Account").
		Where("t.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return transfer, nil
}

// ListTransfers returns one page of transfers, most recently updated first.
func (s *Store) ListTransfers(ctx context.Context, limit, offset int) ([]*Transfer, error) {
	var transfers []*Transfer
	err := s.db.NewSelect().
		Model(&transfers).
		Relation("Deposit").
		Relation("Execution").
		Relation("Fee").
		Order("t.updated_at DESC").
		Limit(limit).
		Offset(offset).
		Scan(ctx)
	return transfers, err
}

// ListTransfersBySender returns one page of transfers initiated by an account.
func (s *Store) ListTransfersBySender(ctx context.Context, sender string, limit, offset int) ([]*Transfer, error) {
	var transfers []*Transfer
	err := s.db.NewSelect().
		Model(&transfers).
		Relation("Deposit").
		Relation("Execution").
		Relation("Fee").
		Where("t.account_id = ?", sender).
		Order("t.updated_at DESC").
		Limit(limit).
		Offset(offset).
		Scan(ctx)
	return transfers, err
}

// CountTransfers returns the total number of transfers.
func (s *Store) CountTransfers(ctx context.Context) (int, error) {
	count, err := s.db.NewSelect().Model((*Transfer)(nil)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count transfers: %w", err)
	}
	return count, nil
}
