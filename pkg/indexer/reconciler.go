// Package indexer runs the per-domain pipelines that pull finalized logs
// from chain sources, decode them and reconcile them into transfer
// aggregates.
package indexer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/chainsafe/sygma-indexer/internal/metrics"
	"github.com/chainsafe/sygma-indexer/pkg/db"
	"github.com/chainsafe/sygma-indexer/pkg/events"
)

// TransferStore is the storage surface the reconciler writes through. It is
// satisfied by *db.Store both directly and inside a transaction.
type TransferStore interface {
	InsertAccounts(ctx context.Context, accounts []*db.Account) error
	InsertDeposit(ctx context.Context, deposit *db.Deposit) error
	InsertExecution(ctx context.Context, execution *db.Execution) error
	InsertFee(ctx context.Context, fee *db.Fee) error
	GetTransfer(ctx context.Context, id string) (*db.Transfer, error)
	GetTransferByDepositTxHash(ctx context.Context, txHash string) (*db.Transfer, error)
	SaveTransfer(ctx context.Context, transfer *db.Transfer) error
}

// DecodedBatch is the decoded output of one block range on one domain.
type DecodedBatch struct {
	Deposits   []*events.Deposit
	Executions []*events.Execution
	Failures   []*events.FailedExecution
	Fees       []*events.Fee
}

// Empty reports whether the batch carries no records.
func (b *DecodedBatch) Empty() bool {
	return len(b.Deposits) == 0 && len(b.Executions) == 0 && len(b.Failures) == 0 && len(b.Fees) == 0
}

// Reconciler merges decoded records into transfer aggregates. All writes are
// idempotent upserts, so re-delivery of a block range after a restart leaves
// the same rows behind.
type Reconciler struct {
	logger *zap.Logger
}

// NewReconciler creates a reconciler.
func NewReconciler(logger *zap.Logger) *Reconciler {
	return &Reconciler{logger: logger}
}

// Reconcile applies one decoded batch through the given store. Records of
// each kind are de-duplicated by id first; a destination chain can emit two
// logs for one transaction and both decode to value-identical records.
// Deposits are applied before executions and failures only so that fees
// arriving in the same batch can find their deposit; either half may still
// arrive first across batches.
func (r *Reconciler) Reconcile(ctx context.Context, store TransferStore, batch *DecodedBatch) error {
	deposits := dedupDeposits(batch.Deposits)
	executions := dedupExecutions(batch.Executions)
	failures := dedupFailures(batch.Failures)
	fees := dedupFees(batch.Fees)

	if err := r.insertAccounts(ctx, store, deposits); err != nil {
		return err
	}

	for _, deposit := range deposits {
		if err := r.applyDeposit(ctx, store, deposit); err != nil {
			return fmt.Errorf("failed to apply deposit %s: %w", deposit.TransferID, err)
		}
	}
	for _, execution := range executions {
		if err := r.applyExecution(ctx, store, execution); err != nil {
			return fmt.Errorf("failed to apply execution %s: %w", execution.TransferID, err)
		}
	}
	for _, failure := range failures {
		if err := r.applyFailure(ctx, store, failure); err != nil {
			return fmt.Errorf("failed to apply failed execution %s: %w", failure.TransferID, err)
		}
	}
	for _, fee := range fees {
		if err := r.applyFee(ctx, store, fee); err != nil {
			return fmt.Errorf("failed to apply fee %s: %w", fee.ID, err)
		}
	}
	return nil
}

// insertAccounts upserts every distinct depositor in the batch in one call,
// avoiding per-deposit writes racing on the same address.
func (r *Reconciler) insertAccounts(ctx context.Context, store TransferStore, deposits []*events.Deposit) error {
	seen := make(map[string]struct{}, len(deposits))
	accounts := make([]*db.Account, 0, len(deposits))
	for _, deposit := range deposits {
		if deposit.Sender == "" {
			continue
		}
		if _, ok := seen[deposit.Sender]; ok {
			continue
		}
		seen[deposit.Sender] = struct{}{}
		accounts = append(accounts, &db.Account{Address: deposit.Sender})
	}
	if len(accounts) == 0 {
		return nil
	}
	if err := store.InsertAccounts(ctx, accounts); err != nil {
		return fmt.Errorf("failed to insert accounts: %w", err)
	}
	return nil
}

func (r *Reconciler) applyDeposit(ctx context.Context, store TransferStore, deposit *events.Deposit) error {
	if err := store.InsertDeposit(ctx, &db.Deposit{
		ID:              deposit.TransferID,
		Type:            string(deposit.Type),
		TxHash:          deposit.TxHash,
		BlockNumber:     deposit.BlockNumber,
		DepositData:     deposit.DepositData,
		HandlerResponse: deposit.HandlerResponse,
		Timestamp:       deposit.Timestamp,
	}); err != nil {
		return err
	}

	var feeID *string
	if deposit.Fee != nil {
		if err := store.InsertFee(ctx, &db.Fee{
			ID:           deposit.Fee.ID,
			Amount:       deposit.Fee.Amount,
			TokenAddress: deposit.Fee.TokenAddress,
			TokenSymbol:  deposit.Fee.TokenSymbol,
			Decimals:     deposit.Fee.Decimals,
		}); err != nil {
			return err
		}
		feeID = &deposit.Fee.ID
	}

	transfer, err := store.GetTransfer(ctx, deposit.TransferID)
	if err != nil {
		return err
	}
	if transfer == nil {
		transfer = &db.Transfer{
			ID:           deposit.TransferID,
			DepositNonce: deposit.DepositNonce,
			FromDomainID: deposit.FromDomainID,
			Status:       db.TransferStatusPending,
		}
	}

	// The execution half may already have landed; its final status is never
	// downgraded by the deposit arriving late.
	transfer.ResourceID = ptr(deposit.ResourceID)
	transfer.ToDomainID = ptr(deposit.ToDomainID)
	transfer.Destination = ptr(deposit.Destination)
	transfer.Amount = ptr(deposit.Amount)
	transfer.AccountID = ptr(deposit.Sender)
	transfer.DepositID = ptr(deposit.TransferID)
	if feeID != nil {
		transfer.FeeID = feeID
	}
	return saveTransfer(ctx, store, transfer)
}

func (r *Reconciler) applyExecution(ctx context.Context, store TransferStore, execution *events.Execution) error {
	if err := store.InsertExecution(ctx, &db.Execution{
		ID:          execution.TransferID,
		TxHash:      execution.TxHash,
		BlockNumber: execution.BlockNumber,
		Timestamp:   execution.Timestamp,
	}); err != nil {
		return err
	}

	transfer, err := store.GetTransfer(ctx, execution.TransferID)
	if err != nil {
		return err
	}
	if transfer == nil {
		transfer = &db.Transfer{
			ID:           execution.TransferID,
			DepositNonce: execution.DepositNonce,
			FromDomainID: execution.FromDomainID,
			ToDomainID:   ptr(execution.ToDomainID),
		}
	}
	transfer.ExecutionID = ptr(execution.TransferID)
	transfer.Status = db.TransferStatusExecuted
	return saveTransfer(ctx, store, transfer)
}

func (r *Reconciler) applyFailure(ctx context.Context, store TransferStore, failure *events.FailedExecution) error {
	execution := &db.Execution{
		ID:          failure.TransferID,
		TxHash:      failure.TxHash,
		BlockNumber: failure.BlockNumber,
		Timestamp:   failure.Timestamp,
	}
	if failure.Message != "" {
		execution.Message = ptr(failure.Message)
	}
	if err := store.InsertExecution(ctx, execution); err != nil {
		return err
	}

	transfer, err := store.GetTransfer(ctx, failure.TransferID)
	if err != nil {
		return err
	}
	if transfer == nil {
		transfer = &db.Transfer{
			ID:           failure.TransferID,
			DepositNonce: failure.DepositNonce,
			FromDomainID: failure.FromDomainID,
			ToDomainID:   ptr(failure.ToDomainID),
		}
	}
	transfer.ExecutionID = ptr(failure.TransferID)
	transfer.Status = db.TransferStatusFailed
	if failure.Message != "" {
		transfer.Message = ptr(failure.Message)
	}
	return saveTransfer(ctx, store, transfer)
}

// applyFee attaches an observed fee event to the transfer whose deposit
// shares its tx identifier. Fees are best-effort annotations: with no
// matching deposit yet the fee is dropped with a warning.
func (r *Reconciler) applyFee(ctx context.Context, store TransferStore, fee *events.Fee) error {
	transfer, err := store.GetTransferByDepositTxHash(ctx, fee.TxIdentifier)
	if err != nil {
		return err
	}
	if transfer == nil {
		r.logger.Warn("No deposit found for collected fee, dropping",
			zap.String("fee_id", fee.ID),
			zap.String("tx_identifier", fee.TxIdentifier))
		return nil
	}

	if err := store.InsertFee(ctx, &db.Fee{
		ID:           fee.ID,
		Amount:       fee.Amount,
		TokenAddress: fee.TokenAddress,
		TokenSymbol:  fee.TokenSymbol,
		Decimals:     fee.Decimals,
	}); err != nil {
		return err
	}
	transfer.FeeID = ptr(fee.ID)
	return saveTransfer(ctx, store, transfer)
}

func saveTransfer(ctx context.Context, store TransferStore, transfer *db.Transfer) error {
	if err := store.SaveTransfer(ctx, transfer); err != nil {
		return err
	}
	metrics.TransfersSaved.WithLabelValues(string(transfer.Status)).Inc()
	return nil
}

func dedupDeposits(deposits []*events.Deposit) []*events.Deposit {
	byID := make(map[string]int, len(deposits))
	out := make([]*events.Deposit, 0, len(deposits))
	for _, d := range deposits {
		if i, ok := byID[d.TransferID]; ok {
			out[i] = d
			continue
		}
		byID[d.TransferID] = len(out)
		out = append(out, d)
	}
	return out
}

func dedupExecutions(executions []*events.Execution) []*events.Execution {
	byID := make(map[string]int, len(executions))
	out := make([]*events.Execution, 0, len(executions))
	for _, e := range executions {
		if i, ok := byID[e.TransferID]; ok {
			out[i] = e
			continue
		}
		byID[e.TransferID] = len(out)
		out = append(out, e)
	}
	return out
}

func dedupFailures(failures []*events.FailedExecution) []*events.FailedExecution {
	byID := make(map[string]int, len(failures))
	out := make([]*events.FailedExecution, 0, len(failures))
	for _, f := range failures {
		if i, ok := byID[f.TransferID]; ok {
			out[i] = f
			continue
		}
		byID[f.TransferID] = len(out)
		out = append(out, f)
	}
	return out
}

func dedupFees(fees []*events.Fee) []*events.Fee {
	byID := make(map[string]int, len(fees))
	out := make([]*events.Fee, 0, len(fees))
	for _, f := range fees {
		if i, ok := byID[f.ID]; ok {
			out[i] = f
			continue
		}
		byID[f.ID] = len(out)
		out = append(out, f)
	}
	return out
}

func ptr[T any](v T) *T {
	return &v
}
