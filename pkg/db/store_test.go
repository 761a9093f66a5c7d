package db_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/uptrace/bun/migrate"

	"github.com/chainsafe/sygma-indexer/pkg/db"
	"github.com/chainsafe/sygma-indexer/pkg/migrations/indexerdb"
	"github.com/chainsafe/sygma-indexer/pkg/pgutil"
)

func setupStore(t *testing.T) (context.Context, *db.Store) {
	t.Helper()
	requireDockerAccess(t)

	ctx := context.Background()
	bunDB, cleanup := pgutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	migrator := migrate.NewMigrator(bunDB, indexerdb.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator.Init() failed: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrator.Migrate() failed: %v", err)
	}

	return ctx, db.NewStore(bunDB)
}

func requireDockerAccess(t *testing.T) {
	t.Helper()

	candidates := []string{
		"/var/run/docker.sock",
		filepath.Join(os.Getenv("HOME"), ".docker/run/docker.sock"),
	}

	for _, sock := range candidates {
		if sock == "" {
			continue
		}
		if _, err := os.Stat(sock); err != nil {
			continue
		}
		conn, err := (&net.Dialer{}).DialContext(context.Background(), "unix", sock)
		if err == nil {
			_ = conn.Close()
			return
		}
	}

	t.Skip("docker daemon socket is not accessible; skipping testcontainer-backed store tests")
}

func ptr[T any](v T) *T { return &v }

const fungibleResourceID = "0x0000000000000000000000000000000000000000000000000000000000000300"

func seedTestTopology(ctx context.Context, t *testing.T, s *db.Store) {
	t.Helper()

	domains := []*db.Domain{
		{ID: 1, Name: "ethereum", Type: "evm"},
		{ID: 2, Name: "gnosis", Type: "evm"},
	}
	if err := s.SeedDomains(ctx, domains); err != nil {
		t.Fatalf("SeedDomains() failed: %v", err)
	}

	resources := []*db.Resource{
		{ID: fungibleResourceID, Type: "fungible", Decimals: ptr(18)},
	}
	if err := s.SeedResources(ctx, resources); err != nil {
		t.Fatalf("SeedResources() failed: %v", err)
	}

	routes := []*db.Route{
		{ID: "1-2-" + fungibleResourceID, FromDomainID: 1, ToDomainID: 2, ResourceID: fungibleResourceID},
		{ID: "2-1-" + fungibleResourceID, FromDomainID: 2, ToDomainID: 1, ResourceID: fungibleResourceID},
	}
	if err := s.SeedRoutes(ctx, routes); err != nil {
		t.Fatalf("SeedRoutes() failed: %v", err)
	}
}

func TestStore_SeedTopology(t *testing.T) {
	ctx, s := setupStore(t)
	seedTestTopology(ctx, t, s)

	domains, err := s.ListDomains(ctx)
	if err != nil {
		t.Fatalf("ListDomains() failed: %v", err)
	}
	if len(domains) != 2 {
		t.Fatalf("unexpected domain count: got %d want 2", len(domains))
	}
	if domains[0].ID != 1 || domains[0].Name != "ethereum" {
		t.Errorf("unexpected first domain: %+v", domains[0])
	}

	resource, err := s.GetResource(ctx, fungibleResourceID)
	if err != nil {
		t.Fatalf("GetResource() failed: %v", err)
	}
	if resource == nil {
		t.Fatal("expected resource to exist")
	}
	if resource.Decimals == nil || *resource.Decimals != 18 {
		t.Errorf("unexpected resource decimals: %+v", resource.Decimals)
	}

	missing, err := s.GetResource(ctx, "0xdead")
	if err != nil {
		t.Fatalf("GetResource(missing) failed: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown resource, got %+v", missing)
	}

	routes, err := s.ListRoutes(ctx, 1, 2)
	if err != nil {
		t.Fatalf("ListRoutes() failed: %v", err)
	}
	if len(routes) != 1 {
		t.Fatalf("unexpected route count: got %d want 1", len(routes))
	}
	if routes[0].ResourceID != fungibleResourceID {
		t.Errorf("unexpected route resource: %s", routes[0].ResourceID)
	}

	// Re-seeding is idempotent.
	seedTestTopology(ctx, t, s)
	domains, err = s.ListDomains(ctx)
	if err != nil {
		t.Fatalf("ListDomains() after re-seed failed: %v", err)
	}
	if len(domains) != 2 {
		t.Errorf("re-seed duplicated domains: got %d want 2", len(domains))
	}
}

func TestStore_Watermark(t *testing.T) {
	ctx, s := setupStore(t)
	seedTestTopology(ctx, t, s)

	block, err := s.LastIndexedBlock(ctx, 1)
	if err != nil {
		t.Fatalf("LastIndexedBlock() failed: %v", err)
	}
	if block != 0 {
		t.Errorf("expected zero watermark for fresh domain, got %d", block)
	}

	if err := s.SetLastIndexedBlock(ctx, 1, 19000000); err != nil {
		t.Fatalf("SetLastIndexedBlock() failed: %v", err)
	}
	block, err = s.LastIndexedBlock(ctx, 1)
	if err != nil {
		t.Fatalf("LastIndexedBlock() failed: %v", err)
	}
	if block != 19000000 {
		t.Errorf("unexpected watermark: got %d want 19000000", block)
	}

	// Re-seeding domains must not reset the watermark.
	seedTestTopology(ctx, t, s)
	block, err = s.LastIndexedBlock(ctx, 1)
	if err != nil {
		t.Fatalf("LastIndexedBlock() after re-seed failed: %v", err)
	}
	if block != 19000000 {
		t.Errorf("re-seed reset watermark: got %d want 19000000", block)
	}

	block, err = s.LastIndexedBlock(ctx, 99)
	if err != nil {
		t.Fatalf("LastIndexedBlock(unknown) failed: %v", err)
	}
	if block != 0 {
		t.Errorf("expected zero watermark for unknown domain, got %d", block)
	}
}

func TestStore_AccountsInsertOnce(t *testing.T) {
	ctx, s := setupStore(t)

	addr := "0x5c1f5961696bad2e73f73417f07ef55c62a2dc5b"
	if err := s.InsertAccounts(ctx, []*db.Account{{Address: addr}}); err != nil {
		t.Fatalf("InsertAccounts() failed: %v", err)
	}
	if err := s.SetAccountSanctionedStatus(ctx, addr, "clear"); err != nil {
		t.Fatalf("SetAccountSanctionedStatus() failed: %v", err)
	}

	// Re-inserting the same address must not wipe the annotation.
	if err := s.InsertAccounts(ctx, []*db.Account{{Address: addr}}); err != nil {
		t.Fatalf("InsertAccounts() re-insert failed: %v", err)
	}

	transfer := &db.Transfer{
		ID:           "1-1-2",
		DepositNonce: 1,
		FromDomainID: 1,
		Status:       db.TransferStatusPending,
		AccountID:    ptr(addr),
	}
	if err := s.SaveTransfer(ctx, transfer); err != nil {
		t.Fatalf("SaveTransfer() failed: %v", err)
	}

	detailed, err := s.GetTransferDetailed(ctx, "1-1-2")
	if err != nil {
		t.Fatalf("GetTransferDetailed() failed: %v", err)
	}
	if detailed.Account == nil {
		t.Fatal("expected account relation to load")
	}
	if detailed.Account.SanctionedStatus == nil || *detailed.Account.SanctionedStatus != "clear" {
		t.Errorf("unexpected sanctioned status: %+v", detailed.Account.SanctionedStatus)
	}
}

func TestStore_TransferLifecycle(t *testing.T) {
	ctx, s := setupStore(t)
	seedTestTopology(ctx, t, s)

	missing, err := s.GetTransfer(ctx, "5-1-2")
	if err != nil {
		t.Fatalf("GetTransfer(missing) failed: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown transfer, got %+v", missing)
	}

	deposit := &db.Deposit{
		ID:          "5-1-2",
		Type:        "fungible",
		TxHash:      "0xdeposit-tx",
		BlockNumber: 19000100,
		DepositData: "0x00",
		Timestamp:   time.Now().UTC(),
	}
	if err := s.InsertDeposit(ctx, deposit); err != nil {
		t.Fatalf("InsertDeposit() failed: %v", err)
	}
	// Re-delivery is a no-op.
	if err := s.InsertDeposit(ctx, deposit); err != nil {
		t.Fatalf("InsertDeposit() re-insert failed: %v", err)
	}

	fee := &db.Fee{ID: "5-1-2", Amount: "1000000000000000", TokenSymbol: "ETH", Decimals: 18}
	if err := s.InsertFee(ctx, fee); err != nil {
		t.Fatalf("InsertFee() failed: %v", err)
	}

	sender := "0x5c1f5961696bad2e73f73417f07ef55c62a2dc5b"
	if err := s.InsertAccounts(ctx, []*db.Account{{Address: sender}}); err != nil {
		t.Fatalf("InsertAccounts() failed: %v", err)
	}

	transfer := &db.Transfer{
		ID:           "5-1-2",
		DepositNonce: 5,
		ResourceID:   ptr(fungibleResourceID),
		FromDomainID: 1,
		ToDomainID:   ptr(uint8(2)),
		Destination:  ptr(sender),
		Amount:       ptr("4"),
		Status:       db.TransferStatusPending,
		AccountID:    ptr(sender),
		DepositID:    ptr(deposit.ID),
		FeeID:        ptr(fee.ID),
	}
	if err := s.SaveTransfer(ctx, transfer); err != nil {
		t.Fatalf("SaveTransfer() failed: %v", err)
	}

	byTx, err := s.GetTransferByDepositTxHash(ctx, "0xdeposit-tx")
	if err != nil {
		t.Fatalf("GetTransferByDepositTxHash() failed: %v", err)
	}
	if byTx == nil || byTx.ID != "5-1-2" {
		t.Fatalf("unexpected transfer by deposit tx: %+v", byTx)
	}

	execution := &db.Execution{
		ID:          "5-1-2",
		TxHash:      "0xexec-tx",
		BlockNumber: 4000200,
		Timestamp:   time.Now().UTC(),
	}
	if err := s.InsertExecution(ctx, execution); err != nil {
		t.Fatalf("InsertExecution() failed: %v", err)
	}
	transfer.Status = db.TransferStatusExecuted
	transfer.ExecutionID = ptr(execution.ID)
	if err := s.SaveTransfer(ctx, transfer); err != nil {
		t.Fatalf("SaveTransfer() upsert failed: %v", err)
	}

	detailed, err := s.GetTransferDetailed(ctx, "5-1-2")
	if err != nil {
		t.Fatalf("GetTransferDetailed() failed: %v", err)
	}
	if detailed.Status != db.TransferStatusExecuted {
		t.Errorf("unexpected status: got %s want %s", detailed.Status, db.TransferStatusExecuted)
	}
	if detailed.Deposit == nil || detailed.Deposit.TxHash != "0xdeposit-tx" {
		t.Errorf("deposit relation missing or wrong: %+v", detailed.Deposit)
	}
	if detailed.Execution == nil || detailed.Execution.TxHash != "0xexec-tx" {
		t.Errorf("execution relation missing or wrong: %+v", detailed.Execution)
	}
	if detailed.Fee == nil || detailed.Fee.TokenSymbol != "ETH" {
		t.Errorf("fee relation missing or wrong: %+v", detailed.Fee)
	}
	if detailed.Amount == nil || *detailed.Amount != "4" {
		t.Errorf("unexpected amount: %+v", detailed.Amount)
	}

	count, err := s.CountTransfers(ctx)
	if err != nil {
		t.Fatalf("CountTransfers() failed: %v", err)
	}
	if count != 1 {
		t.Errorf("unexpected transfer count: got %d want 1", count)
	}
}

func TestStore_ListTransfersPagination(t *testing.T) {
	ctx, s := setupStore(t)
	seedTestTopology(ctx, t, s)

	alice := "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	bob := "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	if err := s.InsertAccounts(ctx, []*db.Account{{Address: alice}, {Address: bob}}); err != nil {
		t.Fatalf("InsertAccounts() failed: %v", err)
	}

	for i, account := range []string{alice, alice, bob} {
		transfer := &db.Transfer{
			ID:           fmt.Sprintf("%d-1-2", i+1),
			DepositNonce: uint64(i + 1),
			FromDomainID: 1,
			ToDomainID:   ptr(uint8(2)),
			Status:       db.TransferStatusPending,
			AccountID:    ptr(account),
		}
		if err := s.SaveTransfer(ctx, transfer); err != nil {
			t.Fatalf("SaveTransfer(%d) failed: %v", i, err)
		}
	}

	page, err := s.ListTransfers(ctx, 2, 0)
	if err != nil {
		t.Fatalf("ListTransfers() failed: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("unexpected page size: got %d want 2", len(page))
	}

	rest, err := s.ListTransfers(ctx, 2, 2)
	if err != nil {
		t.Fatalf("ListTransfers(offset) failed: %v", err)
	}
	if len(rest) != 1 {
		t.Fatalf("unexpected second page size: got %d want 1", len(rest))
	}

	bySender, err := s.ListTransfersBySender(ctx, alice, 10, 0)
	if err != nil {
		t.Fatalf("ListTransfersBySender() failed: %v", err)
	}
	if len(bySender) != 2 {
		t.Fatalf("unexpected sender transfer count: got %d want 2", len(bySender))
	}
	for _, tr := range bySender {
		if tr.AccountID == nil || *tr.AccountID != alice {
			t.Errorf("unexpected sender on transfer %s: %+v", tr.ID, tr.AccountID)
		}
	}
}

func TestStore_RunInTxRollsBackOnError(t *testing.T) {
	ctx, s := setupStore(t)
	seedTestTopology(ctx, t, s)

	sentinel := errors.New("boom")
	err := s.RunInTx(ctx, func(ctx context.Context, tx *db.Store) error {
		if err := tx.SetLastIndexedBlock(ctx, 1, 42); err != nil {
			return err
		}
		transfer := &db.Transfer{
			ID:           "9-1-2",
			DepositNonce: 9,
			FromDomainID: 1,
			Status:       db.TransferStatusPending,
		}
		if err := tx.SaveTransfer(ctx, transfer); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}

	block, err := s.LastIndexedBlock(ctx, 1)
	if err != nil {
		t.Fatalf("LastIndexedBlock() failed: %v", err)
	}
	if block != 0 {
		t.Errorf("watermark leaked from rolled-back tx: got %d", block)
	}
	transfer, err := s.GetTransfer(ctx, "9-1-2")
	if err != nil {
		t.Fatalf("GetTransfer() failed: %v", err)
	}
	if transfer != nil {
		t.Errorf("transfer leaked from rolled-back tx: %+v", transfer)
	}
}
