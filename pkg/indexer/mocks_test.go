package indexer

import (
	"context"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"

	"github.com/chainsafe/sygma-indexer/pkg/db"
	"github.com/chainsafe/sygma-indexer/pkg/events"
	"github.com/chainsafe/sygma-indexer/pkg/parser"
)

// memStore is an in-memory TransferStore mimicking the idempotent upsert
// semantics of the real store.
type memStore struct {
	accounts   map[string]*db.Account
	deposits   map[string]*db.Deposit
	executions map[string]*db.Execution
	fees       map[string]*db.Fee
	transfers  map[string]*db.Transfer
}

func newMemStore() *memStore {
	return &memStore{
		accounts:   make(map[string]*db.Account),
		deposits:   make(map[string]*db.Deposit),
		executions: make(map[string]*db.Execution),
		fees:       make(map[string]*db.Fee),
		transfers:  make(map[string]*db.Transfer),
	}
}

func (m *memStore) InsertAccounts(ctx context.Context, accounts []*db.Account) error {
	for _, a := range accounts {
		if _, ok := m.accounts[a.Address]; !ok {
			cp := *a
			m.accounts[a.Address] = &cp
		}
	}
	return nil
}

func (m *memStore) InsertDeposit(ctx context.Context, deposit *db.Deposit) error {
	if _, ok := m.deposits[deposit.ID]; !ok {
		cp := *deposit
		m.deposits[deposit.ID] = &cp
	}
	return nil
}

func (m *memStore) InsertExecution(ctx context.Context, execution *db.Execution) error {
	if _, ok := m.executions[execution.ID]; !ok {
		cp := *execution
		m.executions[execution.ID] = &cp
	}
	return nil
}

func (m *memStore) InsertFee(ctx context.Context, fee *db.Fee) error {
	if _, ok := m.fees[fee.ID]; !ok {
		cp := *fee
		m.fees[fee.ID] = &cp
	}
	return nil
}

func (m *memStore) GetTransfer(ctx context.Context, id string) (*db.Transfer, error) {
	t, ok := m.transfers[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (m *memStore) GetTransferByDepositTxHash(ctx context.Context, txHash string) (*db.Transfer, error) {
	for _, t := range m.transfers {
		if t.DepositID == nil {
			continue
		}
		d, ok := m.deposits[*t.DepositID]
		if ok && d.TxHash == txHash {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) SaveTransfer(ctx context.Context, transfer *db.Transfer) error {
	cp := *transfer
	m.transfers[transfer.ID] = &cp
	return nil
}

// MockStorageReader is a mock chain state storage reader
type MockStorageReader struct {
	GetStorageFunc func(key types.StorageKey, target interface{}, blockHash types.Hash) (bool, error)
}

func (m *MockStorageReader) GetStorage(key types.StorageKey, target interface{}, blockHash types.Hash) (bool, error) {
	return m.GetStorageFunc(key, target, blockHash)
}

// MockParser is a mock domain parser
type MockParser struct {
	ParseDepositFunc                func(ctx context.Context, l parser.Log) (*events.Deposit, error)
	ParseProposalExecutionFunc      func(l parser.Log) (*events.Execution, error)
	ParseFailedHandlerExecutionFunc func(l parser.Log) (*events.FailedExecution, error)
	ParseDestinationFunc            func(recipient []byte) (string, error)
	ParseFeeCollectedFunc           func(l parser.Log) (*events.Fee, error)
}

func (m *MockParser) Bind(registry *parser.Registry) {}

func (m *MockParser) ParseDeposit(ctx context.Context, l parser.Log) (*events.Deposit, error) {
	return m.ParseDepositFunc(ctx, l)
}

func (m *MockParser) ParseProposalExecution(l parser.Log) (*events.Execution, error) {
	return m.ParseProposalExecutionFunc(l)
}

func (m *MockParser) ParseFailedHandlerExecution(l parser.Log) (*events.FailedExecution, error) {
	return m.ParseFailedHandlerExecutionFunc(l)
}

func (m *MockParser) ParseDestination(recipient []byte) (string, error) {
	return m.ParseDestinationFunc(recipient)
}

func (m *MockParser) ParseFeeCollected(l parser.Log) (*events.Fee, error) {
	return m.ParseFeeCollectedFunc(l)
}
