package indexer

import (
	"context"
	"math/big"
	"testing"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/chainsafe/sygma-indexer/pkg/config"
	"github.com/chainsafe/sygma-indexer/pkg/parser"
	"github.com/chainsafe/sygma-indexer/pkg/parser/evm"
)

type MockEVMClient struct {
	HeaderByNumberFunc func(ctx context.Context, number *big.Int) (*ethtypes.Header, error)
	FilterLogsFunc     func(ctx context.Context, q ethereum.FilterQuery) ([]ethtypes.Log, error)
}

func (m *MockEVMClient) HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error) {
	return m.HeaderByNumberFunc(ctx, number)
}

func (m *MockEVMClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]ethtypes.Log, error) {
	return m.FilterLogsFunc(ctx, q)
}

func TestEVMSource_FetchRange(t *testing.T) {
	domain := &config.Domain{
		ID:     1,
		Name:   "ethereum",
		Bridge: "0x4D4A0A7b0e9b0e0d7B0c0A0f0e0D0C0B0A090807",
	}

	client := &MockEVMClient{
		HeaderByNumberFunc: func(ctx context.Context, number *big.Int) (*ethtypes.Header, error) {
			return &ethtypes.Header{Number: number, Time: 1709294400}, nil
		},
		FilterLogsFunc: func(ctx context.Context, q ethereum.FilterQuery) ([]ethtypes.Log, error) {
			if q.FromBlock.Uint64() != 101 || q.ToBlock.Uint64() != 200 {
				t.Errorf("Expected range 101-200, got %s-%s", q.FromBlock, q.ToBlock)
			}
			if len(q.Addresses) != 1 || q.Addresses[0] != common.HexToAddress(domain.Bridge) {
				t.Errorf("Expected filter on bridge address, got %v", q.Addresses)
			}
			return []ethtypes.Log{
				{
					Topics:      []common.Hash{evm.DepositSig, common.BytesToHash(common.HexToAddress("0x01").Bytes())},
					BlockNumber: 150,
					TxHash:      common.HexToHash("0x01"),
				},
				{
					Topics:      []common.Hash{evm.ProposalExecutionSig},
					BlockNumber: 151,
					TxHash:      common.HexToHash("0x02"),
				},
				// An unrelated topic sneaking through the filter is dropped.
				{
					Topics:      []common.Hash{common.HexToHash("0xff")},
					BlockNumber: 151,
					TxHash:      common.HexToHash("0x03"),
				},
			}, nil
		},
	}

	source := NewEVMSource(client, domain, config.IndexerConfig{}, zap.NewNop())
	batch, err := source.fetchRange(context.Background(), 101, 200)
	if err != nil {
		t.Fatalf("fetchRange failed: %v", err)
	}

	if batch.FromBlock != 101 || batch.ToBlock != 200 {
		t.Errorf("Expected batch range 101-200, got %d-%d", batch.FromBlock, batch.ToBlock)
	}
	if len(batch.Logs) != 2 {
		t.Fatalf("Expected 2 logs, got %d", len(batch.Logs))
	}
	if batch.Logs[0].Topic != parser.TopicDeposit {
		t.Errorf("Expected deposit topic, got %s", batch.Logs[0].Topic)
	}
	if batch.Logs[1].Topic != parser.TopicProposalExecution {
		t.Errorf("Expected proposal execution topic, got %s", batch.Logs[1].Topic)
	}
	if batch.Logs[0].Timestamp.Unix() != 1709294400 {
		t.Errorf("Expected block timestamp to be resolved, got %s", batch.Logs[0].Timestamp)
	}
	if _, ok := batch.Logs[0].Raw.(ethtypes.Log); !ok {
		t.Errorf("Expected raw geth log, got %T", batch.Logs[0].Raw)
	}
}

func TestEVMSource_FinalizedBlockHonorsConfirmations(t *testing.T) {
	domain := &config.Domain{ID: 1, Name: "ethereum", BlockConfirmations: 12}
	client := &MockEVMClient{
		HeaderByNumberFunc: func(ctx context.Context, number *big.Int) (*ethtypes.Header, error) {
			return &ethtypes.Header{Number: big.NewInt(1000)}, nil
		},
	}

	source := NewEVMSource(client, domain, config.IndexerConfig{}, zap.NewNop())
	final, err := source.finalizedBlock(context.Background())
	if err != nil {
		t.Fatalf("finalizedBlock failed: %v", err)
	}
	if final != 988 {
		t.Errorf("Expected finalized block 988, got %d", final)
	}
}
