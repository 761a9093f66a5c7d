package indexer

import (
	"context"
	"fmt"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/chainsafe/sygma-indexer/pkg/config"
	"github.com/chainsafe/sygma-indexer/pkg/parser"
	"github.com/chainsafe/sygma-indexer/pkg/parser/evm"
)

// EVMClient is the subset of the ethclient the EVM source reads with.
type EVMClient interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]ethtypes.Log, error)
}

// EVMSource polls an EVM chain for finalized bridge logs. Finality is a
// confirmation-count pass-through: head minus the domain's configured
// confirmations is treated as final.
type EVMSource struct {
	client          EVMClient
	domain          *config.Domain
	bridge          common.Address
	pollingInterval time.Duration
	chunkSize       uint64
	logger          *zap.Logger
}

// NewEVMSource creates a polling log source for one EVM domain.
func NewEVMSource(client EVMClient, domain *config.Domain, cfg config.IndexerConfig, logger *zap.Logger) *EVMSource {
	return &EVMSource{
		client:          client,
		domain:          domain,
		bridge:          common.HexToAddress(domain.Bridge),
		pollingInterval: cfg.PollingInterval,
		chunkSize:       cfg.BlockChunkSize,
		logger:          logger.With(zap.Uint8("domain_id", domain.ID), zap.String("domain", domain.Name)),
	}
}

var evmTopics = map[common.Hash]string{
	evm.DepositSig:                parser.TopicDeposit,
	evm.ProposalExecutionSig:      parser.TopicProposalExecution,
	evm.FailedHandlerExecutionSig: parser.TopicFailedHandlerExecution,
}

// Stream polls for new finalized blocks and delivers their bridge logs in
// chunked batches.
func (s *EVMSource) Stream(ctx context.Context, fromBlock uint64, batches chan<- BlockBatch) error {
	s.logger.Info("Starting log poller", zap.Uint64("from_block", fromBlock))

	currentBlock := fromBlock
	ticker := time.NewTicker(s.pollingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			finalBlock, err := s.finalizedBlock(ctx)
			if err != nil {
				s.logger.Warn("Failed to get latest block", zap.Error(err))
				continue
			}
			if finalBlock <= currentBlock {
				continue
			}

			for currentBlock < finalBlock {
				from := currentBlock + 1
				to := min(from+s.chunkSize-1, finalBlock)

				batch, err := s.fetchRange(ctx, from, to)
				if err != nil {
					s.logger.Warn("Failed to fetch block range",
						zap.Uint64("from", from),
						zap.Uint64("to", to),
						zap.Error(err))
					break
				}

				select {
				case batches <- batch:
				case <-ctx.Done():
					return ctx.Err()
				}
				currentBlock = to
			}
		}
	}
}

func (s *EVMSource) finalizedBlock(ctx context.Context) (uint64, error) {
	header, err := s.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest header: %w", err)
	}
	head := header.Number.Uint64()
	if head < s.domain.BlockConfirmations {
		return 0, nil
	}
	return head - s.domain.BlockConfirmations, nil
}

func (s *EVMSource) fetchRange(ctx context.Context, from, to uint64) (BlockBatch, error) {
	logs, err := s.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{s.bridge},
		Topics: [][]common.Hash{{
			evm.DepositSig,
			evm.ProposalExecutionSig,
			evm.FailedHandlerExecutionSig,
		}},
	})
	if err != nil {
		return BlockBatch{}, fmt.Errorf("failed to filter logs: %w", err)
	}

	batch := BlockBatch{FromBlock: from, ToBlock: to, Logs: make([]parser.Log, 0, len(logs))}
	timestamps := make(map[uint64]time.Time)

	for _, raw := range logs {
		if raw.Removed || len(raw.Topics) == 0 {
			continue
		}
		topic, ok := evmTopics[raw.Topics[0]]
		if !ok {
			continue
		}

		ts, ok := timestamps[raw.BlockNumber]
		if !ok {
			header, err := s.client.HeaderByNumber(ctx, new(big.Int).SetUint64(raw.BlockNumber))
			if err != nil {
				return BlockBatch{}, fmt.Errorf("failed to get header %d: %w", raw.BlockNumber, err)
			}
			ts = time.Unix(int64(header.Time), 0).UTC()
			timestamps[raw.BlockNumber] = ts
		}

		batch.Logs = append(batch.Logs, parser.Log{
			Topic:       topic,
			BlockNumber: raw.BlockNumber,
			Timestamp:   ts,
			TxHash:      raw.TxHash.Hex(),
			Raw:         raw,
		})
	}
	return batch, nil
}
