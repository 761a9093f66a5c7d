package indexer

import (
	"context"
	"fmt"
	"time"

	gsrpc "github.com/centrifuge/go-substrate-rpc-client/v4"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"go.uber.org/zap"

	"github.com/chainsafe/sygma-indexer/pkg/config"
	"github.com/chainsafe/sygma-indexer/pkg/parser"
	"github.com/chainsafe/sygma-indexer/pkg/parser/substrate"
)

// SubstrateSource polls a Substrate chain's finalized head and decodes the
// SygmaBridge pallet events out of each block's System.Events storage.
type SubstrateSource struct {
	api             *gsrpc.SubstrateAPI
	domain          *config.Domain
	meta            *types.Metadata
	pollingInterval time.Duration
	chunkSize       uint64
	logger          *zap.Logger
}

// NewSubstrateSource creates a polling event source for one Substrate domain.
func NewSubstrateSource(api *gsrpc.SubstrateAPI, domain *config.Domain, cfg config.IndexerConfig, logger *zap.Logger) (*SubstrateSource, error) {
	meta, err := api.RPC.State.GetMetadataLatest()
	if err != nil {
		return nil, fmt.Errorf("failed to get chain metadata: %w", err)
	}
	return &SubstrateSource{
		api:             api,
		domain:          domain,
		meta:            meta,
		pollingInterval: cfg.PollingInterval,
		chunkSize:       cfg.BlockChunkSize,
		logger:          logger.With(zap.Uint8("domain_id", domain.ID), zap.String("domain", domain.Name)),
	}, nil
}

// Stream polls the finalized head and delivers pallet events in chunked
// block batches. Only finalized blocks are read, so no confirmation counting
// is needed on this family.
func (s *SubstrateSource) Stream(ctx context.Context, fromBlock uint64, batches chan<- BlockBatch) error {
	s.logger.Info("Starting event poller", zap.Uint64("from_block", fromBlock))

	currentBlock := fromBlock
	ticker := time.NewTicker(s.pollingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			finalBlock, err := s.finalizedBlock()
			if err != nil {
				s.logger.Warn("Failed to get finalized head", zap.Error(err))
				continue
			}
			if finalBlock <= currentBlock {
				continue
			}

			for currentBlock < finalBlock {
				from := currentBlock + 1
				to := min(from+s.chunkSize-1, finalBlock)

				batch, err := s.fetchRange(from, to)
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

func (s *SubstrateSource) finalizedBlock() (uint64, error) {
	hash, err := s.api.RPC.Chain.GetFinalizedHead()
	if err != nil {
		return 0, fmt.Errorf("failed to get finalized head: %w", err)
	}
	header, err := s.api.RPC.Chain.GetHeader(hash)
	if err != nil {
		return 0, fmt.Errorf("failed to get header: %w", err)
	}
	return uint64(header.Number), nil
}

func (s *SubstrateSource) fetchRange(from, to uint64) (BlockBatch, error) {
	batch := BlockBatch{FromBlock: from, ToBlock: to}
	for n := from; n <= to; n++ {
		logs, err := s.blockEvents(n)
		if err != nil {
			return BlockBatch{}, err
		}
		batch.Logs = append(batch.Logs, logs...)
	}
	return batch, nil
}

func (s *SubstrateSource) blockEvents(blockNumber uint64) ([]parser.Log, error) {
	hash, err := s.api.RPC.Chain.GetBlockHash(blockNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to get block hash %d: %w", blockNumber, err)
	}

	key, err := types.CreateStorageKey(s.meta, "System", "Events")
	if err != nil {
		return nil, fmt.Errorf("failed to create events storage key: %w", err)
	}
	raw, err := s.api.RPC.State.GetStorageRaw(key, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to read events at block %d: %w", blockNumber, err)
	}
	if raw == nil || len(*raw) == 0 {
		return nil, nil
	}

	var evts substrate.Events
	if err := types.EventRecordsRaw(*raw).DecodeEventRecords(s.meta, &evts); err != nil {
		return nil, fmt.Errorf("failed to decode events at block %d: %w", blockNumber, err)
	}

	ts, err := s.blockTimestamp(hash)
	if err != nil {
		s.logger.Warn("Failed to read block timestamp",
			zap.Uint64("block", blockNumber),
			zap.Error(err))
	}

	return collectPalletLogs(blockNumber, ts, &evts), nil
}

// storageReader is the slice of the chain state RPC the timestamp lookup needs.
type storageReader interface {
	GetStorage(key types.StorageKey, target interface{}, blockHash types.Hash) (bool, error)
}

func (s *SubstrateSource) blockTimestamp(hash types.Hash) (time.Time, error) {
	key, err := types.CreateStorageKey(s.meta, "Timestamp", "Now")
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to create timestamp storage key: %w", err)
	}
	return readTimestamp(s.api.RPC.State, key, hash)
}

func readTimestamp(storage storageReader, key types.StorageKey, hash types.Hash) (time.Time, error) {
	var ms types.U64
	ok, err := storage.GetStorage(key, &ms, hash)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read timestamp: %w", err)
	}
	if !ok {
		return time.Time{}, fmt.Errorf("timestamp storage entry not found for block %s", hash.Hex())
	}
	return time.UnixMilli(int64(ms)).UTC(), nil
}

// collectPalletLogs flattens the decoded pallet events into tagged logs. The
// tx identifier is the "blockHeight-extrinsicIndex" composite, since pallet
// events have no per-event transaction hash.
func collectPalletLogs(blockNumber uint64, ts time.Time, evts *substrate.Events) []parser.Log {
	var logs []parser.Log

	wrap := func(topic string, phase types.Phase, raw any) parser.Log {
		var extrinsicIndex uint32
		if phase.IsApplyExtrinsic {
			extrinsicIndex = phase.AsApplyExtrinsic
		}
		return parser.Log{
			Topic:       topic,
			BlockNumber: blockNumber,
			Timestamp:   ts,
			TxHash:      fmt.Sprintf("%d-%d", blockNumber, extrinsicIndex),
			Raw:         raw,
		}
	}

	for i := range evts.SygmaBridge_Deposit {
		ev := &evts.SygmaBridge_Deposit[i]
		logs = append(logs, wrap(parser.TopicDeposit, ev.Phase, ev))
	}
	for i := range evts.SygmaBridge_ProposalExecution {
		ev := &evts.SygmaBridge_ProposalExecution[i]
		logs = append(logs, wrap(parser.TopicProposalExecution, ev.Phase, ev))
	}
	for i := range evts.SygmaBridge_FailedHandlerExecution {
		ev := &evts.SygmaBridge_FailedHandlerExecution[i]
		logs = append(logs, wrap(parser.TopicFailedHandlerExecution, ev.Phase, ev))
	}
	for i := range evts.SygmaBridge_FeeCollected {
		ev := &evts.SygmaBridge_FeeCollected[i]
		logs = append(logs, wrap(parser.TopicFeeCollected, ev.Phase, ev))
	}
	return logs
}
