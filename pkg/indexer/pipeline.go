package indexer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chainsafe/sygma-indexer/internal/metrics"
	"github.com/chainsafe/sygma-indexer/pkg/config"
	"github.com/chainsafe/sygma-indexer/pkg/db"
	"github.com/chainsafe/sygma-indexer/pkg/parser"
)

// Pipeline drives one domain: it pulls finalized block batches from the
// source, decodes them with the domain's parser and reconciles the decoded
// records into storage. Batches are processed strictly one at a time; the
// reconcile and the watermark advance share one transaction so a crash
// mid-batch re-delivers the whole batch on restart.
type Pipeline struct {
	domain     *config.Domain
	source     Source
	parser     parser.Parser
	store      *db.Store
	reconciler *Reconciler
	logger     *zap.Logger
}

// NewPipeline creates the pipeline for one domain.
func NewPipeline(domain *config.Domain, source Source, p parser.Parser, store *db.Store, reconciler *Reconciler, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		domain:     domain,
		source:     source,
		parser:     p,
		store:      store,
		reconciler: reconciler,
		logger:     logger.With(zap.Uint8("domain_id", domain.ID), zap.String("domain", domain.Name)),
	}
}

// Run streams and processes batches until the context is canceled.
func (p *Pipeline) Run(ctx context.Context) error {
	fromBlock, err := p.store.LastIndexedBlock(ctx, p.domain.ID)
	if err != nil {
		return fmt.Errorf("failed to load watermark: %w", err)
	}
	if fromBlock == 0 && p.domain.StartBlock > 0 {
		fromBlock = p.domain.StartBlock - 1
	}

	batches := make(chan BlockBatch)
	errs := make(chan error, 1)
	go func() {
		errs <- p.source.Stream(ctx, fromBlock, batches)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errs:
			return err
		case batch := <-batches:
			if err := p.processBatch(ctx, batch); err != nil {
				return err
			}
		}
	}
}

func (p *Pipeline) processBatch(ctx context.Context, batch BlockBatch) error {
	start := time.Now()
	decoded := p.decode(ctx, batch.Logs)

	err := p.store.RunInTx(ctx, func(ctx context.Context, tx *db.Store) error {
		if !decoded.Empty() {
			if err := p.reconciler.Reconcile(ctx, tx, decoded); err != nil {
				return err
			}
		}
		return tx.SetLastIndexedBlock(ctx, p.domain.ID, batch.ToBlock)
	})
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues("pipeline", "reconcile").Inc()
		return fmt.Errorf("failed to process blocks %d-%d: %w", batch.FromBlock, batch.ToBlock, err)
	}

	metrics.BlocksProcessed.WithLabelValues(p.domain.Name).Add(float64(batch.ToBlock - batch.FromBlock + 1))
	metrics.LastIndexedBlock.WithLabelValues(p.domain.Name).Set(float64(batch.ToBlock))
	metrics.BatchDuration.WithLabelValues(p.domain.Name).Observe(time.Since(start).Seconds())

	if !decoded.Empty() {
		p.logger.Info("Processed block range",
			zap.Uint64("from_block", batch.FromBlock),
			zap.Uint64("to_block", batch.ToBlock),
			zap.Int("deposits", len(decoded.Deposits)),
			zap.Int("executions", len(decoded.Executions)),
			zap.Int("failures", len(decoded.Failures)),
			zap.Int("fees", len(decoded.Fees)))
	}
	return nil
}

// decode turns raw logs into decoded records. Failures are handled at
// single-record granularity: a log that cannot be decoded is skipped with a
// warning and the rest of the batch proceeds.
func (p *Pipeline) decode(ctx context.Context, logs []parser.Log) *DecodedBatch {
	batch := &DecodedBatch{}
	for _, l := range logs {
		switch l.Topic {
		case parser.TopicDeposit:
			deposit, err := p.parser.ParseDeposit(ctx, l)
			if err != nil {
				p.skip(l, err)
				continue
			}
			batch.Deposits = append(batch.Deposits, deposit)

		case parser.TopicProposalExecution:
			execution, err := p.parser.ParseProposalExecution(l)
			if err != nil {
				p.skip(l, err)
				continue
			}
			batch.Executions = append(batch.Executions, execution)

		case parser.TopicFailedHandlerExecution:
			failure, err := p.parser.ParseFailedHandlerExecution(l)
			if err != nil {
				p.skip(l, err)
				continue
			}
			batch.Failures = append(batch.Failures, failure)

		case parser.TopicFeeCollected:
			feeParser, ok := p.parser.(parser.FeeEventParser)
			if !ok {
				p.skip(l, fmt.Errorf("domain does not emit fee events"))
				continue
			}
			fee, err := feeParser.ParseFeeCollected(l)
			if err != nil {
				p.skip(l, err)
				continue
			}
			batch.Fees = append(batch.Fees, fee)

		default:
			p.skip(l, fmt.Errorf("unknown topic"))
			continue
		}
		metrics.EventsDecoded.WithLabelValues(p.domain.Name, l.Topic).Inc()
	}
	return batch
}

func (p *Pipeline) skip(l parser.Log, err error) {
	metrics.RecordsSkipped.WithLabelValues(p.domain.Name, l.Topic).Inc()
	p.logger.Warn("Skipping undecodable event",
		zap.String("topic", l.Topic),
		zap.Uint64("block", l.BlockNumber),
		zap.String("tx", l.TxHash),
		zap.Error(err))
}
