package indexer

import (
	"context"

	"github.com/chainsafe/sygma-indexer/pkg/parser"
)

// BlockBatch is one contiguous range of finalized blocks together with the
// bridge logs found in it. Ranges arrive in order and ToBlock is the
// watermark persisted once the batch is reconciled.
type BlockBatch struct {
	FromBlock uint64
	ToBlock   uint64
	Logs      []parser.Log
}

// Source streams finalized block batches for one domain. Stream blocks until
// the context is canceled, delivering batches in ascending block order
// starting after fromBlock. Empty ranges are still delivered so the watermark
// keeps advancing on quiet chains.
type Source interface {
	Stream(ctx context.Context, fromBlock uint64, batches chan<- BlockBatch) error
}
