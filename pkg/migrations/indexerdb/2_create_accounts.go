package indexerdb

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/chainsafe/sygma-indexer/pkg/db"
	mghelper "github.com/chainsafe/sygma-indexer/pkg/pgutil/migrations"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, bdb *bun.DB) error {
		fmt.Println("creating accounts table...")
		return mghelper.CreateSchema(ctx, bdb, (*db.Account)(nil))
	}, func(ctx context.Context, bdb *bun.DB) error {
		fmt.Println("dropping accounts table...")
		return mghelper.DropTables(ctx, bdb, (*db.Account)(nil))
	})
}
