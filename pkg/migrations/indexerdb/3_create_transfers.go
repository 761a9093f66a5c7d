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
		fmt.Println("creating deposits, executions, fees and transfers tables...")
		if err := mghelper.CreateSchema(ctx, bdb,
			(*db.Deposit)(nil), (*db.Execution)(nil), (*db.Fee)(nil), (*db.Transfer)(nil)); err != nil {
			return err
		}
		if err := mghelper.CreateModelIndexes(ctx, bdb, (*db.Transfer)(nil),
			"status", "account_id", "from_domain_id,to_domain_id"); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, bdb, (*db.Deposit)(nil), "tx_hash")
	}, func(ctx context.Context, bdb *bun.DB) error {
		fmt.Println("dropping deposits, executions, fees and transfers tables...")
		return mghelper.DropTables(ctx, bdb,
			(*db.Transfer)(nil), (*db.Fee)(nil), (*db.Execution)(nil), (*db.Deposit)(nil))
	})
}
