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
		fmt.Println("creating domains, resources and routes tables...")
		if err := mghelper.CreateSchema(ctx, bdb, (*db.Domain)(nil), (*db.Resource)(nil), (*db.Route)(nil)); err != nil {
			return err
		}
		// Route lookups are keyed by the full triple
		return mghelper.CreateModelUniqueIndexes(ctx, bdb, (*db.Route)(nil),
			"from_domain_id,to_domain_id,resource_id")
	}, func(ctx context.Context, bdb *bun.DB) error {
		fmt.Println("dropping domains, resources and routes tables...")
		return mghelper.DropTables(ctx, bdb, (*db.Route)(nil), (*db.Resource)(nil), (*db.Domain)(nil))
	})
}
