package migrate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/sharedorm/pkg/orm/schema"
)

func usersTable() *schema.Table {
	return schema.NewTable("users",
		schema.WithColumns(
			schema.NewColumn("id", schema.TypeBigInt, schema.PrimaryKey()),
			schema.NewColumn("email", schema.TypeString, schema.Length(255), schema.Unique()),
			schema.NewColumn("name", schema.TypeString, schema.Length(100), schema.Nullable()),
			schema.NewColumn("created_at", schema.TypeTimestamp, schema.Indexed(), schema.Default("CURRENT_TIMESTAMP")),
		),
	)
}

func ordersTable() *schema.Table {
	return schema.NewTable("orders",
		schema.WithColumns(
			schema.NewColumn("id", schema.TypeBigInt, schema.PrimaryKey()),
			schema.NewColumn("user_id", schema.TypeBigInt, schema.References("users", "id"), schema.OnDelete(schema.CascadeCascade)),
			schema.NewColumn("total", schema.TypeDecimal, schema.Numeric(10, 2)),
		),
		schema.WithCheck("positive_total", "total >= 0"),
	)
}

func snapshotOf(t *testing.T, tables ...*schema.Table) *Snapshot {
	t.Helper()

	md := schema.NewMetaData()
	for _, tbl := range tables {
		_, err := md.Register(tbl)
		require.NoError(t, err)
	}
	return Capture(md)
}
