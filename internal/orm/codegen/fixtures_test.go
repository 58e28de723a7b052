package codegen

import (
	"testing"

	"github.com/conduit-lang/sharedorm/pkg/orm/schema"
)

func usersTable() *schema.Table {
	return schema.NewTable("users",
		schema.WithColumns(
			schema.NewColumn("id", schema.TypeBigInt, schema.PrimaryKey()),
			schema.NewColumn("email", schema.TypeString, schema.Length(255), schema.Unique()),
			schema.NewColumn("name", schema.TypeString, schema.Length(100), schema.Nullable()),
			schema.NewColumn("created_at", schema.TypeTimestamp, schema.Indexed(), schema.Default("now()")),
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

func newTestRegistry(t *testing.T, tables ...*schema.Table) *schema.MetaData {
	t.Helper()

	md := schema.NewMetaData()
	for _, tbl := range tables {
		if _, err := md.Register(tbl); err != nil {
			t.Fatalf("Register(%s) error = %v", tbl.Name, err)
		}
	}
	return md
}

func mustTable(t *testing.T, md *schema.MetaData, name string) *schema.Table {
	t.Helper()

	tbl, ok := md.Table(name)
	if !ok {
		t.Fatalf("table %s not registered", name)
	}
	return tbl
}
