package inspect

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/conduit-lang/sharedorm/internal/orm/codegen"
	"github.com/conduit-lang/sharedorm/pkg/orm/naming"
	"github.com/conduit-lang/sharedorm/pkg/orm/schema"
)

func testRegistry(t *testing.T) *schema.MetaData {
	t.Helper()

	md := schema.NewMetaData()
	md.MustRegister(schema.NewTable("users",
		schema.WithColumns(
			schema.NewColumn("id", schema.TypeBigInt, schema.PrimaryKey()),
			schema.NewColumn("email", schema.TypeString, schema.Length(255), schema.Unique()),
			schema.NewColumn("name", schema.TypeString, schema.Length(100), schema.Nullable()),
			schema.NewColumn("created_at", schema.TypeTimestamp, schema.Indexed(), schema.Default("now()")),
		),
	))
	md.MustRegister(schema.NewTable("orders",
		schema.WithColumns(
			schema.NewColumn("id", schema.TypeBigInt, schema.PrimaryKey()),
			schema.NewColumn("user_id", schema.TypeBigInt, schema.References("users", "id")),
			schema.NewColumn("total", schema.TypeDecimal, schema.Numeric(10, 2)),
		),
		schema.WithCheck("positive_total", "total >= 0"),
	))
	require.NoError(t, md.Validate())
	return md
}

func TestExpected(t *testing.T) {
	objects := Expected(testRegistry(t))

	names := make([]string, len(objects))
	for i, o := range objects {
		names[i] = o.String()
	}
	assert.Equal(t, []string{
		"orders.ck_orders_positive_total",
		"orders.fk_orders_user_id_users",
		"orders.pk_orders",
		"users.ix_users_created_at",
		"users.pk_users",
		"users.uq_users_email",
	}, names)
}

func TestInspector_Postgres(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.tables")).
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).
			AddRow("users").AddRow("orders").AddRow("legacy"))

	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.table_constraints")).
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "constraint_name", "constraint_type"}).
			AddRow("users", "pk_users", "PRIMARY KEY").
			AddRow("users", "uq_users_email", "UNIQUE").
			AddRow("orders", "pk_orders", "PRIMARY KEY").
			AddRow("orders", "orders_total_check", "CHECK").
			AddRow("orders", "fk_orders_user_id_users", "FOREIGN KEY").
			AddRow("legacy", "legacy_pkey", "PRIMARY KEY"))

	mock.ExpectQuery(regexp.QuoteMeta("FROM pg_indexes")).
		WillReturnRows(sqlmock.NewRows([]string{"tablename", "indexname"}).
			AddRow("users", "pk_users").
			AddRow("users", "uq_users_email").
			AddRow("users", "ix_users_created_at").
			AddRow("orders", "pk_orders").
			AddRow("legacy", "legacy_pkey"))

	core, logs := observer.New(zap.InfoLevel)
	inspector := New(db, codegen.Postgres, zap.New(core))

	report, err := inspector.CheckDrift(context.Background(), testRegistry(t))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.False(t, report.Clean())
	assert.Equal(t, "postgres", report.Dialect)
	assert.Empty(t, report.MissingTables)
	assert.Equal(t, []string{"legacy"}, report.UnknownTables)
	assert.Equal(t, []Object{{Table: "orders", Name: "ck_orders_positive_total", Kind: naming.CategoryCheck}}, report.Missing)
	assert.Equal(t, []Object{{Table: "orders", Name: "orders_total_check", Kind: naming.CategoryCheck}}, report.Unexpected)
	assert.Empty(t, report.TooLong)
	assert.Equal(t, "1 missing objects, 1 unexpected objects", report.Summary())

	assert.Equal(t, 1, logs.FilterMessage("schema drift detected").Len())
}

func TestInspector_PostgresQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.tables")).
		WillReturnError(errors.New("connection reset"))

	_, err = New(db, codegen.Postgres, nil).Inspect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listing tables")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInspector_UnsupportedDialect(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = New(db, codegen.Dialect("oracle"), nil).Inspect(context.Background())
	assert.Error(t, err)
}

func openSQLite(t *testing.T, md *schema.MetaData) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)

	statements, err := codegen.NewDDLGenerator(codegen.SQLite).GenerateAll(md)
	require.NoError(t, err)
	for _, stmt := range statements {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	return db
}

func TestInspector_SQLite(t *testing.T) {
	md := testRegistry(t)
	db := openSQLite(t, md)
	inspector := New(db, codegen.SQLite, nil)
	ctx := context.Background()

	catalog, err := inspector.Inspect(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"orders", "users"}, catalog.Tables)
	assert.ElementsMatch(t, Expected(md), catalog.Objects)

	report, err := inspector.CheckDrift(ctx, md)
	require.NoError(t, err)
	assert.True(t, report.Clean(), report.Summary())
	assert.Equal(t, "no drift", report.Summary())

	for _, stmt := range []string{
		`DROP INDEX "ix_users_created_at"`,
		`CREATE INDEX "stray_idx" ON "users" ("name")`,
		`CREATE TABLE "audit" ("id" INTEGER CONSTRAINT "audit_pkey" PRIMARY KEY)`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}

	report, err = inspector.CheckDrift(ctx, md)
	require.NoError(t, err)
	assert.False(t, report.Clean())
	assert.Equal(t, []string{"audit"}, report.UnknownTables)
	assert.Equal(t, []Object{{Table: "users", Name: "ix_users_created_at", Kind: naming.CategoryIndex}}, report.Missing)
	assert.Equal(t, []Object{{Table: "users", Name: "stray_idx", Kind: naming.CategoryIndex}}, report.Unexpected)
}

func TestInspector_SQLiteMissingTable(t *testing.T) {
	md := testRegistry(t)
	db := openSQLite(t, md)

	_, err := db.Exec(`DROP TABLE "orders"`)
	require.NoError(t, err)

	report, err := New(db, codegen.SQLite, nil).CheckDrift(context.Background(), md)
	require.NoError(t, err)
	assert.Equal(t, []string{"orders"}, report.MissingTables)
	assert.Empty(t, report.Missing, "objects of a missing table are not listed again")
}

func TestCompare_IdentifierLimit(t *testing.T) {
	md := schema.NewMetaData()
	long := "amount_must_be_positive_and_below_the_configured_ceiling_for_this_tenant"
	md.MustRegister(schema.NewTable("invoices",
		schema.WithColumns(
			schema.NewColumn("id", schema.TypeBigInt, schema.PrimaryKey()),
			schema.NewColumn("amount", schema.TypeDecimal),
		),
		schema.WithCheck(long, "amount > 0"),
	))

	catalog := &Catalog{Tables: []string{"invoices"}, Objects: Expected(md)}

	report := Compare(md, catalog, codegen.Postgres.MaxIdentifierLength())
	require.Len(t, report.TooLong, 1)
	assert.Equal(t, "ck_invoices_"+long, report.TooLong[0].Name)
	assert.Greater(t, len(report.TooLong[0].Name), 63)

	assert.Empty(t, Compare(md, catalog, codegen.SQLite.MaxIdentifierLength()).TooLong)
}

func TestSQLiteConstraintPattern(t *testing.T) {
	ddl := strings.Join([]string{
		`CREATE TABLE t (`,
		`  id INTEGER,`,
		`  CONSTRAINT "pk_t" PRIMARY KEY (id),`,
		`  constraint uq_t_code unique (code),`,
		`  CONSTRAINT [ck_t_positive] CHECK (id > 0),`,
		"  CONSTRAINT `fk_t_parent_id_t` FOREIGN  KEY (parent_id) REFERENCES t (id),",
		`  CONSTRAINT "odd""name" UNIQUE (x)`,
		`)`,
	}, "\n")

	var got []Object
	for _, m := range sqliteConstraintPattern.FindAllStringSubmatch(ddl, -1) {
		got = append(got, Object{Name: unquoteIdentifier(m[1]), Kind: sqliteConstraintKind(m[2])})
	}

	assert.Equal(t, []Object{
		{Name: "pk_t", Kind: naming.CategoryPrimaryKey},
		{Name: "uq_t_code", Kind: naming.CategoryUnique},
		{Name: "ck_t_positive", Kind: naming.CategoryCheck},
		{Name: "fk_t_parent_id_t", Kind: naming.CategoryForeignKey},
		{Name: `odd"name`, Kind: naming.CategoryUnique},
	}, got)
}
