package migrate

import (
	"database/sql"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/conduit-lang/sharedorm/internal/orm/codegen"
	"github.com/conduit-lang/sharedorm/pkg/orm/schema"
)

func fixedGenerator(dialect codegen.Dialect) *Generator {
	g := NewGenerator(dialect, nil)
	g.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return g
}

func TestGeneratePlan_NoChanges(t *testing.T) {
	s := snapshotOf(t, usersTable())

	plan, err := fixedGenerator(codegen.Postgres).GeneratePlan(s, s)
	require.NoError(t, err)
	assert.Nil(t, plan)
}

func TestGeneratePlan_InitialSchema(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	g := NewGenerator(codegen.Postgres, zap.New(core))

	plan, err := g.GeneratePlan(nil, snapshotOf(t, usersTable(), ordersTable()))
	require.NoError(t, err)
	require.NotNil(t, plan)

	assert.Equal(t, "add_table_users_table_orders", plan.Name)
	assert.False(t, plan.Breaking)
	assert.False(t, plan.DataLoss)

	usersAt := strings.Index(plan.Up, `CREATE TABLE IF NOT EXISTS "users"`)
	ordersAt := strings.Index(plan.Up, `CREATE TABLE IF NOT EXISTS "orders"`)
	require.NotEqual(t, -1, usersAt)
	require.NotEqual(t, -1, ordersAt)
	assert.Less(t, usersAt, ordersAt, "referenced table must be created first")

	assert.Contains(t, plan.Up, `CONSTRAINT "fk_orders_user_id_users" FOREIGN KEY ("user_id") REFERENCES "users" ("id") ON DELETE CASCADE`)
	assert.Contains(t, plan.Up, `CREATE INDEX IF NOT EXISTS "ix_users_created_at" ON "users" ("created_at");`)

	dropOrders := strings.Index(plan.Down, `DROP TABLE IF EXISTS "orders" CASCADE;`)
	dropUsers := strings.Index(plan.Down, `DROP TABLE IF EXISTS "users" CASCADE;`)
	assert.Less(t, dropOrders, dropUsers, "dependents are dropped first")

	assert.Equal(t, 1, logs.FilterMessage("generated migration plan").Len())
}

func TestGeneratePlan_Changes(t *testing.T) {
	oldSnap := snapshotOf(t, usersTable(), ordersTable())

	newUsers := usersTable()
	newUsers.Columns[2] = schema.NewColumn("name", schema.TypeText, schema.Default("'anonymous'"))
	newUsers.Columns = append(newUsers.Columns, schema.NewColumn("bio", schema.TypeText, schema.Nullable()))
	newOrders := ordersTable()
	newOrders.Constraints[0].Expression = "total > 0"
	newSnap := snapshotOf(t, newUsers, newOrders)

	plan, err := fixedGenerator(codegen.Postgres).GeneratePlan(oldSnap, newSnap)
	require.NoError(t, err)
	require.NotNil(t, plan)

	assert.True(t, plan.Breaking)
	assert.False(t, plan.DataLoss)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC).UnixMilli(), plan.Version)

	expectedUp := []string{
		`-- Generated at: 2024-03-01T12:00:00Z`,
		`ALTER TABLE "orders" DROP CONSTRAINT IF EXISTS "ck_orders_positive_total";`,
		`ALTER TABLE "users" ADD COLUMN "bio" TEXT NULL;`,
		`ALTER TABLE "users" ALTER COLUMN "name" TYPE TEXT;`,
		`ALTER TABLE "users" ALTER COLUMN "name" SET NOT NULL;`,
		`ALTER TABLE "users" ALTER COLUMN "name" SET DEFAULT 'anonymous';`,
		`ALTER TABLE "orders" ADD CONSTRAINT "ck_orders_positive_total" CHECK (total > 0);`,
	}
	last := -1
	for _, stmt := range expectedUp {
		at := strings.Index(plan.Up, stmt)
		if assert.NotEqual(t, -1, at, "Up missing %q\n%s", stmt, plan.Up) {
			assert.Greater(t, at, last, "Up out of order at %q", stmt)
			last = at
		}
	}

	expectedDown := []string{
		`ALTER TABLE "orders" DROP CONSTRAINT IF EXISTS "ck_orders_positive_total";`,
		`ALTER TABLE "users" ALTER COLUMN "name" TYPE VARCHAR(100);`,
		`ALTER TABLE "users" ALTER COLUMN "name" DROP NOT NULL;`,
		`ALTER TABLE "users" ALTER COLUMN "name" DROP DEFAULT;`,
		`ALTER TABLE "users" DROP COLUMN "bio";`,
		`ALTER TABLE "orders" ADD CONSTRAINT "ck_orders_positive_total" CHECK (total >= 0);`,
	}
	last = -1
	for _, stmt := range expectedDown {
		at := strings.Index(plan.Down, stmt)
		if assert.NotEqual(t, -1, at, "Down missing %q\n%s", stmt, plan.Down) {
			assert.Greater(t, at, last, "Down out of order at %q", stmt)
			last = at
		}
	}
}

func TestGeneratePlan_SQLiteLimitations(t *testing.T) {
	oldSnap := snapshotOf(t, usersTable())

	newUsers := usersTable()
	newUsers.Columns[2].Length = 20
	newSnap := snapshotOf(t, newUsers)

	_, err := fixedGenerator(codegen.SQLite).GeneratePlan(oldSnap, newSnap)
	assert.ErrorContains(t, err, "table must be rebuilt")
}

// Applying Up and then Down against a real database must leave it empty
func TestGeneratePlan_SQLiteApply(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(1)

	plan, err := fixedGenerator(codegen.SQLite).GeneratePlan(nil, snapshotOf(t, ordersTable(), usersTable()))
	require.NoError(t, err)

	_, err = db.Exec(plan.Up)
	require.NoError(t, err, plan.Up)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table'`).Scan(&count))
	assert.Equal(t, 2, count)

	_, err = db.Exec(plan.Down)
	require.NoError(t, err, plan.Down)

	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table'`).Scan(&count))
	assert.Equal(t, 0, count)
}
