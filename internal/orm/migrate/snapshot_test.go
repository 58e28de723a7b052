package migrate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/sharedorm/pkg/orm/naming"
	"github.com/conduit-lang/sharedorm/pkg/orm/schema"
)

func TestCapture(t *testing.T) {
	s := snapshotOf(t, ordersTable(), usersTable())

	assert.NotEqual(t, uuid.Nil, s.ID)
	assert.Equal(t, []string{"orders", "users"}, s.TableNames())
	assert.Equal(t, "ix_%(column_0_label)s", s.Convention["ix"])
	assert.Len(t, s.Convention, 5)

	users, ok := s.Table("users")
	require.True(t, ok)

	email, ok := users.Column("email")
	require.True(t, ok)
	assert.Equal(t, "string", email.Type)
	assert.Equal(t, 255, email.Length)

	uq, ok := users.Constraint("uq_users_email")
	require.True(t, ok)
	assert.Equal(t, "uq", uq.Kind)
	assert.Equal(t, []string{"email"}, uq.Columns)

	_, ok = users.Index("ix_users_created_at")
	assert.True(t, ok)

	orders, _ := s.Table("orders")
	fk, ok := orders.Constraint("fk_orders_user_id_users")
	require.True(t, ok)
	assert.Equal(t, "cascade", fk.OnDelete)
	assert.Equal(t, "no_action", fk.OnUpdate)
	assert.Equal(t, "users", fk.ReferredTable)
}

func TestSnapshotSaveLoad(t *testing.T) {
	original := snapshotOf(t, usersTable(), ordersTable())

	for _, file := range []string{"schema.yaml", "nested/schema.json"} {
		t.Run(file, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), file)
			require.NoError(t, original.Save(path))

			loaded, err := Load(path)
			require.NoError(t, err)

			assert.Equal(t, original.ID, loaded.ID)
			assert.True(t, original.CreatedAt.Equal(loaded.CreatedAt))
			assert.Equal(t, original.Convention, loaded.Convention)
			assert.Equal(t, original.Tables, loaded.Tables)
		})
	}
}

func TestSnapshotFormats(t *testing.T) {
	s := snapshotOf(t, usersTable())

	data, err := s.Marshal(FormatYAML)
	require.NoError(t, err)
	assert.Contains(t, string(data), "name: uq_users_email")

	data, err = s.Marshal(FormatJSON)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"name": "uq_users_email"`)

	_, err = s.Marshal(Format("toml"))
	assert.Error(t, err)

	_, err = Unmarshal([]byte("{not json"), FormatJSON)
	assert.Error(t, err)

	f, err := ParseFormat("YML")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)
	_, err = ParseFormat("xml")
	assert.Error(t, err)

	assert.Equal(t, FormatJSON, FormatFromPath("a/b.JSON"))
	assert.Equal(t, FormatYAML, FormatFromPath("a/b.yml"))
}

func TestSnapshotRestore(t *testing.T) {
	original := snapshotOf(t, usersTable(), ordersTable())

	md, err := original.Restore()
	require.NoError(t, err)
	require.NoError(t, md.Validate())

	assert.Equal(t, []string{"orders", "users"}, md.TableNames())
	assert.True(t, md.Convention().Equal(naming.Default()))

	// A snapshot of the restored registry describes the same tables
	assert.Equal(t, original.Tables, Capture(md).Tables)

	owner, ok := md.Owner("fk_orders_user_id_users")
	require.True(t, ok)
	assert.Equal(t, "orders", owner)
}

func TestSnapshotRestoreCustomConvention(t *testing.T) {
	convention, err := naming.NewConvention(map[naming.Category]string{
		naming.CategoryPrimaryKey: "%(table_name)s_pkey",
		naming.CategoryUnique:     "%(table_name)s_%(column_0_name)s_key",
		naming.CategoryIndex:      "%(table_name)s_%(column_0_name)s_idx",
	})
	require.NoError(t, err)

	md := schema.NewMetaData(schema.WithConvention(convention))
	md.MustRegister(usersTable())

	restored, err := Capture(md).Restore()
	require.NoError(t, err)
	assert.True(t, restored.Convention().Equal(convention))

	users, _ := restored.Table("users")
	_, ok := users.Constraint("users_email_key")
	assert.True(t, ok)
}

func TestSnapshotRestoreConflict(t *testing.T) {
	s := snapshotOf(t, usersTable(), ordersTable())

	// Hand-edited snapshot reusing a name owned by another table
	orders, _ := s.Table("orders")
	ck, _ := orders.Constraint("ck_orders_positive_total")
	ck.Name = "uq_users_email"

	_, err := s.Restore()
	assert.ErrorIs(t, err, schema.ErrSchemaConflict)
}

func TestSnapshotRestoreInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tables:
  - name: things
    columns:
      - name: id
        type: money
        primary_key: true
`), 0o644))

	s, err := Load(path)
	require.NoError(t, err)

	_, err = s.Restore()
	assert.ErrorContains(t, err, "unknown column type")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSnapshotNullEntries(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		data   string
		want   string
	}{
		{"yaml table", FormatYAML, "tables:\n  - null\n", "snapshot table 0: empty entry"},
		{"yaml column", FormatYAML, `
tables:
  - name: things
    columns:
      - name: id
        type: bigint
        primary_key: true
      - null
`, "snapshot table things: column 1: empty entry"},
		{"yaml constraint", FormatYAML, `
tables:
  - name: things
    columns:
      - name: id
        type: bigint
    constraints:
      - ~
`, "snapshot table things: constraint 0: empty entry"},
		{"json index", FormatJSON, `{"tables":[{"name":"things","columns":[{"name":"id","type":"bigint"}],"indexes":[null]}]}`,
			"snapshot table things: index 0: empty entry"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal([]byte(tt.data), tt.format)
			assert.EqualError(t, err, tt.want)
		})
	}
}

func TestSnapshotRestoreNullEntries(t *testing.T) {
	s := &Snapshot{Tables: []*TableSnapshot{nil}}
	require.NotPanics(t, func() {
		_, err := s.Restore()
		assert.EqualError(t, err, "table 0: empty entry")
	})

	ts := &TableSnapshot{
		Name:    "things",
		Columns: []*ColumnSnapshot{{Name: "id", Type: "bigint", PrimaryKey: true}, nil},
	}
	require.NotPanics(t, func() {
		_, err := ts.ToTable()
		assert.EqualError(t, err, "column 1: empty entry")
	})

	ts = &TableSnapshot{
		Name:        "things",
		Columns:     []*ColumnSnapshot{{Name: "id", Type: "bigint", PrimaryKey: true}},
		Constraints: []*ConstraintSnapshot{nil},
	}
	require.NotPanics(t, func() {
		_, err := ts.ToTable()
		assert.EqualError(t, err, "constraint 0: empty entry")
	})
}
