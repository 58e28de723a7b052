package naming

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConvention(t *testing.T) {
	templates := Default().Templates()

	for _, category := range Categories {
		assert.Contains(t, templates, category)
	}

	assert.Equal(t, "ix_%(column_0_label)s", templates[CategoryIndex])
	assert.Equal(t, "pk_%(table_name)s", templates[CategoryPrimaryKey])
}

func TestTemplatesReturnsCopy(t *testing.T) {
	templates := Default().Templates()
	templates[CategoryUnique] = "changed_%(table_name)s"

	tmpl, ok := Default().Template(CategoryUnique)
	require.True(t, ok)
	assert.Equal(t, "uq_%(table_name)s_%(column_0_name)s", tmpl)
}

func TestGenerateConstraintName(t *testing.T) {
	tests := []struct {
		name     string
		category Category
		table    string
		columns  []string
		referred string
		expected string
	}{
		{"unique", CategoryUnique, "users", []string{"email"}, "", "uq_users_email"},
		{"foreign key", CategoryForeignKey, "orders", []string{"user_id"}, "users", "fk_orders_user_id_users"},
		{"index", CategoryIndex, "users", []string{"created_at"}, "", "ix_users_created_at"},
		{"check", CategoryCheck, "products", []string{"positive_price"}, "", "ck_products_positive_price"},
		{"primary key", CategoryPrimaryKey, "users", nil, "", "pk_users"},
		{"primary key ignores columns", CategoryPrimaryKey, "users", []string{"id"}, "", "pk_users"},
		{"unique uses first column", CategoryUnique, "memberships", []string{"team_id", "user_id"}, "", "uq_memberships_team_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GenerateConstraintName(tt.category, tt.table, tt.columns, tt.referred)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestGenerateConstraintNameDeterministic(t *testing.T) {
	first, err := GenerateConstraintName(CategoryForeignKey, "orders", []string{"user_id"}, "users")
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		again, err := GenerateConstraintName(CategoryForeignKey, "orders", []string{"user_id"}, "users")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestGenerateConstraintNameErrors(t *testing.T) {
	tests := []struct {
		name     string
		category Category
		table    string
		columns  []string
		referred string
	}{
		{"unsupported category", Category("zz"), "users", []string{"email"}, ""},
		{"empty table", CategoryUnique, "", []string{"email"}, ""},
		{"unique without columns", CategoryUnique, "users", nil, ""},
		{"index without columns", CategoryIndex, "users", []string{}, ""},
		{"foreign key without columns", CategoryForeignKey, "orders", nil, "users"},
		{"foreign key without referred table", CategoryForeignKey, "orders", []string{"user_id"}, ""},
		{"check without identifier", CategoryCheck, "products", nil, ""},
		{"empty column name", CategoryUnique, "users", []string{""}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := GenerateConstraintName(tt.category, tt.table, tt.columns, tt.referred)
			require.Error(t, err)

			var inputErr *NamingInputError
			assert.True(t, errors.As(err, &inputErr))
			assert.ErrorIs(t, err, ErrNamingInput)
		})
	}
}

func TestNewConvention(t *testing.T) {
	t.Run("custom templates", func(t *testing.T) {
		c, err := NewConvention(map[Category]string{
			CategoryIndex:  "idx_%(table_name)s_%(column_0_N_name)s",
			CategoryUnique: "%(table_name)s_%(column_0N_name)s_key",
		})
		require.NoError(t, err)

		name, err := c.Name(Input{Category: CategoryIndex, Table: "events", Columns: []string{"tenant_id", "created_at"}})
		require.NoError(t, err)
		assert.Equal(t, "idx_events_tenant_id_created_at", name)

		name, err = c.Name(Input{Category: CategoryUnique, Table: "events", Columns: []string{"a", "b"}})
		require.NoError(t, err)
		assert.Equal(t, "events_ab_key", name)
	})

	t.Run("label tokens", func(t *testing.T) {
		c, err := NewConvention(map[Category]string{
			CategoryIndex: "ix_%(column_0_N_label)s",
		})
		require.NoError(t, err)

		name, err := c.Name(Input{Category: CategoryIndex, Table: "t", Columns: []string{"a", "b"}})
		require.NoError(t, err)
		assert.Equal(t, "ix_t_a_t_b", name)
	})

	t.Run("referred column token", func(t *testing.T) {
		c, err := NewConvention(map[Category]string{
			CategoryForeignKey: "fk_%(table_name)s_%(referred_table_name)s_%(referred_column_0_name)s",
		})
		require.NoError(t, err)

		_, err = c.Name(Input{Category: CategoryForeignKey, Table: "orders", Columns: []string{"user_id"}, ReferredTable: "users"})
		assert.ErrorIs(t, err, ErrNamingInput)

		name, err := c.Name(Input{
			Category:        CategoryForeignKey,
			Table:           "orders",
			Columns:         []string{"user_id"},
			ReferredTable:   "users",
			ReferredColumns: []string{"id"},
		})
		require.NoError(t, err)
		assert.Equal(t, "fk_orders_users_id", name)
	})

	t.Run("missing category template", func(t *testing.T) {
		c, err := NewConvention(map[Category]string{CategoryPrimaryKey: "pk_%(table_name)s"})
		require.NoError(t, err)

		_, err = c.Name(Input{Category: CategoryUnique, Table: "users", Columns: []string{"email"}})
		assert.ErrorIs(t, err, ErrNamingInput)
	})

	invalid := []struct {
		name      string
		templates map[Category]string
	}{
		{"unknown token", map[Category]string{CategoryIndex: "ix_%(column_name)s"}},
		{"unterminated", map[Category]string{CategoryIndex: "ix_%(table_name"}},
		{"empty template", map[Category]string{CategoryIndex: ""}},
		{"unknown category", map[Category]string{Category("xx"): "xx_%(table_name)s"}},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConvention(tt.templates)
			assert.ErrorIs(t, err, ErrNamingInput)
		})
	}
}

func TestConventionEqual(t *testing.T) {
	c, err := NewConvention(Default().Templates())
	require.NoError(t, err)
	assert.True(t, c.Equal(Default()))

	other, err := NewConvention(map[Category]string{CategoryPrimaryKey: "%(table_name)s_pkey"})
	require.NoError(t, err)
	assert.False(t, other.Equal(Default()))
	assert.False(t, Default().Equal(nil))
}

func TestParseCategory(t *testing.T) {
	for _, s := range []string{"ix", "index"} {
		c, err := ParseCategory(s)
		require.NoError(t, err)
		assert.Equal(t, CategoryIndex, c)
	}

	c, err := ParseCategory("foreign_key")
	require.NoError(t, err)
	assert.Equal(t, CategoryForeignKey, c)
	assert.Equal(t, "foreign key", c.Description())

	_, err = ParseCategory("exclude")
	assert.ErrorIs(t, err, ErrNamingInput)
}
