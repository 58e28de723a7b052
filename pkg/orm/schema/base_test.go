package schema

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testUser struct {
	ID       int64  `orm:"id,pk"`
	Username string `orm:"username,unique,size:50"`
	Email    *string
	Internal string `orm:"-"`
	secret   string
}

func (testUser) TableName() string { return "test_users" }

type model1 struct {
	ID int `orm:",pk"`
}

func (model1) TableName() string { return "model1" }

type model2 struct {
	ID int `orm:",pk"`
}

func (model2) TableName() string { return "model2" }

type timestamps struct {
	CreatedAt time.Time  `orm:",default:CURRENT_TIMESTAMP"`
	UpdatedAt *time.Time
}

type complexModel struct {
	ID          uuid.UUID       `orm:",pk"`
	Name        string          `orm:",size:100"`
	Description string          `orm:",type:text,nullable"`
	Price       float64
	Amount      decimal.Decimal `orm:",precision:12,scale:2"`
	IsActive    bool            `orm:",default:true"`
	Count       int32
	Payload     json.RawMessage
	Tags        []string
	Avatar      []byte
	Nickname    sql.NullString
	OwnerID     uuid.NullUUID   `orm:",fk:test_owners.id,ondelete:set_null"`
	timestamps
}

func (*complexModel) TableName() string { return "complex_model" }

type constrainedModel struct {
	ID       int64 `orm:",pk"`
	TenantID int64
	Slug     string
	Price    float64
}

func (constrainedModel) TableName() string { return "products" }

func (constrainedModel) TableOptions() []TableOption {
	return []TableOption{
		WithUnique("tenant_id", "slug"),
		WithCheck("positive_price", "price > 0"),
		WithIndex("tenant_id"),
	}
}

func TestBaseRegister(t *testing.T) {
	base := NewBase(nil)

	mapping, err := base.Register(testUser{})
	require.NoError(t, err)

	assert.Equal(t, "test_users", mapping.TableName())
	assert.Equal(t, []string{"id", "username", "email"}, mapping.Table.ColumnNames())

	username, ok := mapping.Table.Column("username")
	require.True(t, ok)
	assert.Equal(t, TypeString, username.Type)
	assert.Equal(t, 50, username.Length)
	assert.False(t, username.Nullable)

	email, ok := mapping.Table.Column("email")
	require.True(t, ok)
	assert.True(t, email.Nullable)

	col, ok := mapping.Column("Username")
	require.True(t, ok)
	assert.Equal(t, "username", col)

	_, ok = mapping.Table.Constraint("uq_test_users_username")
	assert.True(t, ok)

	assert.True(t, base.MetaData().Contains("test_users"))
}

func TestBaseSharedMetaData(t *testing.T) {
	base := NewBase(NewMetaData())

	m1, err := Register[model1](base)
	require.NoError(t, err)
	m2, err := Register[model2](base)
	require.NoError(t, err)

	assert.Same(t, m1.MetaData(), m2.MetaData())
	assert.Same(t, base.MetaData(), m1.MetaData())
	assert.True(t, base.MetaData().Contains("model1"))
	assert.True(t, base.MetaData().Contains("model2"))
	assert.Same(t, base, m1.Base())
}

func TestBaseDuplicateModel(t *testing.T) {
	base := NewBase(nil)

	_, err := Register[model1](base)
	require.NoError(t, err)

	_, err = Register[model1](base)
	assert.ErrorIs(t, err, ErrSchemaConflict)

	assert.Panics(t, func() { MustRegister[model1](base) })
}

func TestBaseComplexModel(t *testing.T) {
	base := NewBase(nil)

	mapping, err := Register[*complexModel](base)
	require.NoError(t, err)

	expected := map[string]struct {
		typ      ColumnType
		nullable bool
	}{
		"id":          {TypeUUID, false},
		"name":        {TypeString, false},
		"description": {TypeText, true},
		"price":       {TypeFloat, false},
		"amount":      {TypeDecimal, false},
		"is_active":   {TypeBool, false},
		"count":       {TypeInteger, false},
		"payload":     {TypeJSON, false},
		"tags":        {TypeJSON, false},
		"avatar":      {TypeBinary, false},
		"nickname":    {TypeString, true},
		"owner_id":    {TypeUUID, true},
		"created_at":  {TypeTimestamp, false},
		"updated_at":  {TypeTimestamp, true},
	}

	assert.Len(t, mapping.Table.Columns, len(expected))
	for name, want := range expected {
		col, ok := mapping.Table.Column(name)
		if !assert.True(t, ok, "missing column %s", name) {
			continue
		}
		assert.Equal(t, want.typ, col.Type, name)
		assert.Equal(t, want.nullable, col.Nullable, name)
	}

	amount, _ := mapping.Table.Column("amount")
	assert.Equal(t, 12, amount.Precision)
	assert.Equal(t, 2, amount.Scale)

	created, _ := mapping.Table.Column("created_at")
	assert.Equal(t, "CURRENT_TIMESTAMP", created.Default)

	fk, ok := mapping.Table.Constraint("fk_complex_model_owner_id_test_owners")
	require.True(t, ok)
	assert.Equal(t, CascadeSetNull, fk.OnDelete)

	var embedded FieldMapping
	for _, f := range mapping.Fields {
		if f.GoName == "CreatedAt" {
			embedded = f
		}
	}
	assert.Equal(t, []int{12, 0}, embedded.Index)
}

func TestBaseConstrainedModel(t *testing.T) {
	base := NewBase(nil)

	mapping, err := Register[constrainedModel](base)
	require.NoError(t, err)

	assert.ElementsMatch(t,
		[]string{"pk_products", "uq_products_tenant_id", "ck_products_positive_price", "ix_products_tenant_id"},
		mapping.Table.ObjectNames())
}

type noPrimaryKey struct {
	Name string
}

func (noPrimaryKey) TableName() string { return "no_pk" }

type badTag struct {
	ID int `orm:",pk,sizee:3"`
}

func (badTag) TableName() string { return "bad_tag" }

type unsupportedField struct {
	ID int `orm:",pk"`
	Ch chan int
}

func (unsupportedField) TableName() string { return "unsupported" }

type emptyName struct {
	ID int `orm:",pk"`
}

func (emptyName) TableName() string { return "" }

type notStruct int

func (notStruct) TableName() string { return "not_struct" }

func TestBaseRegisterErrors(t *testing.T) {
	tests := []struct {
		name  string
		model Model
	}{
		{"missing identity column", noPrimaryKey{}},
		{"unknown tag option", badTag{}},
		{"unsupported field type", unsupportedField{}},
		{"empty table name", emptyName{}},
		{"not a struct", notStruct(0)},
		{"nil model", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := NewBase(nil)
			_, err := base.Register(tt.model)
			assert.ErrorIs(t, err, ErrSchemaConflict)
			assert.Equal(t, 0, base.MetaData().Len())
		})
	}
}

func TestBaseMappings(t *testing.T) {
	base := NewBase(nil)
	MustRegister[model2](base)
	MustRegister[model1](base)

	mappings := base.Mappings()
	require.Len(t, mappings, 2)
	assert.Equal(t, "model1", mappings[0].TableName())
	assert.Equal(t, "model2", mappings[1].TableName())

	m, ok := base.Mapping(model1{})
	require.True(t, ok)
	assert.Equal(t, "model1", m.TableName())

	_, ok = base.Mapping(testUser{})
	assert.False(t, ok)
}

func TestToSnakeCase(t *testing.T) {
	tests := map[string]string{
		"ID":         "id",
		"UserID":     "user_id",
		"CreatedAt":  "created_at",
		"HTTPServer": "http_server",
		"Address2":   "address2",
		"name":       "name",
	}
	for in, want := range tests {
		assert.Equal(t, want, toSnakeCase(in), in)
	}
}
