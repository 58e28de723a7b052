package schema

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TagName is the struct tag read by the mapper.
//
//	type User struct {
//		ID    int64  `orm:"id,pk"`
//		Email string `orm:"email,unique,size:255"`
//		OrgID int64  `orm:"org_id,fk:orgs.id,ondelete:cascade"`
//		Notes string `orm:"-"`
//	}
//
// The first element is the column name (snake_case of the field name when
// empty). Options: pk, unique, index, nullable, notnull, size:N,
// precision:N, scale:N, type:T, default:EXPR, fk:TABLE.COLUMN,
// ondelete:ACTION, onupdate:ACTION.
const TagName = "orm"

var (
	timeType        = reflect.TypeOf(time.Time{})
	uuidType        = reflect.TypeOf(uuid.UUID{})
	decimalType     = reflect.TypeOf(decimal.Decimal{})
	nullDecimalType = reflect.TypeOf(decimal.NullDecimal{})
	nullUUIDType    = reflect.TypeOf(uuid.NullUUID{})
	rawMessageType  = reflect.TypeOf(json.RawMessage{})
	bytesType       = reflect.TypeOf([]byte{})

	nullTypes = map[reflect.Type]ColumnType{
		reflect.TypeOf(sql.NullString{}):  TypeString,
		reflect.TypeOf(sql.NullInt16{}):   TypeInteger,
		reflect.TypeOf(sql.NullInt32{}):   TypeInteger,
		reflect.TypeOf(sql.NullInt64{}):   TypeBigInt,
		reflect.TypeOf(sql.NullFloat64{}): TypeFloat,
		reflect.TypeOf(sql.NullBool{}):    TypeBool,
		reflect.TypeOf(sql.NullTime{}):    TypeTimestamp,
		nullDecimalType:                   TypeDecimal,
		nullUUIDType:                      TypeUUID,
	}
)

// buildTable derives a table definition from a model's struct type
func buildTable(goType reflect.Type, model Model) (*Table, []FieldMapping, error) {
	tableName := model.TableName()
	if tableName == "" {
		return nil, nil, conflict("", fmt.Sprintf("model %s returned an empty table name", goType))
	}

	table := NewTable(tableName)
	var fields []FieldMapping

	if err := collectColumns(table, goType, nil, &fields); err != nil {
		return nil, nil, err
	}

	if c, ok := model.(Constrained); ok {
		for _, opt := range c.TableOptions() {
			opt(table)
		}
	}

	return table, fields, nil
}

// collectColumns walks struct fields, flattening anonymous embedded structs
func collectColumns(table *Table, goType reflect.Type, parent []int, fields *[]FieldMapping) error {
	for i := 0; i < goType.NumField(); i++ {
		sf := goType.Field(i)
		index := append(append([]int(nil), parent...), i)

		tag, hasTag := sf.Tag.Lookup(TagName)
		if tag == "-" {
			continue
		}

		if sf.Anonymous && !hasTag {
			ft := sf.Type
			if ft.Kind() == reflect.Ptr {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct && !isScalarStruct(ft) {
				if err := collectColumns(table, ft, index, fields); err != nil {
					return err
				}
				continue
			}
		}

		if !sf.IsExported() {
			continue
		}

		col, err := columnFromField(table.Name, sf, tag)
		if err != nil {
			return err
		}

		table.Columns = append(table.Columns, col)
		*fields = append(*fields, FieldMapping{GoName: sf.Name, Column: col.Name, Index: index})
	}

	return nil
}

// columnFromField maps one struct field to a column
func columnFromField(tableName string, sf reflect.StructField, tag string) (*Column, error) {
	parts := strings.Split(tag, ",")

	name := strings.TrimSpace(parts[0])
	if name == "" {
		name = toSnakeCase(sf.Name)
	}

	typ, nullable, err := inferColumnType(sf.Type)
	if err != nil {
		return nil, columnConflict(tableName, name, err.Error())
	}

	col := &Column{Name: name, Type: typ, Nullable: nullable}

	var onDelete, onUpdate string
	for _, raw := range parts[1:] {
		opt := strings.TrimSpace(raw)
		if opt == "" {
			continue
		}

		key, value, _ := strings.Cut(opt, ":")
		switch key {
		case "pk", "primary_key":
			col.PrimaryKey = true
			col.Nullable = false
		case "unique":
			col.Unique = true
		case "index":
			col.Index = true
		case "nullable":
			col.Nullable = true
		case "notnull":
			col.Nullable = false
		case "size", "length":
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, columnConflict(tableName, name, fmt.Sprintf("invalid size %q", value))
			}
			col.Length = n
		case "precision":
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, columnConflict(tableName, name, fmt.Sprintf("invalid precision %q", value))
			}
			col.Precision = n
		case "scale":
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, columnConflict(tableName, name, fmt.Sprintf("invalid scale %q", value))
			}
			col.Scale = n
		case "type":
			t, err := ParseColumnType(value)
			if err != nil {
				return nil, columnConflict(tableName, name, err.Error())
			}
			col.Type = t
		case "default":
			col.Default = value
		case "fk":
			refTable, refColumn, ok := strings.Cut(value, ".")
			if !ok || refTable == "" || refColumn == "" {
				return nil, columnConflict(tableName, name, fmt.Sprintf("foreign key %q must be table.column", value))
			}
			col.ForeignKey = &ForeignKey{Table: refTable, Column: refColumn}
		case "ondelete":
			onDelete = value
		case "onupdate":
			onUpdate = value
		default:
			return nil, columnConflict(tableName, name, fmt.Sprintf("unknown tag option %q", key))
		}
	}

	if onDelete != "" || onUpdate != "" {
		if col.ForeignKey == nil {
			return nil, columnConflict(tableName, name, "ondelete/onupdate require fk")
		}
		var err error
		if col.ForeignKey.OnDelete, err = ParseCascadeAction(onDelete); err != nil {
			return nil, columnConflict(tableName, name, err.Error())
		}
		if col.ForeignKey.OnUpdate, err = ParseCascadeAction(onUpdate); err != nil {
			return nil, columnConflict(tableName, name, err.Error())
		}
	}

	return col, nil
}

// inferColumnType maps a Go type to a column type. Pointers and sql.Null*
// wrappers make the column nullable.
func inferColumnType(t reflect.Type) (ColumnType, bool, error) {
	nullable := false
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
		nullable = true
	}

	if ct, ok := nullTypes[t]; ok {
		return ct, true, nil
	}

	switch t {
	case timeType:
		return TypeTimestamp, nullable, nil
	case uuidType:
		return TypeUUID, nullable, nil
	case decimalType:
		return TypeDecimal, nullable, nil
	case rawMessageType:
		return TypeJSON, nullable, nil
	case bytesType:
		return TypeBinary, nullable, nil
	}

	switch t.Kind() {
	case reflect.Bool:
		return TypeBool, nullable, nil
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return TypeInteger, nullable, nil
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint64:
		return TypeBigInt, nullable, nil
	case reflect.Float32, reflect.Float64:
		return TypeFloat, nullable, nil
	case reflect.String:
		return TypeString, nullable, nil
	case reflect.Map, reflect.Slice, reflect.Struct:
		return TypeJSON, nullable, nil
	}

	return 0, false, fmt.Errorf("unsupported Go type %s", t)
}

// isScalarStruct reports struct types that map to a single column
func isScalarStruct(t reflect.Type) bool {
	if _, ok := nullTypes[t]; ok {
		return true
	}
	return t == timeType || t == decimalType
}

// toSnakeCase converts a Go field name to snake_case ("UserID" -> "user_id")
func toSnakeCase(s string) string {
	var result []rune
	runes := []rune(s)

	for i, r := range runes {
		if i > 0 && r >= 'A' && r <= 'Z' {
			prev := runes[i-1]
			if prev >= 'a' && prev <= 'z' || prev >= '0' && prev <= '9' {
				result = append(result, '_')
			} else if i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z' {
				result = append(result, '_')
			}
		}
		if r >= 'A' && r <= 'Z' {
			result = append(result, r+('a'-'A'))
		} else {
			result = append(result, r)
		}
	}
	return string(result)
}
