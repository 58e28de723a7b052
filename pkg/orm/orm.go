// Package orm is the shared declarative root that every application's data
// models attach to. All models registered through Base() share one schema
// registry and one constraint naming convention, so their tables live in a
// single migration namespace.
//
// Models register explicitly, usually from a package-level var so that a
// conflict fails process startup:
//
//	type User struct {
//		ID    int64  `orm:"id,pk"`
//		Email string `orm:"email,unique,size:255"`
//	}
//
//	func (User) TableName() string { return "users" }
//
//	var Users = orm.MustRegister[User]()
package orm

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/conduit-lang/sharedorm/pkg/orm/naming"
	"github.com/conduit-lang/sharedorm/pkg/orm/schema"
)

// ErrAlreadyInitialized is returned by SetLogger once the default base exists
var ErrAlreadyInitialized = errors.New("orm: default base already initialized")

var (
	initOnce    sync.Once
	defaultBase *schema.Base

	loggerMu sync.Mutex
	logger   *zap.Logger
	started  bool
)

// Base returns the process-wide base type. It is created on first use and the
// same value is returned on every call.
func Base() *schema.Base {
	initOnce.Do(func() {
		loggerMu.Lock()
		l := logger
		started = true
		loggerMu.Unlock()

		opts := []schema.Option{schema.WithConvention(naming.Default())}
		if l != nil {
			opts = append(opts, schema.WithLogger(l.Named("orm")))
		}
		defaultBase = schema.NewBase(schema.NewMetaData(opts...))
	})
	return defaultBase
}

// MetaData returns the shared schema registry
func MetaData() *schema.MetaData {
	return Base().MetaData()
}

// NamingConvention returns the shared naming convention
func NamingConvention() *naming.Convention {
	return MetaData().Convention()
}

// GenerateConstraintName builds a constraint name with the shared convention.
// For check constraints the first element of columns is the check identifier.
func GenerateConstraintName(category naming.Category, table string, columns []string, referredTable string) (string, error) {
	return NamingConvention().GenerateConstraintName(category, table, columns, referredTable)
}

// Register registers the model type T with the shared base
func Register[T schema.Model]() (*schema.Mapping, error) {
	return schema.Register[T](Base())
}

// MustRegister registers T with the shared base and panics on conflict
func MustRegister[T schema.Model]() *schema.Mapping {
	return schema.MustRegister[T](Base())
}

// SetLogger attaches a logger to the shared registry. It must be called before
// the first call to Base (directly or through any other function here).
func SetLogger(l *zap.Logger) error {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	if started {
		return ErrAlreadyInitialized
	}
	logger = l
	return nil
}
