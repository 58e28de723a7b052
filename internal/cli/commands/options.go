package commands

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/sharedorm/internal/cli/config"
	"github.com/conduit-lang/sharedorm/internal/cli/ui"
	"github.com/conduit-lang/sharedorm/internal/orm/codegen"
	"github.com/conduit-lang/sharedorm/internal/orm/migrate"
	"github.com/conduit-lang/sharedorm/pkg/orm/schema"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"    // SQLite driver
)

// options holds the global flags and what PersistentPreRunE derives from them
type options struct {
	configFile string
	schemaPath string
	dialect    string
	noColor    bool

	cfg    *config.Config
	logger *zap.Logger
}

// reportedError marks an error whose message was already written to stderr
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

func (o *options) bindFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&o.configFile, "config", "", "config file (default ./sharedorm.yaml)")
	flags.StringVar(&o.schemaPath, "schema", "", "schema snapshot file (overrides config)")
	flags.StringVar(&o.dialect, "dialect", "", "SQL dialect: postgres or sqlite (overrides config)")
	flags.BoolVar(&o.noColor, "no-color", false, "disable colored output")
}

// load reads the configuration and applies flag overrides
func (o *options) load(cmd *cobra.Command) error {
	if o.noColor {
		color.NoColor = true
	}

	cfg, err := config.LoadFile(o.configFile)
	if err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), ui.ConfigError(err.Error(), o.noColor))
		return &reportedError{err}
	}

	if o.dialect != "" {
		if _, err := codegen.ParseDialect(o.dialect); err != nil {
			return err
		}
		cfg.Dialect = o.dialect
	}
	if o.schemaPath != "" {
		cfg.Schema = o.schemaPath
	}

	logger, err := cfg.Logger()
	if err != nil {
		return err
	}

	o.cfg = cfg
	o.logger = logger.Named("ormctl")
	return nil
}

func (o *options) dialectOf() codegen.Dialect {
	return o.cfg.ParsedDialect()
}

// readSnapshot decodes a snapshot file in the configured format
func (o *options) readSnapshot(path string) (*migrate.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return migrate.Unmarshal(data, o.cfg.Format(path))
}

// loadSchema restores a registry from a snapshot file. Constraints without a
// stored name are named by the snapshot's convention, or by the configured
// one when the file carries none.
func (o *options) loadSchema(cmd *cobra.Command, path string) (*migrate.Snapshot, *schema.MetaData, error) {
	fail := func(err error) (*migrate.Snapshot, *schema.MetaData, error) {
		fmt.Fprint(cmd.ErrOrStderr(), ui.SchemaError(path, err, o.noColor))
		return nil, nil, &reportedError{fmt.Errorf("loading schema %s: %w", path, err)}
	}

	snap, err := o.readSnapshot(path)
	if err != nil {
		return fail(err)
	}

	restoreOpts := []schema.Option{schema.WithLogger(o.logger.Named("registry"))}
	if len(snap.Convention) == 0 {
		convention, err := o.cfg.Convention()
		if err != nil {
			return fail(err)
		}
		restoreOpts = append(restoreOpts, schema.WithConvention(convention))
	}

	md, err := snap.Restore(restoreOpts...)
	if err != nil {
		return fail(err)
	}
	if err := md.Validate(); err != nil {
		return fail(err)
	}

	o.logger.Debug("loaded schema", zap.String("path", path), zap.Int("tables", md.Len()))
	return snap, md, nil
}

// openDB opens and pings the configured database
func (o *options) openDB(ctx context.Context) (*sql.DB, error) {
	dsn := o.cfg.DatabaseURL()
	if dsn == "" {
		return nil, errors.New("no database configured\n\nSet database.url in sharedorm.yaml or export DATABASE_URL")
	}

	driver := "pgx"
	if o.dialectOf() == codegen.SQLite {
		driver = "sqlite3"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	o.logger.Debug("connected to database", zap.String("driver", driver))
	return db, nil
}

// tableOrSuggest looks a table up, reporting close matches when it is missing
func (o *options) tableOrSuggest(cmd *cobra.Command, md *schema.MetaData, name string) (*schema.Table, error) {
	t, ok := md.Table(name)
	if !ok {
		fmt.Fprint(cmd.ErrOrStderr(), ui.TableNotFoundError(name, md.TableNames(), o.noColor))
		return nil, &reportedError{fmt.Errorf("table %q not found", name)}
	}
	return t, nil
}
