package inspect

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/sharedorm/pkg/orm/naming"
	"github.com/conduit-lang/sharedorm/pkg/orm/schema"
)

// DriftReport compares a registry with a live database
type DriftReport struct {
	Dialect string

	// MissingTables are registered tables the database lacks
	MissingTables []string
	// UnknownTables exist in the database but are not registered
	UnknownTables []string

	// Missing are registered names with no matching database object
	Missing []Object
	// Unexpected are database objects on registered tables that the
	// registry does not name
	Unexpected []Object
	// TooLong are registered names the database would truncate
	TooLong []Object
}

// Clean reports whether the database matches the registry. Unknown tables do
// not count as drift.
func (r *DriftReport) Clean() bool {
	return len(r.MissingTables) == 0 &&
		len(r.Missing) == 0 &&
		len(r.Unexpected) == 0 &&
		len(r.TooLong) == 0
}

// Summary is a one-line description of the report
func (r *DriftReport) Summary() string {
	if r.Clean() {
		return "no drift"
	}

	var parts []string
	add := func(n int, what string) {
		if n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, what))
		}
	}
	add(len(r.MissingTables), "missing tables")
	add(len(r.Missing), "missing objects")
	add(len(r.Unexpected), "unexpected objects")
	add(len(r.TooLong), "names over the identifier limit")

	return strings.Join(parts, ", ")
}

// Expected lists every constraint and index name the registry assigns
func Expected(md *schema.MetaData) []Object {
	var objects []Object
	for _, t := range md.Tables() {
		for _, c := range t.Constraints {
			objects = append(objects, Object{Table: t.Name, Name: c.Name, Kind: c.Kind})
		}
		for _, idx := range t.Indexes {
			objects = append(objects, Object{Table: t.Name, Name: idx.Name, Kind: naming.CategoryIndex})
		}
	}
	sortObjects(objects)
	return objects
}

// CheckDrift inspects the database and compares it with the registry
func (i *Inspector) CheckDrift(ctx context.Context, md *schema.MetaData) (*DriftReport, error) {
	catalog, err := i.Inspect(ctx)
	if err != nil {
		return nil, err
	}

	report := Compare(md, catalog, i.dialect.MaxIdentifierLength())
	report.Dialect = i.dialect.String()

	if report.Clean() {
		i.logger.Info("database matches registry", zap.Int("tables", md.Len()))
	} else {
		i.logger.Warn("schema drift detected",
			zap.Strings("missing_tables", report.MissingTables),
			zap.Int("missing", len(report.Missing)),
			zap.Int("unexpected", len(report.Unexpected)),
			zap.Int("too_long", len(report.TooLong)),
		)
	}

	return report, nil
}

// Compare builds a drift report from a registry and an inspected catalog.
// maxIdentifier is in bytes; zero disables the length check.
func Compare(md *schema.MetaData, catalog *Catalog, maxIdentifier int) *DriftReport {
	report := &DriftReport{}

	inDB := make(map[string]bool, len(catalog.Tables))
	for _, t := range catalog.Tables {
		inDB[t] = true
	}
	for _, name := range md.TableNames() {
		if !inDB[name] {
			report.MissingTables = append(report.MissingTables, name)
		}
	}
	for _, t := range catalog.Tables {
		if !md.Contains(t) {
			report.UnknownTables = append(report.UnknownTables, t)
		}
	}

	expected := Expected(md)

	found := make(map[string]bool, len(catalog.Objects))
	for _, o := range catalog.Objects {
		found[o.String()] = true
	}
	want := make(map[string]bool, len(expected))

	for _, o := range expected {
		want[o.String()] = true

		if maxIdentifier > 0 && len(o.Name) > maxIdentifier {
			report.TooLong = append(report.TooLong, o)
		}
		// Objects of a missing table are already covered by MissingTables
		if inDB[o.Table] && !found[o.String()] {
			report.Missing = append(report.Missing, o)
		}
	}

	for _, o := range catalog.Objects {
		if md.Contains(o.Table) && !want[o.String()] {
			report.Unexpected = append(report.Unexpected, o)
		}
	}

	sort.Strings(report.MissingTables)
	sort.Strings(report.UnknownTables)

	return report
}
