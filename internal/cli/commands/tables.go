package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/sharedorm/internal/cli/ui"
	"github.com/conduit-lang/sharedorm/internal/orm/codegen"
	"github.com/conduit-lang/sharedorm/pkg/orm/naming"
	"github.com/conduit-lang/sharedorm/pkg/orm/schema"
)

func newTablesCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "tables [table]",
		Short: "List registered tables or show one table",
		Long: `List every table of the schema with its column, constraint and index
counts. With a table name, show its columns and every named object.`,
		Example: `  ormctl tables
  ormctl tables users --schema db/schema.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, md, err := opts.loadSchema(cmd, opts.cfg.Schema)
			if err != nil {
				return err
			}

			if len(args) == 1 {
				t, err := opts.tableOrSuggest(cmd, md, args[0])
				if err != nil {
					return err
				}
				return showTable(cmd, opts, t)
			}

			return listTables(cmd, opts, md)
		},
	}
}

func listTables(cmd *cobra.Command, opts *options, md *schema.MetaData) error {
	out := cmd.OutOrStdout()

	if md.Len() == 0 {
		fmt.Fprintln(out, "No tables registered")
		return nil
	}

	sorted, err := md.SortedTables()
	if err != nil {
		// Cycles only affect ordering here
		sorted = nil
		for _, name := range md.TableNames() {
			t, _ := md.Table(name)
			sorted = append(sorted, t)
		}
	}

	tbl := ui.NewTable(out, []string{"Table", "Columns", "Constraints", "Indexes", "References"}, &ui.TableOptions{NoColor: opts.noColor})
	for _, t := range sorted {
		var refs []string
		for _, fk := range t.ForeignKeys() {
			refs = append(refs, fk.ReferredTable)
		}
		tbl.AddRow(
			t.Name,
			strconv.Itoa(len(t.Columns)),
			strconv.Itoa(len(t.Constraints)),
			strconv.Itoa(len(t.Indexes)),
			strings.Join(refs, ", "),
		)
	}
	tbl.Render()

	stats := md.Stats()
	fmt.Fprintf(out, "%d tables, %d columns, %d constraints, %d indexes\n",
		stats.TotalTables, stats.TotalColumns, stats.TotalConstraints, stats.TotalIndexes)
	return nil
}

func showTable(cmd *cobra.Command, opts *options, t *schema.Table) error {
	out := cmd.OutOrStdout()
	mapper := codegen.NewTypeMapper(opts.dialectOf())

	ui.Header(out, t.Name, opts.noColor)
	if t.Comment != "" {
		fmt.Fprintln(out, t.Comment)
	}

	columns := ui.NewTable(out, []string{"Column", "Type", "Null", "Default"}, &ui.TableOptions{NoColor: opts.noColor})
	for _, col := range t.Columns {
		sqlType, err := mapper.MapType(col)
		if err != nil {
			return err
		}
		null := "no"
		if col.Nullable {
			null = "yes"
		}
		columns.AddRow(col.Name, sqlType, null, col.Default)
	}
	columns.Render()

	objects := ui.NewTable(out, []string{"Name", "Kind", "Columns", "Detail"}, &ui.TableOptions{NoColor: opts.noColor})
	for _, c := range t.Constraints {
		objects.AddRow(c.Name, string(c.Kind), strings.Join(c.Columns, ", "), constraintDetail(c))
	}
	for _, idx := range t.Indexes {
		detail := ""
		if idx.Unique {
			detail = "unique"
		}
		objects.AddRow(idx.Name, string(naming.CategoryIndex), strings.Join(idx.Columns, ", "), detail)
	}
	objects.Render()

	return nil
}

func constraintDetail(c *schema.Constraint) string {
	switch c.Kind {
	case naming.CategoryCheck:
		return c.Expression
	case naming.CategoryForeignKey:
		detail := fmt.Sprintf("→ %s(%s)", c.ReferredTable, strings.Join(c.ReferredColumns, ", "))
		if c.OnDelete != schema.CascadeNoAction {
			detail += " on delete " + c.OnDelete.String()
		}
		return detail
	default:
		return ""
	}
}
