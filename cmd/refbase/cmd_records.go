package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/refbase-dev/refbase-admin/pkg/grid"
	"github.com/refbase-dev/refbase-admin/pkg/schema"
	"github.com/refbase-dev/refbase-admin/pkg/sdk"
)

var (
	flagFilters    []string
	flagSort       string
	flagDesc       bool
	flagPage       int
	flagPageSize   int
	flagActiveOnly bool
)

var listCmd = &cobra.Command{
	Use:   "list <table>",
	Short: "List records with filtering, sorting and paging",
	Args:  cobra.ExactArgs(1),
	RunE:  runList,
}

var getCmd = &cobra.Command{
	Use:   "get <table> <id>",
	Short: "Show one record as JSON",
	Args:  cobra.ExactArgs(2),
	RunE:  runGet,
}

var lookupsCmd = &cobra.Command{
	Use:   "lookups <table>",
	Short: "Show the id/code/name lookup for a table",
	Args:  cobra.ExactArgs(1),
	RunE:  runLookups,
}

var auditCmd = &cobra.Command{
	Use:   "audit <table> [id]",
	Short: "Show the audit trail for a table or record",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runAudit,
}

func init() {
	listCmd.Flags().StringArrayVar(&flagFilters, "filter", nil, "column=value filter, repeatable")
	listCmd.Flags().StringVar(&flagSort, "sort", "", "column to sort by")
	listCmd.Flags().BoolVar(&flagDesc, "desc", false, "sort descending")
	listCmd.Flags().IntVar(&flagPage, "page", 1, "page number")
	listCmd.Flags().IntVar(&flagPageSize, "page-size", 25, "rows per page")
	listCmd.Flags().BoolVar(&flagActiveOnly, "active-only", false, "hide soft-deleted records")

	rootCmd.AddCommand(listCmd, getCmd, lookupsCmd, auditCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	table := args[0]
	g, err := newGrid(table, flagActiveOnly, flagPageSize)
	if err != nil {
		return err
	}
	def, _ := tableDef(table)

	for _, raw := range flagFilters {
		column, value, ok := strings.Cut(raw, "=")
		if !ok {
			return fmt.Errorf("filter %q: expected column=value", raw)
		}
		col, found := def.Column(column)
		if !found {
			return fmt.Errorf("filter %q: unknown column", column)
		}
		f, err := parseFilter(col, value)
		if err != nil {
			return err
		}
		g.SetFilter(column, f)
	}

	if flagSort != "" {
		g.ToggleSort(flagSort)
		if flagDesc {
			g.ToggleSort(flagSort)
		}
	}
	g.SetPage(flagPage)

	printGrid(g, def)
	return nil
}

func parseFilter(col schema.Column, value string) (grid.Filter, error) {
	switch col.Kind {
	case schema.KindID:
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return grid.Filter{}, fmt.Errorf("filter %s: expected a numeric id, got %q", col.Key, value)
		}
		return grid.IDEquals(id), nil
	case schema.KindBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return grid.Filter{}, fmt.Errorf("filter %s: expected true or false, got %q", col.Key, value)
		}
		return grid.BoolIs(b), nil
	default:
		return grid.TextContains(value), nil
	}
}

func printGrid(g *grid.Grid, def schema.TableDef) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)

	header := []string{"ID"}
	for _, col := range def.Columns {
		header = append(header, strings.ToUpper(col.Key))
	}
	fmt.Fprintln(w, strings.Join(header, "\t"))

	for _, rec := range g.VisibleRows() {
		row := []string{strconv.FormatInt(rec.ID, 10)}
		for _, col := range def.Columns {
			row = append(row, cellValue(g, rec, col))
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	w.Flush()

	info := g.PageInfo()
	fmt.Printf("page %d/%d, %d records\n", info.Page, info.TotalPages, info.Total)
}

func cellValue(g *grid.Grid, rec schema.Record, col schema.Column) string {
	switch col.Kind {
	case schema.KindID:
		return g.Label(rec, col.Key)
	case schema.KindBool:
		return strconv.FormatBool(schema.AsBool(rec.Field(col.Key)))
	default:
		return schema.AsText(rec.Field(col.Key))
	}
}

func runGet(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid record id %q", args[1])
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	rec, err := sdk.Scope(store, args[0], requestContext(cfg)).Get(id)
	if err != nil {
		return err
	}
	return printJSON(rec)
}

func runLookups(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	items, err := sdk.Scope(store, args[0], requestContext(cfg)).ResolveLookup()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCODE\tNAME\tACTIVE")
	for _, item := range items {
		fmt.Fprintf(w, "%d\t%s\t%s\t%t\n", item.ID, item.Code, item.Name, item.IsActive)
	}
	return w.Flush()
}

func runAudit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	var recordID int64
	if len(args) == 2 {
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid record id %q", args[1])
		}
		recordID = id
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	entries, err := sdk.Scope(store, args[0], requestContext(cfg)).Audit(recordID)
	if err != nil {
		return err
	}
	return printJSON(entries)
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
