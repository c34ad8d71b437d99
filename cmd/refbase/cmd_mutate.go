package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/refbase-dev/refbase-admin/pkg/grid"
	"github.com/refbase-dev/refbase-admin/pkg/schema"
)

var (
	flagSet          []string
	flagParent       int64
	flagAllLanguages bool
	flagYes          bool
)

var createCmd = &cobra.Command{
	Use:   "create <table>",
	Short: "Create a record",
	Long: `Create a record from --set column=value pairs.

The code column is required and must be unique within the table.`,
	Args: cobra.ExactArgs(1),
	RunE: runCreate,
}

var editCmd = &cobra.Command{
	Use:   "edit <table> <id>",
	Short: "Edit a record",
	Long: `Edit a record through an edit session.

Changed translatable values are written for the active locale. With
--all-languages the new text is propagated to every configured locale;
locales that cannot be reached are reported as warnings, the main save
still counts.`,
	Args: cobra.ExactArgs(2),
	RunE: runEdit,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <table> <id>",
	Short: "Soft-delete a record",
	Long: `Soft-delete a record: the row is deactivated, not removed.

The store rejects the delete while other active records still reference
the target.`,
	Args: cobra.ExactArgs(2),
	RunE: runDelete,
}

func init() {
	createCmd.Flags().StringArrayVar(&flagSet, "set", nil, "column=value, repeatable")
	createCmd.Flags().Int64Var(&flagParent, "parent", 0, "parent record id")

	editCmd.Flags().StringArrayVar(&flagSet, "set", nil, "column=value, repeatable")
	editCmd.Flags().BoolVar(&flagAllLanguages, "all-languages", false, "propagate the new name to every locale")

	deleteCmd.Flags().BoolVar(&flagYes, "yes", false, "skip the confirmation prompt")

	rootCmd.AddCommand(createCmd, editCmd, deleteCmd)
}

func parseSets(def schema.TableDef) (map[string]any, error) {
	fields := make(map[string]any, len(flagSet))
	for _, raw := range flagSet {
		column, value, ok := strings.Cut(raw, "=")
		if !ok {
			return nil, fmt.Errorf("set %q: expected column=value", raw)
		}
		col, found := def.Column(column)
		if !found {
			return nil, fmt.Errorf("set %q: unknown column", column)
		}
		v, err := parseFieldValue(col, value)
		if err != nil {
			return nil, err
		}
		fields[column] = v
	}
	return fields, nil
}

func runCreate(cmd *cobra.Command, args []string) error {
	table := args[0]
	def, err := tableDef(table)
	if err != nil {
		return err
	}
	fields, err := parseSets(def)
	if err != nil {
		return err
	}

	g, err := newGrid(table, false, 0)
	if err != nil {
		return err
	}
	rec, err := g.Create(flagParent, fields)
	if err != nil {
		var verr *grid.ValidationError
		if errors.As(err, &verr) {
			for _, f := range verr.Fields {
				fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %s\n", f.Field, f.Reason)
			}
		}
		return err
	}
	fmt.Printf("created %s %d (%s)\n", table, rec.ID, rec.Code)
	return nil
}

func runEdit(cmd *cobra.Command, args []string) error {
	table := args[0]
	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid record id %q", args[1])
	}
	def, err := tableDef(table)
	if err != nil {
		return err
	}
	if len(flagSet) == 0 {
		return fmt.Errorf("nothing to change, pass --set column=value")
	}
	changes, err := parseSets(def)
	if err != nil {
		return err
	}

	g, err := newGrid(table, false, 0)
	if err != nil {
		return err
	}
	session, err := g.StartEdit(id)
	if err != nil {
		return err
	}
	session.PropagateAllLocales = flagAllLanguages

	for column, value := range changes {
		if err := g.UpdateDraftField(id, column, value); err != nil {
			g.CancelEdit(id)
			return fmt.Errorf("%s: %w", column, err)
		}
	}

	result, err := g.CommitEdit(id)
	if err != nil {
		g.CancelEdit(id)
		return err
	}
	fmt.Printf("saved %s %d\n", table, id)
	for _, warn := range result.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: locale %s: %v\n", warn.Locale.Code, warn.Err)
	}
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	table := args[0]
	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid record id %q", args[1])
	}

	g, err := newGrid(table, false, 0)
	if err != nil {
		return err
	}
	if err := g.RequestDelete(id); err != nil {
		return err
	}
	if !flagYes {
		fmt.Printf("delete %s %d? [y/N] ", table, id)
		var answer string
		fmt.Fscanln(cmd.InOrStdin(), &answer)
		if !strings.EqualFold(answer, "y") {
			g.CancelDelete()
			fmt.Println("aborted")
			return nil
		}
	}

	outcome, err := g.ConfirmDelete()
	if err != nil {
		return err
	}
	switch outcome.Status {
	case schema.Deleted:
		fmt.Printf("deleted %s %d\n", table, id)
	default:
		fmt.Printf("delete rejected: %s\n", outcome.Reason)
	}
	return nil
}
