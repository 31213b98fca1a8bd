package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/coregx/webdb"
	"github.com/coregx/webdb/internal/csvio"
)

func newProfilesCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "list the connection profiles of the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			file, err := g.load()
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(file.Profiles))
			for _, name := range file.Names() {
				p := file.Profiles[name]
				def := ""
				if name == file.Default {
					def = "*"
				}
				rows = append(rows, []string{def, name, p.Driver, p.Host, p.Database})
			}
			renderTextTable(cmd.OutOrStdout(), []string{"", "profile", "driver", "host", "database"}, rows)
			return nil
		},
	}
}

func newFieldsCommand(g *globals) *cobra.Command {
	var opts webdb.FieldsOptions
	cmd := &cobra.Command{
		Use:   "fields TABLE",
		Short: "describe the columns of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withDB(cmd, func(ctx context.Context, db *webdb.DB) error {
				fields, err := db.Fields(ctx, args[0], opts)
				if err != nil {
					return err
				}
				rows := make([][]string, len(fields))
				for i, f := range fields {
					pk := ""
					if f.IsPrimary {
						pk = "yes"
					}
					rows[i] = []string{f.Name, f.Type, pk, f.Comment}
				}
				renderTextTable(cmd.OutOrStdout(), []string{"name", "type", "primary", "comment"}, rows)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&opts.WithComments, "comments", false, "read column comments")
	cmd.Flags().StringVar(&opts.Clause, "clause", "", "filter appended to the introspection query")
	return cmd
}

func newQueryCommand(g *globals) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "query SQL [ARG...]",
		Short: "run a statement and print its rows",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withDB(cmd, func(ctx context.Context, db *webdb.DB) error {
				q, err := db.Query(ctx, args[0], stringArgs(args[1:])...)
				if err != nil {
					return err
				}
				defer q.Close()
				return printRows(ctx, cmd.OutOrStdout(), q, format)
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format: table, csv or json")
	return cmd
}

func newExecCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "exec SQL [ARG...]",
		Short: "run a statement and print the affected row count",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withDB(cmd, func(ctx context.Context, db *webdb.DB) error {
				n, err := db.Exec(ctx, args[0], stringArgs(args[1:])...)
				if err != nil {
					return err
				}
				res := db.Result()
				if res.HasLastInsertID {
					fmt.Fprintf(cmd.OutOrStdout(), "%d rows affected, last insert id %d\n", n, res.LastInsertID)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d rows affected\n", n)
				return nil
			})
		},
	}
}

func newCountCommand(g *globals) *cobra.Command {
	var where string
	cmd := &cobra.Command{
		Use:   "count TABLE [ARG...]",
		Short: "count the rows of a table",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withDB(cmd, func(ctx context.Context, db *webdb.DB) error {
				n, err := db.Count(ctx, args[0], webdb.Cond(where, stringArgs(args[1:])...))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&where, "where", "w", "", "WHERE clause; ? placeholders take the remaining arguments")
	return cmd
}

func newExportCommand(g *globals) *cobra.Command {
	var (
		columns  string
		where    string
		output   string
		noHeader bool
	)
	cmd := &cobra.Command{
		Use:   "export TABLE [ARG...]",
		Short: "write the rows of a table as CSV",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withDB(cmd, func(ctx context.Context, db *webdb.DB) error {
				out := cmd.OutOrStdout()
				if output != "" && output != "-" {
					f, err := os.Create(output)
					if err != nil {
						return err
					}
					defer f.Close()
					out = f
				}

				q, err := db.Select(ctx, columns, args[0], webdb.Cond(where, stringArgs(args[1:])...))
				if err != nil {
					return err
				}
				defer q.Close()
				n, err := csvio.Export(ctx, q, out, !noHeader)
				if err != nil {
					return err
				}
				if output != "" && output != "-" {
					fmt.Fprintf(cmd.ErrOrStderr(), "exported %d rows to %s\n", n, output)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&columns, "columns", "c", "*", "comma separated column list")
	cmd.Flags().StringVarP(&where, "where", "w", "", "WHERE clause; ? placeholders take the remaining arguments")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().BoolVar(&noHeader, "no-header", false, "omit the header record")
	return cmd
}

func newImportCommand(g *globals) *cobra.Command {
	var batch int
	cmd := &cobra.Command{
		Use:   "import TABLE [FILE]",
		Short: "insert CSV rows into a table; the header names the columns",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 2 && args[1] != "-" {
				f, err := os.Open(args[1])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			return g.withDB(cmd, func(ctx context.Context, db *webdb.DB) error {
				n, err := csvio.Import(ctx, db, args[0], in, batch)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d rows\n", n)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&batch, "batch", csvio.DefaultBatch, "rows per INSERT statement")
	return cmd
}

func stringArgs(args []string) []interface{} {
	out := make([]interface{}, len(args))
	for i, a := range args {
		out[i] = a
	}
	return out
}

func printRows(ctx context.Context, w io.Writer, q *webdb.ActiveQuery, format string) error {
	switch strings.ToLower(format) {
	case "csv":
		_, err := csvio.Export(ctx, q, w, true)
		return err
	case "json":
		rows, err := q.FetchAll()
		if err != nil {
			return err
		}
		if rows == nil {
			rows = []webdb.Row{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "table", "":
		cols, err := q.Columns()
		if err != nil {
			return err
		}
		rows, err := q.FetchAll()
		if err != nil {
			return err
		}
		text := make([][]string, len(rows))
		for i, row := range rows {
			text[i] = make([]string, len(cols))
			for j, c := range cols {
				text[i][j] = formatCell(row[c])
			}
		}
		renderTextTable(w, cols, text)
		return nil
	}
	return fmt.Errorf("unknown format %q", format)
}

func formatCell(v interface{}) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprint(v)
}

func renderTextTable(w io.Writer, headers []string, rows [][]string) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	header := make(table.Row, len(headers))
	for i, value := range headers {
		header[i] = value
	}
	t.AppendHeader(header)
	for _, rowValues := range rows {
		row := make(table.Row, len(rowValues))
		for i, value := range rowValues {
			row[i] = value
		}
		t.AppendRow(row)
	}
	t.Render()
}
