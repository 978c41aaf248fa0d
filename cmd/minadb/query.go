package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/joacominatel/minadb/internal/app"
	"github.com/joacominatel/minadb/internal/config"
	"github.com/joacominatel/minadb/internal/cursor"
	"github.com/joacominatel/minadb/internal/database"
	log "github.com/joacominatel/minadb/internal/logging"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)

var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func newQueryCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "query SQL [ARG...]",
		Short: "Run a query and print the rows",
		Long: `Run a query and print its rows as a table. Extra arguments bind the
$1, $2, ... placeholders. Ctrl+C cancels the query.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := opts.commandContext(cmd.Context())
			defer stop()

			service, err := opts.connect(ctx)
			if err != nil {
				return err
			}
			defer disconnect(service)

			params := make([]any, 0, len(args)-1)
			for _, a := range args[1:] {
				params = append(params, a)
			}
			result, err := service.ExecuteQuery(ctx, args[0], opts.queryOptions(), params...)
			if err != nil {
				if app.IsCanceled(err) {
					return errors.New("query canceled")
				}
				return err
			}
			return printResult(cmd.OutOrStdout(), result)
		},
	}
}

func newDescribeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "describe [SCHEMA.]TABLE | SQL",
		Short: "Print the column metadata of a table or query",
		Long: `Describe prints the schema table of a table or of any query: column
sizes, types, nullability, key and base table facts. The query is not
run; only its result shape is read.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := opts.commandContext(cmd.Context())
			defer stop()

			service, err := opts.connect(ctx)
			if err != nil {
				return err
			}
			defer disconnect(service)

			var schema *cursor.SchemaTable
			if target := args[0]; strings.ContainsAny(target, " \t\n") {
				schema, err = service.DescribeQuery(ctx, target)
			} else {
				var schemaName, tableName string
				if schemaName, tableName, err = resolveTable(ctx, service, target); err == nil {
					schema, err = service.DescribeTable(ctx, schemaName, tableName)
				}
			}
			if err != nil {
				return err
			}
			return printSchema(cmd.OutOrStdout(), schema)
		},
	}
}

// commandContext is canceled by Ctrl+C and, when configured, by the fetch
// timeout.
func (o *options) commandContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt)
	if timeout := o.cfg.Preferences.FetchTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		return log.Logger.WithContext(ctx), func() { cancel(); stop() }
	}
	return log.Logger.WithContext(ctx), stop
}

// connect opens the --dsn connection, or the default saved profile.
func (o *options) connect(ctx context.Context) (*app.Service, error) {
	dsn := o.dsn
	if dsn == "" {
		conn := config.DefaultConnection(o.cfg)
		if conn == nil {
			return nil, errors.New("no connection: pass --dsn or save a default connection")
		}
		if err := config.LoadPassword(conn); err != nil {
			log.Warn().Err(err).Str("connection", conn.Name).Msg("keyring lookup failed")
		}
		dsn = conn.DSN()
	}

	service := app.NewServiceWithOpener(openDriver)
	if err := service.Connect(ctx, dsn); err != nil {
		return nil, err
	}
	return service, nil
}

func disconnect(service *app.Service) {
	if err := service.Disconnect(); err != nil {
		log.Warn().Err(err).Msg("disconnect failed")
	}
}

// resolveTable splits SCHEMA.TABLE. Without a schema, the table is looked
// up in every schema and must be unambiguous.
func resolveTable(ctx context.Context, service *app.Service, target string) (string, string, error) {
	if schemaName, tableName, ok := strings.Cut(target, "."); ok {
		return schemaName, tableName, nil
	}

	tree, err := service.LoadSchemaTree(ctx)
	if err != nil {
		return "", "", err
	}
	var found []string
	for _, s := range tree.Schemas {
		for _, t := range s.Tables {
			if strings.EqualFold(t, target) {
				found = append(found, s.Name+"."+t)
			}
		}
	}
	switch len(found) {
	case 0:
		return "", "", fmt.Errorf("table %q not found", target)
	case 1:
		schemaName, tableName, _ := strings.Cut(found[0], ".")
		return schemaName, tableName, nil
	default:
		return "", "", fmt.Errorf("table %q is ambiguous: %s", target, strings.Join(found, ", "))
	}
}

func renderTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...).
		Render()
}

func printResult(w io.Writer, r *database.QueryResult) error {
	var summary string
	if len(r.Columns) == 0 {
		summary = "OK"
	} else {
		if _, err := fmt.Fprintln(w, renderTable(r.Columns, r.Rows)); err != nil {
			return err
		}
		summary = fmt.Sprintf("(%d row(s))", r.RowCount)
		if r.Truncated {
			summary += " truncated"
		}
	}
	if r.RecordsAffected.Known() {
		summary += fmt.Sprintf(", %d affected", r.RecordsAffected.Value())
	}
	_, err := fmt.Fprintf(w, "%s in %s\n", summary, r.Duration.Round(time.Microsecond))
	return err
}

func printSchema(w io.Writer, schema *cursor.SchemaTable) error {
	rows := make([][]string, len(schema.Rows))
	for i, row := range schema.Rows {
		values := row.Values()
		cells := make([]string, len(values))
		for j, v := range values {
			cells[j] = app.FormatValue(v)
		}
		rows[i] = cells
	}
	_, err := fmt.Fprintln(w, renderTable(cursor.SchemaColumns, rows))
	return err
}
