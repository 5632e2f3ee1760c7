package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vogtb/go-spreadsheet/packages/formula"
	"github.com/vogtb/go-spreadsheet/packages/formula/internal/style"
	"github.com/vogtb/go-spreadsheet/packages/formula/rows"
)

var (
	columnsRowsFile string
	columnsDriver   string
	columnsDSN      string
	columnsQuery    string
	columnsOutput   string
)

var columnsCmd = &cobra.Command{
	Use:   "columns",
	Short: "Compute the configured computed columns for a set of rows",
	Long: `Compute every computed column of --config for each input row. rows come
from a JSON or CSV file (--rows) or from a SQL query (--driver, --dsn,
--query). supported drivers: sqlite, postgres, mysql.

Examples:
  formula columns --config columns.yaml --rows orders.csv
  formula columns --config columns.toml --rows orders.json.gz --output json
  formula columns --config columns.yaml --driver sqlite --dsn shop.db \
    --query 'SELECT * FROM orders'`,
	Args: cobra.NoArgs,
	RunE: runColumns,
}

func init() {
	rootCmd.AddCommand(columnsCmd)
	columnsCmd.Flags().StringVar(&columnsRowsFile, "rows", "", "Row file (.json or .csv, optionally .gz)")
	columnsCmd.Flags().StringVar(&columnsDriver, "driver", "", "SQL driver: sqlite, postgres or mysql")
	columnsCmd.Flags().StringVar(&columnsDSN, "dsn", "", "SQL data source name")
	columnsCmd.Flags().StringVar(&columnsQuery, "query", "", "SQL query returning the rows")
	columnsCmd.Flags().StringVarP(&columnsOutput, "output", "o", "table", "Output format: table, json or csv")
}

func loadRows(ctx context.Context) ([]formula.Row, error) {
	switch {
	case columnsRowsFile != "" && columnsDriver != "":
		return nil, fmt.Errorf("--rows and --driver are mutually exclusive")
	case columnsRowsFile != "":
		return rows.LoadFile(columnsRowsFile)
	case columnsDriver != "":
		if columnsQuery == "" {
			return nil, fmt.Errorf("--query is required with --driver")
		}
		return rows.Query(ctx, columnsDriver, columnsDSN, columnsQuery)
	}
	return nil, fmt.Errorf("one of --rows or --driver is required")
}

func runColumns(cmd *cobra.Command, args []string) error {
	engine, _, err := newEngine()
	if err != nil {
		return err
	}
	columns := engine.ComputedColumns()
	if len(columns) == 0 {
		return fmt.Errorf("no computed columns configured (use --config)")
	}

	input, err := loadRows(cmd.Context())
	if err != nil {
		return err
	}

	output := make([]formula.Row, len(input))
	for i, row := range input {
		values, err := engine.CalculateRow(row, input)
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		merged := make(formula.Row, len(row)+len(values))
		for k, v := range row {
			merged[k] = v
		}
		for k, v := range values {
			merged[k] = v
		}
		output[i] = merged
	}

	out := cmd.OutOrStdout()
	switch columnsOutput {
	case "json":
		return rows.Write(out, output, nil, rows.FormatJSON)
	case "csv":
		return rows.Write(out, output, rows.Columns(output), rows.FormatCSV)
	case "table":
	default:
		return fmt.Errorf("unknown output format %q", columnsOutput)
	}

	names := rows.Columns(input)
	tableCols := make([]style.Column, 0, len(names)+len(columns))
	for _, name := range names {
		tableCols = append(tableCols, style.Column{Name: name})
	}
	for _, col := range columns {
		tableCols = append(tableCols, style.Column{Name: col.Field, Style: style.Info})
	}
	table := style.NewTable(tableCols...)
	for _, row := range output {
		cells := make([]string, 0, len(tableCols))
		for _, c := range tableCols {
			cells = append(cells, formula.ValueOf(row[c.Name]).String())
		}
		table.AddRow(cells...)
	}
	fmt.Fprint(out, table.AutoWidth(30).Render())
	return nil
}
