package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vogtb/go-spreadsheet/packages/formula"
	"github.com/vogtb/go-spreadsheet/packages/formula/internal/style"
	"github.com/vogtb/go-spreadsheet/packages/formula/rows"
)

var (
	evalRow      []string
	evalVars     []string
	evalRowsFile string
)

var evalCmd = &cobra.Command{
	Use:   "eval <formula>",
	Short: "Evaluate a formula",
	Long: `Evaluate a formula against a single row given with --row, or against
every row of a JSON or CSV file given with --rows.

Examples:
  formula eval '=SUM(A, B)' --row A=2 --row B=3
  formula eval '=IF(total > 100, "big", "small")' --rows orders.csv
  formula eval '=price * rate' --row price=10 --var rate=1.2`,
	Args: cobra.ExactArgs(1),
	RunE: runEval,
}

func init() {
	rootCmd.AddCommand(evalCmd)
	evalCmd.Flags().StringArrayVar(&evalRow, "row", nil, "Row field as key=value (repeatable)")
	evalCmd.Flags().StringArrayVar(&evalVars, "var", nil, "Variable as key=value (repeatable)")
	evalCmd.Flags().StringVar(&evalRowsFile, "rows", "", "Evaluate against every row of a .json or .csv file (optionally .gz)")
}

func runEval(cmd *cobra.Command, args []string) error {
	engine, _, err := newEngine()
	if err != nil {
		return err
	}
	vars, err := parseAssignments(evalVars)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if evalRowsFile == "" {
		row, err := parseAssignments(evalRow)
		if err != nil {
			return err
		}
		result := engine.Calculate(args[0], &formula.FormulaContext{Row: row, Variables: vars})
		printResult(out, result)
		if !result.Success {
			return &exitError{code: 2}
		}
		return nil
	}

	all, err := rows.LoadFile(evalRowsFile)
	if err != nil {
		return err
	}
	table := style.NewTable(
		style.Column{Name: "ROW", Align: style.AlignRight},
		style.Column{Name: "VALUE"},
		style.Column{Name: "CACHED"},
	)
	failures := 0
	for i, row := range all {
		result := engine.Calculate(args[0], &formula.FormulaContext{
			Row:       row,
			AllRows:   all,
			RowIndex:  i,
			Variables: vars,
		})
		value := renderValue(result.Value)
		if !result.Success {
			failures++
			value = style.Error.Render(result.Error)
		}
		table.AddRow(fmt.Sprint(i), value, fmt.Sprint(result.Cached))
	}
	fmt.Fprint(out, table.AutoWidth(60).Render())
	if failures > 0 {
		style.PrintWarning(out, "%d of %d rows failed", failures, len(all))
	}
	return nil
}
