package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/vogtb/go-spreadsheet/packages/formula"
	"github.com/vogtb/go-spreadsheet/packages/formula/internal/style"
)

var validateColumn bool

var validateCmd = &cobra.Command{
	Use:   "validate <formula|field>",
	Short: "Check a formula without evaluating it",
	Long: `Check a formula for syntax errors, unknown functions and circular
references against the computed columns of --config.

With --column the argument names a configured computed column instead.

Examples:
  formula validate '=SUM(A, B'
  formula validate --config columns.yaml '=total * 2'
  formula validate --config columns.yaml --column total`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().BoolVar(&validateColumn, "column", false, "Validate a configured computed column by field name")
}

func runValidate(cmd *cobra.Command, args []string) error {
	engine, _, err := newEngine()
	if err != nil {
		return err
	}

	var result formula.FormulaValidation
	source := args[0]
	if validateColumn {
		result, err = engine.ValidateColumn(args[0])
		if err != nil {
			return err
		}
		col, _ := engine.ComputedColumn(args[0])
		source = col.Formula
	} else {
		result = engine.Validate(args[0])
	}

	out := cmd.OutOrStdout()
	printValidation(out, source, result)
	if !result.Valid {
		return &exitError{code: 2}
	}
	return nil
}

func printValidation(out io.Writer, source string, result formula.FormulaValidation) {
	if result.Valid {
		fmt.Fprintf(out, "%s valid\n", style.SuccessPrefix)
	} else {
		fmt.Fprintf(out, "%s %s\n", style.ErrorPrefix, result.Error)
		if result.ErrorPosition >= 0 {
			fmt.Fprintf(out, "  %s\n%s\n", source, style.Caret(2, result.ErrorPosition))
		}
	}
	if result.CircularReference {
		fmt.Fprintf(out, "  %s circular reference\n", style.ArrowPrefix)
	}
	if len(result.Dependencies) > 0 {
		fmt.Fprintf(out, "  %s %v\n", style.Dim.Render("dependencies:"), result.Dependencies)
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(out, "  %s %s\n", style.WarningPrefix, w)
	}
}
