package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vogtb/go-spreadsheet/packages/formula"
	"github.com/vogtb/go-spreadsheet/packages/formula/internal/style"
)

var tokensCmd = &cobra.Command{
	Use:   "tokens <formula>",
	Short: "Show the tokens and dependencies of a formula",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		expr := formula.ParseFormula(args[0])
		out := cmd.OutOrStdout()
		fmt.Fprint(out, tokenTable(expr.Tokens))
		fmt.Fprintf(out, "%s %v\n", style.Dim.Render("dependencies:"), expr.Dependencies)
		if expr.Error != nil {
			fmt.Fprintf(out, "%s %s\n", style.ErrorPrefix, expr.Error.Message)
		} else {
			fmt.Fprintf(out, "%s %s\n", style.Dim.Render("ast:"), expr.Compiled.String())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokensCmd)
}

func tokenTable(tokens []formula.Token) string {
	table := style.NewTable(
		style.Column{Name: "POS", Align: style.AlignRight},
		style.Column{Name: "TYPE", Style: style.Info},
		style.Column{Name: "VALUE"},
	)
	for _, tok := range tokens {
		table.AddRow(fmt.Sprint(tok.Pos), tok.Type.String(), tok.Value)
	}
	return table.AutoWidth(40).Render()
}
