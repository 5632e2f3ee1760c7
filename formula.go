package formula

import (
	"strings"
	"time"
)

// Row is one host record. keys are field names, values are any Go value
// ValueOf understands.
type Row = map[string]any

// FormulaContext is everything a single evaluation can see
type FormulaContext struct {
	Row       Row
	AllRows   []Row
	RowIndex  int
	Variables map[string]any
	Functions map[string]Function
}

// FormulaResult is the outcome of Engine.Calculate. Calculate never fails,
// errors are reported through Success and Error.
type FormulaResult struct {
	Value           Value
	Success         bool
	Error           string
	ErrorCode       ErrorCode
	CalculationTime time.Duration
	Cached          bool
}

// FormulaValidation is the outcome of a static check. ErrorPosition is a
// rune offset into the formula, or -1.
type FormulaValidation struct {
	Valid             bool
	Error             string
	ErrorPosition     int
	Warnings          []string
	Dependencies      []string
	CircularReference bool
}

// FormulaExpression is a tokenized, and if possible compiled, formula.
// Error is set when the formula does not parse, in which case Compiled is
// nil.
type FormulaExpression struct {
	Raw          string
	Tokens       []Token
	Dependencies []string
	Compiled     *Program
	Error        *FormulaError
}

// ExtractDependencies returns the distinct field names of the token stream
// in first-seen order. a builtin name used without parentheses is a field.
func ExtractDependencies(tokens []Token) []string {
	seen := make(map[string]struct{})
	deps := []string{}
	for _, tok := range tokens {
		if tok.Type != TokenField {
			continue
		}
		if _, exists := seen[tok.Value]; exists {
			continue
		}
		seen[tok.Value] = struct{}{}
		deps = append(deps, tok.Value)
	}
	return deps
}

// ParseFormula tokenizes, extracts dependencies and compiles a formula. it
// never returns nil; a parse failure is recorded in the expression.
func ParseFormula(formula string) *FormulaExpression {
	tokens := Tokenize(formula)
	expr := &FormulaExpression{
		Raw:          formula,
		Tokens:       tokens,
		Dependencies: ExtractDependencies(tokens),
	}

	program, err := Compile(expr)
	if err != nil {
		expr.Error = err
		return expr
	}
	expr.Compiled = program
	return expr
}

// Functions returns the distinct function names called by the formula
func (fe *FormulaExpression) Functions() []string {
	seen := make(map[string]struct{})
	names := []string{}
	for _, tok := range fe.Tokens {
		if tok.Type != TokenFunction {
			continue
		}
		if _, exists := seen[tok.Value]; exists {
			continue
		}
		seen[tok.Value] = struct{}{}
		names = append(names, tok.Value)
	}
	return names
}

// invalidToken returns the first token the lexer could not classify
func (fe *FormulaExpression) invalidToken() (Token, bool) {
	for _, tok := range fe.Tokens {
		if tok.Type == TokenInvalid {
			return tok, true
		}
	}
	return Token{}, false
}

// normalizeKey is the expression cache key. surrounding whitespace never
// changes the meaning of a formula.
func normalizeKey(formula string) string {
	return strings.TrimSpace(formula)
}
