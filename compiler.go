package formula

import (
	"strings"
)

// scope resolves the names a program refers to during one evaluation
type scope struct {
	row      Row
	vars     map[string]any
	registry *FunctionRegistry
	local    map[string]Function
}

func newScope(ctx *FormulaContext, registry *FunctionRegistry) *scope {
	s := &scope{registry: registry}
	if ctx != nil {
		s.row = ctx.Row
		s.vars = ctx.Variables
		s.local = ctx.Functions
	}
	return s
}

// field looks a name up in the variables, then in the row. an exact match
// wins over a case-insensitive one.
func (s *scope) field(name string) (Value, bool) {
	if v, ok := lookupFold(s.vars, name); ok {
		return ValueOf(v), true
	}
	if v, ok := lookupFold(s.row, name); ok {
		return ValueOf(v), true
	}
	return Null(), false
}

// lookupFold returns the entry for name. without an exact match, the
// case-insensitive match with the lowest key in byte order wins, so keys
// differing only by case always resolve the same way.
func lookupFold[V any](m map[string]V, name string) (V, bool) {
	if v, ok := m[name]; ok {
		return v, true
	}
	var (
		best  string
		found bool
		value V
	)
	for k, v := range m {
		if !strings.EqualFold(k, name) {
			continue
		}
		if !found || k < best {
			best, value, found = k, v, true
		}
	}
	return value, found
}

// function resolves a call target: context functions, then the registry.
// builtin reports whether the builtin implementation was chosen.
func (s *scope) function(name string) (fn Function, builtin bool, ok bool) {
	if f, found := lookupFold(s.local, name); found {
		return f, false, true
	}
	if s.registry == nil {
		return nil, false, false
	}
	return s.registry.resolve(strings.ToUpper(name))
}

// Program is a compiled formula, safe to evaluate many times
type Program struct {
	root      Node
	fields    []string
	functions []string
	volatile  bool
}

// Compile parses the tokens of an expression into a program. the returned
// error carries the offending position.
func Compile(expr *FormulaExpression) (*Program, *FormulaError) {
	if tok, ok := expr.invalidToken(); ok {
		if strings.HasPrefix(tok.Value, "\"") {
			return nil, newFormulaErrorAt(ErrorCodeValue, tok.Pos, "unclosed string literal")
		}
		return nil, newFormulaErrorAt(ErrorCodeValue, tok.Pos, "unexpected character: %s", tok.Value)
	}

	root, err := NewParser(expr.Tokens).Parse()
	if err != nil {
		if fe, ok := err.(*FormulaError); ok {
			return nil, fe
		}
		return nil, NewFormulaError(ErrorCodeValue, err.Error())
	}

	p := &Program{root: root}
	seenFields := make(map[string]struct{})
	seenFuncs := make(map[string]struct{})
	walk(root, func(n Node) {
		switch node := n.(type) {
		case *FieldNode:
			if _, exists := seenFields[node.Name]; !exists {
				seenFields[node.Name] = struct{}{}
				p.fields = append(p.fields, node.Name)
			}
		case *FunctionCallNode:
			if _, exists := seenFuncs[node.Name]; !exists {
				seenFuncs[node.Name] = struct{}{}
				p.functions = append(p.functions, node.Name)
			}
			if isVolatileFunction(node.Name) {
				p.volatile = true
			}
		}
	})
	return p, nil
}

// Evaluate runs the program against a context
func (p *Program) Evaluate(ctx *FormulaContext, registry *FunctionRegistry) (Value, error) {
	return p.root.Eval(newScope(ctx, registry))
}

// Fields returns the field names referenced by the program
func (p *Program) Fields() []string {
	return p.fields
}

// Functions returns the upper-cased function names called by the program
func (p *Program) Functions() []string {
	return p.functions
}

// Volatile reports whether the program calls NOW or TODAY
func (p *Program) Volatile() bool {
	return p.volatile
}

// Root returns the root of the syntax tree
func (p *Program) Root() Node {
	return p.root
}

func (p *Program) String() string {
	return p.root.String()
}
