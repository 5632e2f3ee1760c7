package formula

import (
	"fmt"
)

// RunnableEngine provides a chainable interface for engine operations.
// wraps the standard Engine and tracks errors internally
type RunnableEngine struct {
	engine  *Engine
	err     error
	printLn func(string)
}

// NewRunnableEngine creates a new RunnableEngine. printLn is required and
// will be used for all logging operations (Log, CheckError)
func NewRunnableEngine(opts Options, printLn func(string)) *RunnableEngine {
	return &RunnableEngine{
		engine:  NewEngine(opts),
		err:     nil,
		printLn: printLn,
	}
}

// RegisterFunction registers a custom function (chainable)
func (r *RunnableEngine) RegisterFunction(name string, fn Function) *RunnableEngine {
	if r.err != nil {
		return r // no-op if there's already an error
	}
	r.err = r.engine.RegisterFunction(name, fn)
	return r
}

// Column registers a computed column (chainable)
func (r *RunnableEngine) Column(field, formula string) *RunnableEngine {
	if r.err != nil {
		return r // no-op if there's already an error
	}
	r.err = r.engine.RegisterComputedColumn(ComputedColumn{Field: field, Formula: formula})
	return r
}

// ColumnWith registers a fully specified computed column (chainable)
func (r *RunnableEngine) ColumnWith(col ComputedColumn) *RunnableEngine {
	if r.err != nil {
		return r // no-op if there's already an error
	}
	r.err = r.engine.RegisterComputedColumn(col)
	return r
}

// Calculate evaluates a formula against a row. a failed evaluation becomes
// the chain's error
func (r *RunnableEngine) Calculate(formula string, row Row) (*RunnableEngine, FormulaResult) {
	if r.err != nil {
		return r, FormulaResult{} // no-op if there's already an error
	}
	result := r.engine.Calculate(formula, &FormulaContext{Row: row})
	if !result.Success {
		r.err = fmt.Errorf("%s: %s", formula, result.Error)
	}
	return r, result
}

// Value is a helper to get a single formula value from the chain.
// example: v := NewRunnableEngine(DefaultOptions(), t.Log).Value("=A*2", Row{"A": 2})
func (r *RunnableEngine) Value(formula string, row Row) Value {
	_, result := r.Calculate(formula, row)
	if r.err != nil {
		return Null()
	}
	return result.Value
}

// ColumnValue computes a registered column for a row
func (r *RunnableEngine) ColumnValue(field string, row Row) Value {
	if r.err != nil {
		return Null()
	}
	v, err := r.engine.CalculateComputedColumn(field, row, nil)
	if err != nil {
		r.err = err
		return Null()
	}
	return v
}

// Row computes every registered column for a row
func (r *RunnableEngine) Row(row Row) map[string]Value {
	if r.err != nil {
		return nil
	}
	values, err := r.engine.CalculateRow(row, nil)
	if err != nil {
		r.err = err
		return nil
	}
	return values
}

// Error returns the current error state
func (r *RunnableEngine) Error() error {
	return r.err
}

// CheckError logs the current error using the printLn function (chainable)
func (r *RunnableEngine) CheckError() *RunnableEngine {
	if r.err != nil {
		r.printLn(fmt.Sprintf("ERROR: %v", r.err))
	} else {
		r.printLn("No errors")
	}
	return r
}

// Engine returns the underlying engine. use with caution as it bypasses
// error tracking.
func (r *RunnableEngine) Engine() *Engine {
	return r.engine
}

// Reset clears the error state (chainable)
func (r *RunnableEngine) Reset() *RunnableEngine {
	r.err = nil
	return r
}

// Then allows conditional execution based on current error state
func (r *RunnableEngine) Then(fn func(*RunnableEngine) *RunnableEngine) *RunnableEngine {
	if r.err != nil {
		return r // skip if there's an error
	}
	return fn(r)
}

// OnError allows error handling in the chain
func (r *RunnableEngine) OnError(fn func(error) error) *RunnableEngine {
	if r.err != nil {
		r.err = fn(r.err)
	}
	return r
}

// Must panics if there's an error (chainable). useful for ensuring
// critical operations succeed
func (r *RunnableEngine) Must() *RunnableEngine {
	if r.err != nil {
		panic(r.err)
	}
	return r
}

// Log logs the value of a formula for a row using the printLn function
// (chainable)
func (r *RunnableEngine) Log(formula string, row Row) *RunnableEngine {
	if r.err != nil {
		return r // no-op if there's already an error
	}

	_, result := r.Calculate(formula, row)
	if r.err != nil {
		return r
	}

	// fmt the output
	var output string
	if result.Value.IsNull() {
		output = fmt.Sprintf("%s: <empty>", formula)
	} else {
		output = fmt.Sprintf("%s: %v", formula, result.Value)
	}

	r.printLn(output)
	return r
}
