package formula

// CalculationStack tracks the computed columns of one row evaluation: the
// columns currently being computed (a repeat means a cycle) and the values
// already produced in this pass
type CalculationStack struct {
	items      []string            // stack of columns being computed
	processing map[string]struct{} // currently being processed (cycle detection)
	completed  map[string]Value    // already calculated in this pass
}

// NewCalculationStack creates a new calculation stack
func NewCalculationStack() *CalculationStack {
	return &CalculationStack{
		items:      make([]string, 0),
		processing: make(map[string]struct{}),
		completed:  make(map[string]Value),
	}
}

// push adds a column to the stack
func (cs *CalculationStack) push(field string) {
	cs.items = append(cs.items, field)
	cs.processing[field] = struct{}{}
}

// pop removes and returns the top column from the stack
func (cs *CalculationStack) pop() (string, bool) {
	if len(cs.items) == 0 {
		return "", false
	}
	field := cs.items[len(cs.items)-1]
	cs.items = cs.items[:len(cs.items)-1]
	delete(cs.processing, field)
	return field, true
}

// depth returns the number of columns being computed
func (cs *CalculationStack) depth() int {
	return len(cs.items)
}

// isProcessing checks if a column is currently being processed
func (cs *CalculationStack) isProcessing(field string) bool {
	_, exists := cs.processing[field]
	return exists
}

// markCompleted records the value calculated for a column
func (cs *CalculationStack) markCompleted(field string, v Value) {
	cs.completed[field] = v
}

// completedValue returns the value of a column calculated in this pass
func (cs *CalculationStack) completedValue(field string) (Value, bool) {
	v, exists := cs.completed[field]
	return v, exists
}

// path returns the columns being computed, outermost first
func (cs *CalculationStack) path() []string {
	return append([]string(nil), cs.items...)
}
