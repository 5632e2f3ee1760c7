package formula

import "sort"

// ColumnNode represents a field in the column graph. nodes exist for
// computed columns and for every plain field a computed column reads.
type ColumnNode struct {
	Field string

	// field-to-field dependencies
	Precedents map[string]*ColumnNode // fields this column reads
	Dependents map[string]*ColumnNode // columns that read this field

	// Formula is empty for plain row fields
	Formula string

	Volatile bool
}

// ColumnGraph manages computed column dependencies and calculation order
type ColumnGraph struct {
	nodes map[string]*ColumnNode
}

// NewColumnGraph creates a new column graph
func NewColumnGraph() *ColumnGraph {
	return &ColumnGraph{
		nodes: make(map[string]*ColumnNode),
	}
}

// getOrCreateNode gets an existing node or creates a new one
func (cg *ColumnGraph) getOrCreateNode(field string) *ColumnNode {
	if node, exists := cg.nodes[field]; exists {
		return node
	}

	node := &ColumnNode{
		Field:      field,
		Precedents: make(map[string]*ColumnNode),
		Dependents: make(map[string]*ColumnNode),
	}
	cg.nodes[field] = node
	return node
}

// Node retrieves a node if it exists
func (cg *ColumnGraph) Node(field string) (*ColumnNode, bool) {
	node, exists := cg.nodes[field]
	return node, exists
}

// IsComputed reports whether field is a registered computed column
func (cg *ColumnGraph) IsComputed(field string) bool {
	node, exists := cg.nodes[field]
	return exists && node.Formula != ""
}

// SetColumn (re)defines a computed column and its direct dependencies
func (cg *ColumnGraph) SetColumn(field, formula string, deps []string, volatile bool) {
	cg.clearDependencies(field)

	node := cg.getOrCreateNode(field)
	node.Formula = formula
	node.Volatile = volatile

	for _, dep := range deps {
		depNode := cg.getOrCreateNode(dep)
		node.Precedents[dep] = depNode
		depNode.Dependents[field] = node
	}
}

// RemoveColumn turns a computed column back into a plain field, removing
// the node entirely if nothing reads it
func (cg *ColumnGraph) RemoveColumn(field string) bool {
	node, exists := cg.nodes[field]
	if !exists || node.Formula == "" {
		return false
	}
	cg.clearDependencies(field)
	node.Formula = ""
	node.Volatile = false
	cg.cleanupNodeIfEmpty(field)
	return true
}

// clearDependencies removes every outgoing edge of a node
func (cg *ColumnGraph) clearDependencies(field string) {
	node, exists := cg.nodes[field]
	if !exists {
		return
	}
	for precedent, precedentNode := range node.Precedents {
		delete(precedentNode.Dependents, field)
		delete(node.Precedents, precedent)
		cg.cleanupNodeIfEmpty(precedent)
	}
}

// cleanupNodeIfEmpty removes a node if it has no dependencies or formula
func (cg *ColumnGraph) cleanupNodeIfEmpty(field string) {
	node, exists := cg.nodes[field]
	if !exists {
		return
	}

	if node.Formula != "" ||
		len(node.Precedents) > 0 ||
		len(node.Dependents) > 0 {
		return
	}

	delete(cg.nodes, field)
}

// DirectPrecedents returns the fields a column reads directly, sorted
func (cg *ColumnGraph) DirectPrecedents(field string) []string {
	node, exists := cg.nodes[field]
	if !exists {
		return nil
	}
	return sortedKeys(node.Precedents)
}

// DirectDependents returns the columns reading a field directly, sorted
func (cg *ColumnGraph) DirectDependents(field string) []string {
	node, exists := cg.nodes[field]
	if !exists {
		return nil
	}
	return sortedKeys(node.Dependents)
}

// Dependents returns all columns affected by a field (transitive closure),
// sorted
func (cg *ColumnGraph) Dependents(field string) []string {
	visited := make(map[string]struct{})
	var result []string

	cg.collectDependents(field, visited, &result)
	sort.Strings(result)
	return result
}

// collectDependents recursively collects all dependents
func (cg *ColumnGraph) collectDependents(field string, visited map[string]struct{}, result *[]string) {
	if _, alreadyVisited := visited[field]; alreadyVisited {
		return
	}
	visited[field] = struct{}{}

	node, exists := cg.nodes[field]
	if !exists {
		return
	}

	for dependent := range node.Dependents {
		if _, alreadyVisited := visited[dependent]; !alreadyVisited {
			*result = append(*result, dependent)
			cg.collectDependents(dependent, visited, result)
		}
	}
}

// CalculationOrder returns every computed column with its precedents
// before it. the flag is true when the graph contains a cycle; cyclic
// columns still appear in the order, once.
func (cg *ColumnGraph) CalculationOrder() ([]string, bool) {
	// three states: unvisited (not in map), visiting (false), visited (true)
	state := make(map[string]bool)
	var order []string
	hasCycle := false

	var visit func(field string)
	visit = func(field string) {
		if completed, exists := state[field]; exists {
			if !completed {
				// currently visiting - cycle detected
				hasCycle = true
			}
			return
		}

		state[field] = false

		node := cg.nodes[field]
		for _, precedent := range sortedKeys(node.Precedents) {
			visit(precedent)
		}

		state[field] = true
		if node.Formula != "" {
			order = append(order, field)
		}
	}

	for _, field := range sortedKeys(cg.nodes) {
		if _, visited := state[field]; !visited {
			visit(field)
		}
	}

	return order, hasCycle
}

// HasCycle checks if there are circular dependencies
func (cg *ColumnGraph) HasCycle() bool {
	_, hasCycle := cg.CalculationOrder()
	return hasCycle
}

// DetectCircular walks the computed-column dependencies reachable from
// start. visited holds the fields already on the current path; each branch
// gets its own copy, so two columns sharing a dependency are fine while a
// path that returns to one of its own fields is circular. a path longer
// than maxDepth is reported as circular too.
func (cg *ColumnGraph) DetectCircular(start []string, visited map[string]struct{}, maxDepth int) bool {
	if visited == nil {
		visited = make(map[string]struct{})
	}
	for _, field := range start {
		if cg.pathIsCircular(field, visited, 0, maxDepth) {
			return true
		}
	}
	return false
}

func (cg *ColumnGraph) pathIsCircular(field string, visited map[string]struct{}, depth, maxDepth int) bool {
	if _, onPath := visited[field]; onPath {
		return true
	}
	if maxDepth > 0 && depth > maxDepth {
		return true
	}

	node, exists := cg.nodes[field]
	if !exists || node.Formula == "" {
		return false
	}

	branch := make(map[string]struct{}, len(visited)+1)
	for k := range visited {
		branch[k] = struct{}{}
	}
	branch[field] = struct{}{}

	for _, precedent := range sortedKeys(node.Precedents) {
		if cg.pathIsCircular(precedent, branch, depth+1, maxDepth) {
			return true
		}
	}
	return false
}

// Columns returns the computed column names, sorted
func (cg *ColumnGraph) Columns() []string {
	var result []string
	for field, node := range cg.nodes {
		if node.Formula != "" {
			result = append(result, field)
		}
	}
	sort.Strings(result)
	return result
}

// NodeCount returns the number of nodes in the graph
func (cg *ColumnGraph) NodeCount() int {
	return len(cg.nodes)
}

// Clear removes all nodes and dependencies from the graph
func (cg *ColumnGraph) Clear() {
	cg.nodes = make(map[string]*ColumnNode)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
