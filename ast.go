package formula

import (
	"fmt"
	"math"
	"strings"
)

type NodePosition struct {
	Start int
	End   int
}

// Node is a parsed formula expression. the tree is evaluated directly; no
// source text is ever synthesized from user input.
type Node interface {
	Eval(s *scope) (Value, error)
	Position() NodePosition
	String() string
}

// BinaryOp represents binary operators in AST nodes
type BinaryOp int

const (
	BinOpAdd BinaryOp = iota
	BinOpSubtract
	BinOpMultiply
	BinOpDivide
	BinOpConcat
	BinOpEqual
	BinOpNotEqual
	BinOpLess
	BinOpLessEqual
	BinOpGreater
	BinOpGreaterEqual
)

var binaryOpText = map[BinaryOp]string{
	BinOpAdd:          "+",
	BinOpSubtract:     "-",
	BinOpMultiply:     "*",
	BinOpDivide:       "/",
	BinOpConcat:       "&",
	BinOpEqual:        "=",
	BinOpNotEqual:     "<>",
	BinOpLess:         "<",
	BinOpLessEqual:    "<=",
	BinOpGreater:      ">",
	BinOpGreaterEqual: ">=",
}

// UnaryOp represents unary operators in AST nodes
type UnaryOp int

const (
	UnaryOpPlus UnaryOp = iota
	UnaryOpMinus
	UnaryOpNot
)

// LogicalOp represents the short-circuiting operators && and ||
type LogicalOp int

const (
	LogicalAnd LogicalOp = iota
	LogicalOr
)

// LiteralNode represents a number, string, boolean or null literal
type LiteralNode struct {
	Value Value
	Pos   NodePosition
}

func (n *LiteralNode) Eval(s *scope) (Value, error) {
	return n.Value, nil
}

func (n *LiteralNode) Position() NodePosition {
	return n.Pos
}

func (n *LiteralNode) String() string {
	switch n.Value.Kind() {
	case KindText:
		escaped := strings.ReplaceAll(n.Value.str, "\"", "\"\"")
		return fmt.Sprintf("\"%s\"", escaped)
	case KindNull:
		return "NULL"
	}
	return toText(n.Value)
}

// FieldNode represents a reference to a row field or variable
type FieldNode struct {
	Name string
	Pos  NodePosition
}

func (n *FieldNode) Eval(s *scope) (Value, error) {
	v, ok := s.field(n.Name)
	if !ok {
		return Null(), newFormulaErrorAt(ErrorCodeName, n.Pos.Start, "unknown field: %s", n.Name)
	}
	if v.IsError() {
		return Null(), v.err
	}
	return v, nil
}

func (n *FieldNode) Position() NodePosition {
	return n.Pos
}

func (n *FieldNode) String() string {
	return n.Name
}

// BinaryOpNode represents a binary operation
type BinaryOpNode struct {
	Op    BinaryOp
	Left  Node
	Right Node
	Pos   NodePosition
}

func (n *BinaryOpNode) Eval(s *scope) (Value, error) {
	leftVal, err := n.Left.Eval(s)
	if err != nil {
		return Null(), err
	}
	rightVal, err := n.Right.Eval(s)
	if err != nil {
		return Null(), err
	}

	switch n.Op {
	case BinOpAdd, BinOpSubtract, BinOpMultiply, BinOpDivide:
		return n.arithmetic(leftVal, rightVal)

	case BinOpConcat:
		return Text(toText(leftVal) + toText(rightVal)), nil

	case BinOpEqual:
		cmp, ok := compareValues(leftVal, rightVal)
		return Boolean(ok && cmp == 0), nil

	case BinOpNotEqual:
		cmp, ok := compareValues(leftVal, rightVal)
		return Boolean(!ok || cmp != 0), nil
	}

	cmp, ok := compareValues(leftVal, rightVal)
	if !ok {
		return Null(), newFormulaErrorAt(ErrorCodeValue, n.Pos.Start, "cannot compare %s with %s", leftVal.Kind(), rightVal.Kind())
	}
	switch n.Op {
	case BinOpLess:
		return Boolean(cmp < 0), nil
	case BinOpLessEqual:
		return Boolean(cmp <= 0), nil
	case BinOpGreater:
		return Boolean(cmp > 0), nil
	case BinOpGreaterEqual:
		return Boolean(cmp >= 0), nil
	}
	return Null(), newFormulaErrorAt(ErrorCodeValue, n.Pos.Start, "unknown operator")
}

func (n *BinaryOpNode) arithmetic(leftVal, rightVal Value) (Value, error) {
	leftNum, leftOk := toNumber(leftVal)
	rightNum, rightOk := toNumber(rightVal)
	if !leftOk || !rightOk {
		return Null(), newFormulaErrorAt(ErrorCodeValue, n.Pos.Start,
			"operator %s requires numeric values", binaryOpText[n.Op])
	}

	switch n.Op {
	case BinOpAdd:
		return Number(leftNum + rightNum), nil
	case BinOpSubtract:
		return Number(leftNum - rightNum), nil
	case BinOpMultiply:
		return Number(leftNum * rightNum), nil
	}

	if rightNum == 0 {
		return Null(), newFormulaErrorAt(ErrorCodeDiv0, n.Pos.Start, "division by zero")
	}
	result := leftNum / rightNum
	if math.IsInf(result, 0) {
		return Null(), newFormulaErrorAt(ErrorCodeNum, n.Pos.Start, "division overflow")
	}
	return Number(result), nil
}

func (n *BinaryOpNode) Position() NodePosition {
	return n.Pos
}

func (n *BinaryOpNode) String() string {
	return fmt.Sprintf("(%s%s%s)", n.Left.String(), binaryOpText[n.Op], n.Right.String())
}

// UnaryOpNode represents a unary operation
type UnaryOpNode struct {
	Op      UnaryOp
	Operand Node
	Pos     NodePosition
}

func (n *UnaryOpNode) Eval(s *scope) (Value, error) {
	val, err := n.Operand.Eval(s)
	if err != nil {
		return Null(), err
	}

	if n.Op == UnaryOpNot {
		return Boolean(!isTruthy(val)), nil
	}

	num, ok := toNumber(val)
	if !ok {
		return Null(), newFormulaErrorAt(ErrorCodeValue, n.Pos.Start, "unary operator requires a numeric value")
	}
	if n.Op == UnaryOpMinus {
		return Number(-num), nil
	}
	return Number(num), nil
}

func (n *UnaryOpNode) Position() NodePosition {
	return n.Pos
}

func (n *UnaryOpNode) String() string {
	switch n.Op {
	case UnaryOpMinus:
		return "-" + n.Operand.String()
	case UnaryOpNot:
		return "!" + n.Operand.String()
	}
	return "+" + n.Operand.String()
}

// LogicalOpNode represents && and ||. the right side is only evaluated when
// the left side does not decide the result.
type LogicalOpNode struct {
	Op    LogicalOp
	Left  Node
	Right Node
	Pos   NodePosition
}

func (n *LogicalOpNode) Eval(s *scope) (Value, error) {
	leftVal, err := n.Left.Eval(s)
	if err != nil {
		return Null(), err
	}
	left := isTruthy(leftVal)
	if n.Op == LogicalAnd && !left {
		return Boolean(false), nil
	}
	if n.Op == LogicalOr && left {
		return Boolean(true), nil
	}

	rightVal, err := n.Right.Eval(s)
	if err != nil {
		return Null(), err
	}
	return Boolean(isTruthy(rightVal)), nil
}

func (n *LogicalOpNode) Position() NodePosition {
	return n.Pos
}

func (n *LogicalOpNode) String() string {
	op := "&&"
	if n.Op == LogicalOr {
		op = "||"
	}
	return fmt.Sprintf("(%s%s%s)", n.Left.String(), op, n.Right.String())
}

// FunctionCallNode represents a function call
type FunctionCallNode struct {
	Name string
	Args []Node
	Pos  NodePosition
}

func (n *FunctionCallNode) Eval(s *scope) (Value, error) {
	fn, builtin, ok := s.function(n.Name)
	if !ok {
		return Null(), newFormulaErrorAt(ErrorCodeName, n.Pos.Start, "unknown function: %s", n.Name)
	}

	// IF and IFERROR only evaluate the branch they return, unless a custom
	// function has taken over the name.
	if builtin {
		switch n.Name {
		case "IF":
			return n.evalIf(s)
		case "IFERROR":
			return n.evalIfError(s)
		}
	}

	args := make([]Value, len(n.Args))
	for i, argNode := range n.Args {
		argVal, err := argNode.Eval(s)
		if err != nil {
			return Null(), err
		}
		args[i] = argVal
	}

	result, err := fn(args...)
	if err != nil {
		if fe, ok := err.(*FormulaError); ok {
			if fe.Position < 0 {
				positioned := *fe
				positioned.Position = n.Pos.Start
				return Null(), &positioned
			}
			return Null(), fe
		}
		return Null(), newFormulaErrorAt(ErrorCodeValue, n.Pos.Start, "%s: %v", n.Name, err)
	}
	return result, nil
}

func (n *FunctionCallNode) evalIf(s *scope) (Value, error) {
	if len(n.Args) < 2 || len(n.Args) > 3 {
		return Null(), newFormulaErrorAt(ErrorCodeNA, n.Pos.Start, "IF requires 2 or 3 arguments")
	}
	cond, err := n.Args[0].Eval(s)
	if err != nil {
		return Null(), err
	}
	if isTruthy(cond) {
		return n.Args[1].Eval(s)
	}
	if len(n.Args) == 3 {
		return n.Args[2].Eval(s)
	}
	return Boolean(false), nil
}

func (n *FunctionCallNode) evalIfError(s *scope) (Value, error) {
	if len(n.Args) != 2 {
		return Null(), newFormulaErrorAt(ErrorCodeNA, n.Pos.Start, "IFERROR requires exactly 2 arguments")
	}
	val, err := n.Args[0].Eval(s)
	if err != nil || val.IsError() {
		return n.Args[1].Eval(s)
	}
	return val, nil
}

func (n *FunctionCallNode) Position() NodePosition {
	return n.Pos
}

func (n *FunctionCallNode) String() string {
	args := make([]string, len(n.Args))
	for i, arg := range n.Args {
		args[i] = arg.String()
	}
	return fmt.Sprintf("%s(%s)", n.Name, strings.Join(args, ","))
}

// walk visits every node depth-first, left to right
func walk(node Node, visit func(Node)) {
	if node == nil {
		return
	}
	visit(node)
	switch n := node.(type) {
	case *BinaryOpNode:
		walk(n.Left, visit)
		walk(n.Right, visit)
	case *LogicalOpNode:
		walk(n.Left, visit)
		walk(n.Right, visit)
	case *UnaryOpNode:
		walk(n.Operand, visit)
	case *FunctionCallNode:
		for _, arg := range n.Args {
			walk(arg, visit)
		}
	}
}
