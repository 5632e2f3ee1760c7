package formula

// Parser parses tokens into an AST by recursive descent. precedence, from
// loosest to tightest binding:
//
//	||
//	&&
//	= == != <> < <= > >=
//	&
//	+ -
//	* /
//	unary - + !
//	literals, fields, calls, parentheses
type Parser struct {
	tokens []Token
	pos    int
	end    int // rune length of the source, used for end-of-input errors
}

// NewParser creates a new parser over the given tokens
func NewParser(tokens []Token) *Parser {
	end := 0
	if len(tokens) > 0 {
		last := tokens[len(tokens)-1]
		end = last.Pos + len([]rune(last.Value))
	}
	return &Parser{
		tokens: tokens,
		end:    end,
	}
}

// Parse parses the tokens into an AST
func (p *Parser) Parse() (Node, error) {
	if len(p.tokens) == 0 {
		return nil, newFormulaErrorAt(ErrorCodeValue, 0, "empty formula")
	}

	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}

	if p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		return nil, newFormulaErrorAt(ErrorCodeValue, tok.Pos, "unexpected token after expression: %s", tok.Value)
	}

	return node, nil
}

func (p *Parser) peekOperator(values ...string) (Token, bool) {
	if p.pos >= len(p.tokens) {
		return Token{}, false
	}
	tok := p.tokens[p.pos]
	if tok.Type != TokenOperator {
		return Token{}, false
	}
	for _, v := range values {
		if tok.Value == v {
			return tok, true
		}
	}
	return Token{}, false
}

func span(left, right Node) NodePosition {
	return NodePosition{Start: left.Position().Start, End: right.Position().End}
}

// parseOr handles || (lowest precedence)
func (p *Parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	for {
		if _, ok := p.peekOperator("||"); !ok {
			return left, nil
		}
		p.pos++
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &LogicalOpNode{Op: LogicalOr, Left: left, Right: right, Pos: span(left, right)}
	}
}

// parseAnd handles &&
func (p *Parser) parseAnd() (Node, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}

	for {
		if _, ok := p.peekOperator("&&"); !ok {
			return left, nil
		}
		p.pos++
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &LogicalOpNode{Op: LogicalAnd, Left: left, Right: right, Pos: span(left, right)}
	}
}

// parseComparison handles comparison operators
func (p *Parser) parseComparison() (Node, error) {
	left, err := p.parseConcatenation()
	if err != nil {
		return nil, err
	}

	for {
		tok, ok := p.peekOperator("=", "==", "!=", "<>", "<", "<=", ">", ">=")
		if !ok {
			return left, nil
		}

		var op BinaryOp
		switch tok.Value {
		case "=", "==":
			op = BinOpEqual
		case "<>", "!=":
			op = BinOpNotEqual
		case "<":
			op = BinOpLess
		case "<=":
			op = BinOpLessEqual
		case ">":
			op = BinOpGreater
		case ">=":
			op = BinOpGreaterEqual
		}

		p.pos++
		right, err := p.parseConcatenation()
		if err != nil {
			return nil, err
		}
		left = &BinaryOpNode{Op: op, Left: left, Right: right, Pos: span(left, right)}
	}
}

// parseConcatenation handles the text concatenation operator
func (p *Parser) parseConcatenation() (Node, error) {
	left, err := p.parseAddition()
	if err != nil {
		return nil, err
	}

	for {
		if _, ok := p.peekOperator("&"); !ok {
			return left, nil
		}
		p.pos++
		right, err := p.parseAddition()
		if err != nil {
			return nil, err
		}
		left = &BinaryOpNode{Op: BinOpConcat, Left: left, Right: right, Pos: span(left, right)}
	}
}

// parseAddition handles addition and subtraction
func (p *Parser) parseAddition() (Node, error) {
	left, err := p.parseMultiplication()
	if err != nil {
		return nil, err
	}

	for {
		tok, ok := p.peekOperator("+", "-")
		if !ok {
			return left, nil
		}
		op := BinOpAdd
		if tok.Value == "-" {
			op = BinOpSubtract
		}

		p.pos++
		right, err := p.parseMultiplication()
		if err != nil {
			return nil, err
		}
		left = &BinaryOpNode{Op: op, Left: left, Right: right, Pos: span(left, right)}
	}
}

// parseMultiplication handles multiplication and division
func (p *Parser) parseMultiplication() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for {
		tok, ok := p.peekOperator("*", "/")
		if !ok {
			return left, nil
		}
		op := BinOpMultiply
		if tok.Value == "/" {
			op = BinOpDivide
		}

		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinaryOpNode{Op: op, Left: left, Right: right, Pos: span(left, right)}
	}
}

// parseUnary handles prefix -, + and !. the lexer never produces negative
// literals, so "-5" arrives here as an operator followed by 5.
func (p *Parser) parseUnary() (Node, error) {
	tok, ok := p.peekOperator("-", "+", "!")
	if !ok {
		return p.parsePrimary()
	}
	p.pos++

	operand, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	op := UnaryOpPlus
	switch tok.Value {
	case "-":
		op = UnaryOpMinus
	case "!":
		op = UnaryOpNot
	}
	return &UnaryOpNode{
		Op:      op,
		Operand: operand,
		Pos:     NodePosition{Start: tok.Pos, End: operand.Position().End},
	}, nil
}

// parsePrimary handles primary expressions (literals, fields, functions,
// parentheses)
func (p *Parser) parsePrimary() (Node, error) {
	if p.pos >= len(p.tokens) {
		return nil, newFormulaErrorAt(ErrorCodeValue, p.end, "unexpected end of expression")
	}

	tok := p.tokens[p.pos]
	length := len([]rune(tok.Value))

	switch tok.Type {
	case TokenValue:
		p.pos++
		if tok.Literal.Kind() == KindText {
			length += 2 // quotes
		}
		return &LiteralNode{
			Value: tok.Literal,
			Pos:   NodePosition{Start: tok.Pos, End: tok.Pos + length},
		}, nil

	case TokenField:
		p.pos++
		return &FieldNode{
			Name: tok.Value,
			Pos:  NodePosition{Start: tok.Pos, End: tok.Pos + length},
		}, nil

	case TokenFunction:
		return p.parseFunctionCall()

	case TokenParenthesis:
		if tok.Value != "(" {
			return nil, newFormulaErrorAt(ErrorCodeValue, tok.Pos, "unexpected ')'")
		}
		p.pos++
		node, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.isParen(")") {
			return nil, newFormulaErrorAt(ErrorCodeValue, p.currentPos(), "expected closing parenthesis")
		}
		p.pos++
		return node, nil

	case TokenInvalid:
		if len(tok.Value) > 0 && tok.Value[0] == '"' {
			return nil, newFormulaErrorAt(ErrorCodeValue, tok.Pos, "unclosed string literal")
		}
		return nil, newFormulaErrorAt(ErrorCodeValue, tok.Pos, "unexpected character: %s", tok.Value)
	}

	return nil, newFormulaErrorAt(ErrorCodeValue, tok.Pos, "unexpected token: %s", tok.Value)
}

// parseFunctionCall parses a function call
func (p *Parser) parseFunctionCall() (Node, error) {
	funcTok := p.tokens[p.pos]
	p.pos++

	if !p.isParen("(") {
		return nil, newFormulaErrorAt(ErrorCodeValue, p.currentPos(), "expected '(' after function name %s", funcTok.Value)
	}
	p.pos++

	args := []Node{}

	// empty argument list
	if p.isParen(")") {
		p.pos++
		return &FunctionCallNode{
			Name: funcTok.Value,
			Args: args,
			Pos:  NodePosition{Start: funcTok.Pos, End: p.tokens[p.pos-1].Pos + 1},
		}, nil
	}

	for {
		arg, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		if p.pos >= len(p.tokens) {
			return nil, newFormulaErrorAt(ErrorCodeValue, p.end, "unexpected end in arguments of %s", funcTok.Value)
		}
		if p.isParen(")") {
			p.pos++
			break
		}
		if _, ok := p.peekOperator(","); !ok {
			return nil, newFormulaErrorAt(ErrorCodeValue, p.currentPos(), "expected ',' or ')' in arguments of %s", funcTok.Value)
		}
		p.pos++
	}

	return &FunctionCallNode{
		Name: funcTok.Value,
		Args: args,
		Pos:  NodePosition{Start: funcTok.Pos, End: p.tokens[p.pos-1].Pos + 1},
	}, nil
}

func (p *Parser) isParen(value string) bool {
	return p.pos < len(p.tokens) &&
		p.tokens[p.pos].Type == TokenParenthesis &&
		p.tokens[p.pos].Value == value
}

func (p *Parser) currentPos() int {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos].Pos
	}
	return p.end
}
