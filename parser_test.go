package formula

import (
	"testing"
)

func parseFormula(formula string) bool {
	tokens := Tokenize(formula)
	if len(tokens) == 0 {
		return false
	}
	expr := ParseFormula(formula)
	return expr.Error == nil
}

func TestParserBasicFormulas(t *testing.T) {
	validFormulas := []string{
		"=1+2",
		"=A",
		"Price * Quantity",
		"=SUM(A, B, C)",
		"=SUM()",
		"=IF(A > 10, \"high\", \"low\")",
		"=-A + +B",
		"=!Active",
		"=A && B || C",
		"=A <> B",
		"=A != B",
		"=A == B",
		"=(A + B) * (C - D) / 2",
		"=first_name & \" \" & last_name",
		`="Hello 世界"`,
		`="Test 😀 emoji"`,
		`=CONCATENATE("Hello ", "世界")`,
		`="say ""hi"""`,
		"=1.5e3 + .5",
		"=TRUE",
		"=NULL",
		"=ROUND(SQRT(ABS(A)) * PI(), 2)",
	}

	for _, formula := range validFormulas {
		t.Run(formula, func(t *testing.T) {
			if !parseFormula(formula) {
				t.Errorf("Failed to parse valid formula: %s", formula)
			}
		})
	}
}

func TestParserInvalidFormulas(t *testing.T) {
	invalidFormulas := []string{
		"=",
		"",
		"   ",
		"=SUM(",
		"=SUM(A,",
		"=SUM(A B)",
		"=(A + B",
		"=A +",
		"=A B",
		"=)",
		`="hello`,
		"=A # B",
		"=A $ 2",
	}

	for _, formula := range invalidFormulas {
		t.Run(formula, func(t *testing.T) {
			if parseFormula(formula) {
				t.Errorf("Parsed invalid formula without error: %s", formula)
			}
		})
	}
}

func TestParserPrecedence(t *testing.T) {
	tests := []struct {
		formula string
		want    string
	}{
		{"=1+2*3", "(1+(2*3))"},
		{"=(1+2)*3", "((1+2)*3)"},
		{"=A-B-C", "((A-B)-C)"},
		{"=A/B*C", "((A/B)*C)"},
		{"=A&B+C", "(A&(B+C))"},
		{"=A+1>B&C", "((A+1)>(B&C))"},
		{"=A||B&&C", "(A||(B&&C))"},
		{"=A>1&&B<2", "((A>1)&&(B<2))"},
		{"=-A*B", "(-A*B)"},
		{"=!A=B", "(!A=B)"},
		{"=SUM(A,B*2)", "SUM(A,(B*2))"},
		{"=A<>B", "(A<>B)"},
		{`="a""b"`, `"a""b"`},
	}

	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			expr := ParseFormula(tt.formula)
			if expr.Error != nil {
				t.Fatalf("ParseFormula(%q) failed: %v", tt.formula, expr.Error)
			}
			if got := expr.Compiled.String(); got != tt.want {
				t.Errorf("ParseFormula(%q) = %s, want %s", tt.formula, got, tt.want)
			}
		})
	}
}

func TestParserErrorPositions(t *testing.T) {
	tests := []struct {
		formula string
		pos     int
		message string
	}{
		{"=", 0, "empty formula"},
		{"=(A + B", 7, "expected closing parenthesis"},
		{`=A & "open`, 5, "unclosed string literal"},
		{"=A # B", 3, "unexpected character: #"},
		{"=A B", 3, "unexpected token after expression: B"},
		{"=A +", 4, "unexpected end of expression"},
	}

	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			expr := ParseFormula(tt.formula)
			if expr.Error == nil {
				t.Fatalf("ParseFormula(%q) succeeded, want error", tt.formula)
			}
			if expr.Compiled != nil {
				t.Errorf("ParseFormula(%q) compiled a failed expression", tt.formula)
			}
			if expr.Error.Message != tt.message {
				t.Errorf("ParseFormula(%q) error = %q, want %q", tt.formula, expr.Error.Message, tt.message)
			}
			if expr.Error.Position != tt.pos {
				t.Errorf("ParseFormula(%q) position = %d, want %d", tt.formula, expr.Error.Position, tt.pos)
			}
		})
	}
}

func TestParseFormulaIsIdempotent(t *testing.T) {
	formulas := []string{
		"=Price * Quantity - Discount",
		"=IF(Status = \"open\", UPPER(Name), LOWER(Name))",
		"=SUM(A, B, A)",
	}

	for _, formula := range formulas {
		t.Run(formula, func(t *testing.T) {
			first := ParseFormula(formula)
			second := ParseFormula(formula)
			if first.Error != nil || second.Error != nil {
				t.Fatalf("ParseFormula(%q) failed", formula)
			}
			if first.Compiled.String() != second.Compiled.String() {
				t.Errorf("trees differ: %s vs %s", first.Compiled, second.Compiled)
			}
			if len(first.Tokens) != len(second.Tokens) {
				t.Fatalf("token counts differ: %d vs %d", len(first.Tokens), len(second.Tokens))
			}
			for i := range first.Tokens {
				a, b := first.Tokens[i], second.Tokens[i]
				if a.Type != b.Type || a.Value != b.Value || a.Pos != b.Pos {
					t.Errorf("token %d differs: %+v vs %+v", i, a, b)
				}
			}
			if !equalStrings(first.Dependencies, second.Dependencies) {
				t.Errorf("dependencies differ: %v vs %v", first.Dependencies, second.Dependencies)
			}
		})
	}
}

func TestExtractDependencies(t *testing.T) {
	tests := []struct {
		formula string
		want    []string
	}{
		{"=1+2", []string{}},
		{"=A + B * A", []string{"A", "B"}},
		{"=SUM(Price, Tax) + Price", []string{"Price", "Tax"}},
		{"=IF(Qty > 0, Total / Qty, 0)", []string{"Qty", "Total"}},
		{"=SUM + 1", []string{"SUM"}},
		{`="Price" & Name`, []string{"Name"}},
		{"=TRUE && Active", []string{"Active"}},
		{"=UPPER(first.name)", []string{"first.name"}},
	}

	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			got := ParseFormula(tt.formula).Dependencies
			if got == nil {
				t.Fatalf("Dependencies(%q) is nil", tt.formula)
			}
			if !equalStrings(got, tt.want) {
				t.Errorf("Dependencies(%q) = %v, want %v", tt.formula, got, tt.want)
			}
		})
	}
}

func TestCompileCollectsFunctionsAndVolatility(t *testing.T) {
	expr := ParseFormula("=IF(NOW() > Due, ROUND(A, 2), round(B, 1))")
	if expr.Error != nil {
		t.Fatalf("ParseFormula failed: %v", expr.Error)
	}
	if !equalStrings(expr.Compiled.Functions(), []string{"IF", "NOW", "ROUND"}) {
		t.Errorf("Functions() = %v", expr.Compiled.Functions())
	}
	if !equalStrings(expr.Functions(), []string{"IF", "NOW", "ROUND"}) {
		t.Errorf("expression Functions() = %v", expr.Functions())
	}
	if !equalStrings(expr.Compiled.Fields(), []string{"Due", "A", "B"}) {
		t.Errorf("Fields() = %v", expr.Compiled.Fields())
	}
	if !expr.Compiled.Volatile() {
		t.Error("formula calling NOW should be volatile")
	}
	if ParseFormula("=A+B").Compiled.Volatile() {
		t.Error("plain arithmetic should not be volatile")
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
