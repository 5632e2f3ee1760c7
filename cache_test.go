package formula

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestResultKey(t *testing.T) {
	a, ok := resultKey("=A+B", &FormulaContext{Row: Row{"A": 1, "B": "x"}})
	if !ok {
		t.Fatal("resultKey failed")
	}
	b, _ := resultKey("=A+B", &FormulaContext{Row: Row{"B": "x", "A": 1}})
	if a != b {
		t.Errorf("key depends on map order: %q vs %q", a, b)
	}

	c, _ := resultKey("=A+B", &FormulaContext{Row: Row{"A": 2, "B": "x"}})
	if a == c {
		t.Error("different rows share a key")
	}

	d, _ := resultKey("=A-B", &FormulaContext{Row: Row{"A": 1, "B": "x"}})
	if a == d {
		t.Error("different formulas share a key")
	}

	e, _ := resultKey("=A+B", &FormulaContext{Row: Row{"A": 1, "B": "x"}, Variables: map[string]any{"K": 1}})
	if a == e || !strings.HasPrefix(e, a) {
		t.Errorf("variables not appended to the key: %q", e)
	}

	if _, ok := resultKey("=1", nil); !ok {
		t.Error("nil context should still produce a key")
	}
}

// cents hides its content from JSON encoding
type cents struct{ n int }

func (c cents) String() string { return fmt.Sprintf("%d", c.n) }

func TestResultKeyUsesFormulaValues(t *testing.T) {
	a, ok := resultKey("=A", &FormulaContext{Row: Row{"A": cents{100}}})
	if !ok {
		t.Fatal("resultKey failed")
	}
	b, _ := resultKey("=A", &FormulaContext{Row: Row{"A": cents{300}}})
	if a == b {
		t.Error("rows with different Stringer values share a key")
	}

	when := time.Date(2024, time.January, 2, 3, 4, 5, 0, time.UTC)
	c, _ := resultKey("=A", &FormulaContext{Row: Row{"A": DateTime(when)}})
	d, _ := resultKey("=A", &FormulaContext{Row: Row{"A": DateTime(when.Add(time.Millisecond))}})
	if c == d {
		t.Error("datetimes differing below a second share a key")
	}

	text, _ := resultKey("=A", &FormulaContext{Row: Row{"A": "2024-01-02T03:04:05Z"}})
	if text == c {
		t.Error("a datetime and its text form share a key")
	}

	num, _ := resultKey("=A", &FormulaContext{Row: Row{"A": 1}})
	str, _ := resultKey("=A", &FormulaContext{Row: Row{"A": "1"}})
	if num == str {
		t.Error("a number and its text form share a key")
	}

	v1, _ := resultKey("=A", &FormulaContext{Variables: map[string]any{"A": cents{1}}})
	v2, _ := resultKey("=A", &FormulaContext{Variables: map[string]any{"A": cents{2}}})
	if v1 == v2 {
		t.Error("variables with different Stringer values share a key")
	}
}

func TestCalculateStringerRowsAreNotStale(t *testing.T) {
	opts := DefaultOptions()
	opts.Logger = DiscardLogger()
	engine := NewEngine(opts)

	first := engine.Calculate("=A*2", &FormulaContext{Row: Row{"A": cents{100}}})
	if !first.Success || !first.Value.Equal(Number(200)) {
		t.Fatalf("first = %+v", first)
	}
	second := engine.Calculate("=A*2", &FormulaContext{Row: Row{"A": cents{300}}})
	if !second.Success || !second.Value.Equal(Number(600)) || second.Cached {
		t.Errorf("second = %v cached=%v, want 600 uncached", second.Value, second.Cached)
	}
	again := engine.Calculate("=A*2", &FormulaContext{Row: Row{"A": cents{300}}})
	if !again.Cached || !again.Value.Equal(Number(600)) {
		t.Errorf("repeat = %v cached=%v, want cached 600", again.Value, again.Cached)
	}
}

func TestResultCacheEviction(t *testing.T) {
	cache, err := newResultCache(2, 1)
	if err != nil {
		t.Fatalf("newResultCache failed: %v", err)
	}

	cache.putResult("a", Number(1))
	cache.putResult("b", Number(2))
	cache.getResult("a")
	cache.putResult("c", Number(3))

	if _, ok := cache.getResult("b"); ok {
		t.Error("least recently used entry was not evicted")
	}
	if v, ok := cache.getResult("a"); !ok || !v.Equal(Number(1)) {
		t.Errorf("getResult(a) = %v, %v", v, ok)
	}

	cache.putExpression(ParseFormula("=1"))
	cache.putExpression(ParseFormula("=2"))
	if _, ok := cache.getExpression("=1"); ok {
		t.Error("expression cache exceeded its size")
	}
	if _, ok := cache.getExpression(" =2 "); !ok {
		t.Error("expression lookup should ignore surrounding whitespace")
	}

	cache.purgeResults()
	if stats := cache.stats(); stats.Results != 0 || stats.Expressions != 1 {
		t.Errorf("stats after purgeResults = %+v", stats)
	}
	cache.purge()
	if stats := cache.stats(); stats.Expressions != 0 {
		t.Errorf("stats after purge = %+v", stats)
	}
}

func TestValueMarshalJSON(t *testing.T) {
	when := time.Date(2024, time.January, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		value Value
		want  string
	}{
		{Null(), "null"},
		{Number(1.5), "1.5"},
		{Number(1e21), "1e+21"},
		{Text("say \"hi\"\n"), `"say \"hi\"\n"`},
		{Boolean(true), "true"},
		{DateTime(when), `"2024-01-02T03:04:05Z"`},
		{ErrorValue(NewFormulaError(ErrorCodeDiv0, "")), `"#DIV/0!"`},
	}

	for _, tt := range tests {
		got, err := tt.value.MarshalJSON()
		if err != nil {
			t.Errorf("MarshalJSON(%v) failed: %v", tt.value, err)
			continue
		}
		if string(got) != tt.want {
			t.Errorf("MarshalJSON(%v) = %s, want %s", tt.value, got, tt.want)
		}
	}
}
