package formula

import (
	"errors"
	"strings"
	"testing"
)

func TestRunnableEngineChain(t *testing.T) {
	var lines []string
	printLn := func(s string) { lines = append(lines, s) }

	r := NewRunnableEngine(testOptions(), printLn).
		RegisterFunction("TWICE", func(args ...Value) (Value, error) {
			n, _ := args[0].Float()
			return Number(n * 2), nil
		}).
		Column("Subtotal", "=Price * Qty").
		Column("Total", "=TWICE(Subtotal)").
		Log("=Price + 1", Row{"Price": 4}).
		Log("=Note", Row{"Note": nil}).
		CheckError()

	if r.Error() != nil {
		t.Fatalf("chain failed: %v", r.Error())
	}
	if v := r.Value("=TWICE(3)", nil); !v.Equal(Number(6)) {
		t.Errorf("Value(TWICE(3)) = %v", v)
	}
	if v := r.ColumnValue("Total", Row{"Price": 2, "Qty": 5}); !v.Equal(Number(20)) {
		t.Errorf("ColumnValue(Total) = %v", v)
	}
	values := r.Row(Row{"Price": 1, "Qty": 1})
	if !values["Subtotal"].Equal(Number(1)) || !values["Total"].Equal(Number(2)) {
		t.Errorf("Row() = %v", values)
	}

	want := []string{"=Price + 1: 5", "=Note: <empty>", "No errors"}
	if strings.Join(lines, "|") != strings.Join(want, "|") {
		t.Errorf("log lines = %q, want %q", lines, want)
	}
}

func TestRunnableEngineErrors(t *testing.T) {
	var lines []string
	r := NewRunnableEngine(testOptions(), func(s string) { lines = append(lines, s) })

	called := false
	r.Calculate("=1/0", nil)
	r.Then(func(r *RunnableEngine) *RunnableEngine {
		called = true
		return r
	})
	if called {
		t.Error("Then ran after a failure")
	}
	if r.Error() == nil || !strings.Contains(r.Error().Error(), "division by zero") {
		t.Errorf("Error() = %v", r.Error())
	}
	if v := r.Value("=1+1", nil); !v.IsNull() {
		t.Errorf("Value after failure = %v, want null", v)
	}

	r.CheckError()
	if len(lines) != 1 || !strings.HasPrefix(lines[0], "ERROR:") {
		t.Errorf("CheckError logged %q", lines)
	}

	sentinel := errors.New("handled")
	r.OnError(func(err error) error { return sentinel })
	if !errors.Is(r.Error(), sentinel) {
		t.Errorf("OnError did not replace the error: %v", r.Error())
	}

	r.Reset()
	if r.Error() != nil {
		t.Error("Reset did not clear the error")
	}
	if v := r.Value("=1+1", nil); !v.Equal(Number(2)) {
		t.Errorf("Value after Reset = %v", v)
	}
	if r.Engine() == nil {
		t.Error("Engine() returned nil")
	}
}

func TestRunnableEngineMust(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Must did not panic")
		}
	}()
	NewRunnableEngine(testOptions(), func(string) {}).
		Column("", "=1").
		Must()
}
