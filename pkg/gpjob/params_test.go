package gpjob

import (
	"errors"
	"testing"
	"time"
)

func TestNewParameters(t *testing.T) {
	t.Parallel()

	inputs := map[string]Value{
		"query":    StringValue(`("reported_at" > date '1998-01-01')`),
		"cellSize": NumberValue(50),
	}
	params, err := NewParameters(ModeAsyncSubmit, inputs)
	if err != nil {
		t.Fatalf("NewParameters() error: %v", err)
	}
	if params.Mode() != ModeAsyncSubmit {
		t.Errorf("Mode() = %q, want %q", params.Mode(), ModeAsyncSubmit)
	}

	v, ok := params.Input("cellSize")
	if !ok {
		t.Fatal("expected cellSize input to exist")
	}
	if n, ok := v.AsNumber(); !ok || n != 50 {
		t.Errorf("AsNumber() = %v, %v, want 50, true", n, ok)
	}
	if _, ok := v.AsString(); ok {
		t.Error("expected AsString to report false for a number value")
	}
}

func TestNewParameters_CopiesInputs(t *testing.T) {
	t.Parallel()

	inputs := map[string]Value{"query": StringValue("a")}
	params, err := NewParameters(ModeSynchronous, inputs)
	if err != nil {
		t.Fatalf("NewParameters() error: %v", err)
	}

	// Mutating the source map must not reach the parameter set.
	inputs["query"] = StringValue("b")
	v, _ := params.Input("query")
	if s, _ := v.AsString(); s != "a" {
		t.Errorf("Input(query) = %q, want %q", s, "a")
	}

	// Mutating the returned copy must not reach the parameter set either.
	out := params.Inputs()
	out["query"] = StringValue("c")
	v, _ = params.Input("query")
	if s, _ := v.AsString(); s != "a" {
		t.Errorf("Input(query) after copy mutation = %q, want %q", s, "a")
	}
}

func TestNewParameters_Invalid(t *testing.T) {
	t.Parallel()

	if _, err := NewParameters("batch", nil); !errors.Is(err, ErrInvalidState) {
		t.Errorf("unknown mode: got %v, want ErrInvalidState", err)
	}
	if _, err := NewParameters(ModeAsyncSubmit, map[string]Value{"": StringValue("x")}); !errors.Is(err, ErrInvalidState) {
		t.Errorf("empty input name: got %v, want ErrInvalidState", err)
	}
}

func TestQueryBetween(t *testing.T) {
	t.Parallel()

	from := time.Date(1998, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(1998, 1, 31, 0, 0, 0, 0, time.UTC)

	got, err := QueryBetween("reported_at", from, to)
	if err != nil {
		t.Fatalf("QueryBetween() error: %v", err)
	}
	want := `("reported_at" > date '1998-01-01 00:00:00' AND "reported_at" < date '1998-01-31 00:00:00')`
	if got != want {
		t.Errorf("QueryBetween() = %s, want %s", got, want)
	}
}

func TestQueryBetween_Invalid(t *testing.T) {
	t.Parallel()

	from := time.Date(1998, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		field string
		to    time.Time
	}{
		{"empty field", "", from.AddDate(0, 1, 0)},
		{"window too narrow", "reported_at", from.Add(24 * time.Hour)},
		{"end before start", "reported_at", from.AddDate(0, -1, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := QueryBetween(tt.field, from, tt.to); !errors.Is(err, ErrInvalidState) {
				t.Errorf("QueryBetween() error = %v, want ErrInvalidState", err)
			}
		})
	}
}
