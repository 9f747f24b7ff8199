package gpjob

import (
	"fmt"
	"time"
)

// ExecutionMode selects how the remote service runs an analysis.
type ExecutionMode string

const (
	// ModeSynchronous asks the service to execute inline; such jobs are
	// terminal by the first status fetch.
	ModeSynchronous ExecutionMode = "synchronous"

	// ModeAsyncSubmit asks the service to queue the analysis and report
	// progress through status fetches.
	ModeAsyncSubmit ExecutionMode = "asynchronousSubmit"
)

// ValueKind discriminates the payload carried by a Value.
type ValueKind int

const (
	KindString ValueKind = iota
	KindNumber
)

// Value is one typed analysis input.
type Value struct {
	kind ValueKind
	str  string
	num  float64
}

// StringValue wraps a textual input such as a query expression.
func StringValue(s string) Value {
	return Value{kind: KindString, str: s}
}

// NumberValue wraps a numeric input such as a cell size or distance.
func NumberValue(f float64) Value {
	return Value{kind: KindNumber, num: f}
}

// Kind returns the payload discriminator.
func (v Value) Kind() ValueKind {
	return v.kind
}

// AsString returns the string payload; ok is false for non-string values.
func (v Value) AsString() (string, bool) {
	return v.str, v.kind == KindString
}

// AsNumber returns the numeric payload; ok is false for non-number values.
func (v Value) AsNumber() (float64, bool) {
	return v.num, v.kind == KindNumber
}

// String renders the payload for logs and wire encodings.
func (v Value) String() string {
	if v.kind == KindNumber {
		return fmt.Sprintf("%g", v.num)
	}
	return v.str
}

// Parameters is the immutable input bundle for one submission. Build it with
// NewParameters; the zero value carries no inputs and no valid mode.
type Parameters struct {
	mode   ExecutionMode
	inputs map[string]Value
}

// NewParameters builds a parameter set. The inputs map is copied, so later
// mutation of the argument does not leak into a submitted job.
func NewParameters(mode ExecutionMode, inputs map[string]Value) (Parameters, error) {
	switch mode {
	case ModeSynchronous, ModeAsyncSubmit:
	default:
		return Parameters{}, InvalidState("parameters.new", fmt.Sprintf("unknown execution mode %q", mode))
	}
	copied := make(map[string]Value, len(inputs))
	for k, v := range inputs {
		if k == "" {
			return Parameters{}, InvalidState("parameters.new", "input names must be non-empty")
		}
		copied[k] = v
	}
	return Parameters{mode: mode, inputs: copied}, nil
}

// Mode returns the execution mode.
func (p Parameters) Mode() ExecutionMode {
	return p.mode
}

// Input returns the named input value.
func (p Parameters) Input(name string) (Value, bool) {
	v, ok := p.inputs[name]
	return v, ok
}

// Inputs returns a copy of the input mapping.
func (p Parameters) Inputs() map[string]Value {
	copied := make(map[string]Value, len(p.inputs))
	for k, v := range p.inputs {
		copied[k] = v
	}
	return copied
}

// queryTimeLayout is the timestamp format date-window queries embed.
const queryTimeLayout = "2006-01-02 15:04:05"

// QueryBetween renders the date-window predicate analyses filter on:
//
//	("reported_at" > date '1998-01-01 00:00:00' AND "reported_at" < date '1998-01-31 00:00:00')
//
// The window must end more than one day after it starts; narrower windows
// starve the analysis of data and are rejected here, before submission.
func QueryBetween(field string, from, to time.Time) (string, error) {
	if field == "" {
		return "", InvalidState("parameters.query", "field must be non-empty")
	}
	if to.Sub(from) <= 24*time.Hour {
		return "", InvalidState("parameters.query",
			fmt.Sprintf("window from %s to %s must span more than one day", from.Format(queryTimeLayout), to.Format(queryTimeLayout)))
	}
	return fmt.Sprintf("(%q > date '%s' AND %q < date '%s')",
		field, from.Format(queryTimeLayout), field, to.Format(queryTimeLayout)), nil
}
