// Package event defines the raw instrumentation event stream consumed by
// the trace reconstruction engine, and the tagged-union classification of
// event types used throughout the pipeline.
package event

import (
	"encoding/json"
	"fmt"
)

// Type identifies the kind of a raw event. Recognised values are given
// below; anything else is an unknown type (Known reports false), which
// is preserved verbatim in the output rather than dropped (see
// UnknownEventError).
type Type string

const (
	FuncEnter         Type = "func_enter"
	FuncExit          Type = "func_exit"
	Return            Type = "return"
	BlockEnter        Type = "block_enter"
	BlockExit         Type = "block_exit"
	LoopStart         Type = "loop_start"
	LoopBodyStart     Type = "loop_body_start"
	LoopIterationEnd  Type = "loop_iteration_end"
	LoopEnd           Type = "loop_end"
	LoopCondition     Type = "loop_condition"
	ControlFlow       Type = "control_flow"
	ConditionEval     Type = "condition_eval"
	BranchTaken       Type = "branch_taken"
	Declare           Type = "declare"
	Assign            Type = "assign"
	ArgBind           Type = "arg_bind"
	ExpressionEval    Type = "expression_eval"
	ArrayCreate       Type = "array_create"
	ArrayIndexAssign  Type = "array_index_assign"
	PointerAlias      Type = "pointer_alias"
	PointerDerefWrite Type = "pointer_deref_write"
	HeapAlloc         Type = "heap_alloc"
	HeapFree          Type = "heap_free"
	HeapWrite         Type = "heap_write"
)

// structuralAllowSet is the set of event types kept even when source
// location resolution fails entirely.
var structuralAllowSet = map[Type]bool{
	FuncEnter:        true,
	FuncExit:         true,
	Return:           true,
	LoopStart:        true,
	LoopEnd:          true,
	LoopBodyStart:    true,
	LoopIterationEnd: true,
	LoopCondition:    true,
	ConditionEval:    true,
	BranchTaken:      true,
	ControlFlow:      true,
	BlockEnter:       true,
	BlockExit:        true,
	HeapAlloc:        true,
	HeapFree:         true,
}

// unresolvedAllowSet is the minimal allow-list permitted for events that
// survive filtering but still lack source line info once classified.
var unresolvedAllowSet = map[Type]bool{
	HeapAlloc: true,
	HeapFree:  true,
}

// IsStructuralAllowed reports whether t may be kept without a resolved
// source location.
func IsStructuralAllowed(t Type) bool { return structuralAllowSet[normalize(t)] }

// IsUnresolvedAllowed reports whether t may be kept despite having no
// source line info after classification.
func IsUnresolvedAllowed(t Type) bool { return unresolvedAllowSet[normalize(t)] }

// Known reports whether t is one of the recognised event types.
func Known(t Type) bool {
	switch normalize(t) {
	case FuncEnter, FuncExit, Return, BlockEnter, BlockExit, LoopStart, LoopBodyStart,
		LoopIterationEnd, LoopEnd, LoopCondition, ControlFlow, ConditionEval, BranchTaken,
		Declare, Assign, ArgBind, ExpressionEval, ArrayCreate, ArrayIndexAssign,
		PointerAlias, PointerDerefWrite, HeapAlloc, HeapFree, HeapWrite:
		return true
	default:
		return false
	}
}

func normalize(t Type) Type { return Type(lower(string(t))) }

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// Raw is one event in the instrumentation stream. Field presence varies
// by Type.
type Raw struct {
	Type Type `json:"type"`

	Addr uint64 `json:"addr,omitempty"`
	File string `json:"file,omitempty"`
	Line int    `json:"line,omitempty"`
	Func string `json:"func,omitempty"`

	LoopID      string `json:"loopId,omitempty"`
	ConditionID string `json:"conditionId,omitempty"`
	Name        string `json:"name,omitempty"`

	PointerName    string `json:"pointerName,omitempty"`
	AliasOf        string `json:"aliasOf,omitempty"`
	AliasedAddress uint64 `json:"aliasedAddress,omitempty"`
	IsHeap         bool   `json:"isHeap,omitempty"`

	Dimensions []int `json:"dimensions,omitempty"`
	Indices    []int `json:"indices,omitempty"`

	Value json.RawMessage `json:"value,omitempty"`
	Size  uint64           `json:"size,omitempty"`

	BlockDepth int `json:"blockDepth,omitempty"`
}

// ValueString renders Value for display, falling back to its raw JSON
// text when it isn't a bare string.
func (r Raw) ValueString() string {
	if len(r.Value) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(r.Value, &s); err == nil {
		return s
	}
	return string(r.Value)
}

// Document is the JSON shape written by the instrumented binary.
type Document struct {
	Events           []Raw    `json:"events"`
	TrackedFunctions []string `json:"tracked_functions"`
}

// ErrInstrumentationInactive is returned when a Document carries zero
// events.
type ErrInstrumentationInactive struct{}

func (ErrInstrumentationInactive) Error() string {
	return "instrumentation inactive: zero raw events"
}

// Validate enforces the hard zero-events error.
func (d Document) Validate() error {
	if len(d.Events) == 0 {
		return ErrInstrumentationInactive{}
	}
	return nil
}

// NormalizedFunctionName trims whitespace and a trailing CR, as required
// for frame function names.
func NormalizedFunctionName(name string) string {
	for len(name) > 0 && (name[len(name)-1] == '\r' || name[len(name)-1] == '\n' || name[len(name)-1] == ' ' || name[len(name)-1] == '\t') {
		name = name[:len(name)-1]
	}
	for len(name) > 0 && (name[0] == ' ' || name[0] == '\t') {
		name = name[1:]
	}
	return name
}

func (t Type) String() string { return string(t) }

// UnknownEventError is logged (dev-only) when a raw event carries a type
// outside the recognised catalogue; the event itself is still preserved
// in the output.
type UnknownEventError struct{ Type Type }

func (e UnknownEventError) Error() string {
	return fmt.Sprintf("unknown event type %q", string(e.Type))
}
