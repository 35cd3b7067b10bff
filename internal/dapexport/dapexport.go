// Package dapexport converts a completed trace.Steps sequence into
// Debug Adapter Protocol data shapes (stack frames, scopes, variables),
// so any DAP-speaking editor front end can render a step without this
// module depending on a transport of its own. Only the data shapes are
// produced here; a server loop is deliberately out of scope.
package dapexport

import (
	"sort"

	"github.com/google/go-dap"

	"github.com/tracekit/itre/internal/trace"
)

// Exporter holds the lazily-assigned variablesReference bookkeeping
// that a DAP client expects to stay stable across a session: the same
// frame always maps to the same reference once requested.
type Exporter struct {
	steps trace.Steps

	frameToRef map[string]int
	refToFrame map[int]string

	scopeToFrame    map[string]int
	scopeRefToFrame map[int]string

	nextRef int
}

// New builds an Exporter over a completed step sequence.
func New(steps trace.Steps) *Exporter {
	return &Exporter{
		steps:           steps,
		frameToRef:      make(map[string]int),
		refToFrame:      make(map[int]string),
		scopeToFrame:    make(map[string]int),
		scopeRefToFrame: make(map[int]string),
		nextRef:         1000, // leave a block below this free for other reference kinds
	}
}

// StackTrace reconstructs the open call stack at atIndex (inclusive),
// innermost frame first, by replaying func_enter/func_exit pairs up to
// that point. atIndex is typically the current stepIndex the front end
// is paused on.
func (e *Exporter) StackTrace(atIndex int) []dap.StackFrame {
	type openFrame struct {
		frameID  string
		function string
		file     string
		line     int
	}
	var open []openFrame

	for i, s := range e.steps {
		if i > atIndex {
			break
		}
		switch s.EventType {
		case "func_enter":
			open = append(open, openFrame{frameID: s.FrameID, function: s.Function, file: s.File, line: s.Line})
		case "func_exit":
			for j := len(open) - 1; j >= 0; j-- {
				if open[j].frameID == s.FrameID {
					open = append(open[:j], open[j+1:]...)
					break
				}
			}
		}
		if s.FrameID != "" && s.Line != 0 {
			for j := range open {
				if open[j].frameID == s.FrameID {
					open[j].line = s.Line
					open[j].file = s.File
				}
			}
		}
	}

	frames := make([]dap.StackFrame, 0, len(open))
	for i := len(open) - 1; i >= 0; i-- {
		f := open[i]
		frames = append(frames, dap.StackFrame{
			Id:     e.referenceFor(f.frameID),
			Name:   f.function,
			Source: &dap.Source{Name: f.file, Path: f.file},
			Line:   f.line,
			Column: 1,
		})
	}
	return frames
}

// Scopes returns the single "Locals" scope for the frame identified by
// frameRef (a dap.StackFrame.Id previously returned from StackTrace).
// The returned scope's VariablesReference is a distinct reference from
// frameRef, matching DAP's separate frameId/variablesReference
// namespaces, but resolves back to the same frame.
func (e *Exporter) Scopes(frameRef int) []dap.Scope {
	frameID, ok := e.refToFrame[frameRef]
	if !ok {
		return nil
	}
	return []dap.Scope{
		{
			Name:               "Locals",
			VariablesReference: e.scopeReferenceFor(frameID),
			Expensive:          false,
		},
	}
}

// Variables returns the last known value of every symbol written in the
// frame identified by ref (as returned from Scopes/StackTrace), in
// deterministic name order.
func (e *Exporter) Variables(ref int) []dap.Variable {
	frameID, ok := e.scopeRefToFrame[ref]
	if !ok {
		return nil
	}

	values := make(map[string]string)
	for _, s := range e.steps {
		if s.FrameID != frameID || s.Symbol == "" {
			continue
		}
		switch s.EventType {
		case "var_declare", "var_assign", "array_create", "array_index_assign",
			"pointer_alias", "pointer_deref_write", "heap_alloc":
			values[s.Symbol] = s.Value
		}
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	vars := make([]dap.Variable, 0, len(names))
	for _, name := range names {
		vars = append(vars, dap.Variable{Name: name, Value: values[name]})
	}
	return vars
}

func (e *Exporter) referenceFor(frameID string) int {
	if ref, ok := e.frameToRef[frameID]; ok {
		return ref
	}
	e.nextRef++
	ref := e.nextRef
	e.frameToRef[frameID] = ref
	e.refToFrame[ref] = frameID
	return ref
}

func (e *Exporter) scopeReferenceFor(frameID string) int {
	if ref, ok := e.scopeToFrame[frameID]; ok {
		return ref
	}
	e.nextRef++
	ref := e.nextRef
	e.scopeToFrame[frameID] = ref
	e.scopeRefToFrame[ref] = frameID
	return ref
}
