package trace

import (
	"sort"

	"golang.org/x/exp/maps"
)

// ScopeRecordType enumerates the kind of scope a ScopeRecord represents.
type ScopeRecordType string

const (
	ScopeRecordFunction      ScopeRecordType = "function"
	ScopeRecordBlock         ScopeRecordType = "block"
	ScopeRecordLoopIteration ScopeRecordType = "loop_iteration"
)

// ScopeRecord is one entry of a Frame's scope stack: it owns the set of
// variable names declared directly within it, destroyed together on
// scope exit. One record per lexical extent, walked and torn down in
// LIFO order.
type ScopeRecord struct {
	Type      ScopeRecordType
	LoopID    string
	Iteration int
	Depth     int
	Variables map[string]struct{}
}

func newScopeRecord(t ScopeRecordType) *ScopeRecord {
	return &ScopeRecord{Type: t, Variables: make(map[string]struct{})}
}

// declare registers name in the record and reports whether it was newly
// added (false if already present).
func (s *ScopeRecord) declare(name string) bool {
	if _, ok := s.Variables[name]; ok {
		return false
	}
	s.Variables[name] = struct{}{}
	return true
}

// destroyedSymbols returns the record's variable names in sorted order,
// so scope_exit steps list them deterministically.
func (s *ScopeRecord) destroyedSymbols() []string {
	names := maps.Keys(s.Variables)
	sort.Strings(names)
	return names
}

// PointerAlias records what a pointer variable currently refers to.
type PointerAlias struct {
	AliasOf        string
	AliasedAddress uint64
	IsHeap         bool
}

// Frame is one live function activation.
type Frame struct {
	FrameID        string
	FunctionName   string
	CallDepth      int
	ParentFrameID  string
	EntryCallIndex int

	ActiveLoops map[string]*activeLoopInfo

	declaredVariables map[string]struct{} // key: "{frameId}:{name}"
	PointerAliases    map[string]PointerAlias
	ScopeStack        []*ScopeRecord
}

type activeLoopInfo struct {
	Iterations int
}

func newFrame(id, functionName string, callDepth int, parentFrameID string, entryCallIndex int) *Frame {
	return &Frame{
		FrameID:           id,
		FunctionName:      functionName,
		CallDepth:         callDepth,
		ParentFrameID:     parentFrameID,
		EntryCallIndex:    entryCallIndex,
		ActiveLoops:       make(map[string]*activeLoopInfo),
		declaredVariables: make(map[string]struct{}),
		PointerAliases:    make(map[string]PointerAlias),
	}
}

// inheritAliasesFrom copies parent's pointer aliases into f. The callee
// gets its own map: rebinding a pointer parameter inside the callee must
// never alias back into the caller's view.
func (f *Frame) inheritAliasesFrom(parent *Frame) {
	if parent == nil {
		return
	}
	for name, alias := range parent.PointerAliases {
		f.PointerAliases[name] = alias
	}
}

// topScope returns the innermost live scope record, or nil if none.
func (f *Frame) topScope() *ScopeRecord {
	if len(f.ScopeStack) == 0 {
		return nil
	}
	return f.ScopeStack[len(f.ScopeStack)-1]
}

// pushScope pushes a new scope record and returns it.
func (f *Frame) pushScope(t ScopeRecordType) *ScopeRecord {
	rec := newScopeRecord(t)
	f.ScopeStack = append(f.ScopeStack, rec)
	return rec
}

// popScope pops and returns the innermost scope record, or nil if the
// stack was empty.
func (f *Frame) popScope() *ScopeRecord {
	if len(f.ScopeStack) == 0 {
		return nil
	}
	n := len(f.ScopeStack)
	rec := f.ScopeStack[n-1]
	f.ScopeStack = f.ScopeStack[:n-1]
	return rec
}

// declareKey returns the frame-scoped declaration key used for
// declaredVariables.
func (f *Frame) declareKey(name string) string {
	return f.FrameID + ":" + name
}

// tryDeclare registers name as declared in f if it wasn't already,
// reporting whether this was a new declaration.
func (f *Frame) tryDeclare(name string) bool {
	key := f.declareKey(name)
	if _, ok := f.declaredVariables[key]; ok {
		return false
	}
	f.declaredVariables[key] = struct{}{}
	return true
}

// allScopeVariables aggregates every variable name across every scope
// record still on f's scope stack, for the function-level scope_exit
// emitted at func_exit.
func (f *Frame) allScopeVariables() []string {
	set := make(map[string]struct{})
	for _, rec := range f.ScopeStack {
		for name := range rec.Variables {
			set[name] = struct{}{}
		}
	}
	names := maps.Keys(set)
	sort.Strings(names)
	return names
}
