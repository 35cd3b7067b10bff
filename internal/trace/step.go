// Package trace implements the Scope & Frame Tracker, Loop Summariser
// and Step Emitter, and ties them together in Convert.
package trace

// Scope enumerates a step's lexical scope.
type Scope string

const (
	ScopeGlobal   Scope = "global"
	ScopeFunction Scope = "function"
	ScopeBlock    Scope = "block"
)

// PointsTo describes the target of a pointer_alias step.
type PointsTo struct {
	Region  string `json:"region"` // "heap" or "stack"
	Target  string `json:"target"`
	Address uint64 `json:"address"`
}

// EscapeInfo records one recognised escape sequence found while
// rendering captured stdout.
type EscapeInfo struct {
	Escape   string `json:"escape"`
	Meaning  string `json:"meaning"`
	Rendered string `json:"rendered"`
}

// Step is one emitted record of the output sequence.
type Step struct {
	StepIndex         int    `json:"stepIndex"`
	InternalStepIndex *int   `json:"internalStepIndex,omitempty"`
	EventType         string `json:"eventType"`
	Line              int    `json:"line"`
	Function          string `json:"function"`
	Scope             Scope  `json:"scope"`
	File              string `json:"file"`
	Timestamp         int64  `json:"timestamp"`
	Explanation       string `json:"explanation"`
	InternalEvents    []Step `json:"internalEvents"`

	FrameID       string `json:"frameId"`
	CallDepth     int    `json:"callDepth"`
	CallIndex     int    `json:"callIndex"`
	ParentFrameID string `json:"parentFrameId,omitempty"`

	// Type-specific payload.
	Symbol           string       `json:"symbol,omitempty"`
	Value            string       `json:"value,omitempty"`
	LoopID           string       `json:"loopId,omitempty"`
	Iteration        int          `json:"iteration,omitempty"`
	DestroyedSymbols []string     `json:"destroyedSymbols,omitempty"`
	ScopeType        string       `json:"scopeType,omitempty"`
	Events           []Step       `json:"events,omitempty"`
	PointsTo         *PointsTo    `json:"pointsTo,omitempty"`
	MemoryRegion     string       `json:"memoryRegion,omitempty"`
	Text             string       `json:"text,omitempty"`
	RawText          string       `json:"rawText,omitempty"`
	EscapeInfo       []EscapeInfo `json:"escapeInfo,omitempty"`
	PauseExecution   bool         `json:"pauseExecution,omitempty"`
	InputVariables   []string     `json:"variables,omitempty"`
	InputType        string       `json:"inputType,omitempty"`
	InputFormat      string       `json:"format,omitempty"`
	InputPrompt      string       `json:"prompt,omitempty"`
	Indices          []int        `json:"indices,omitempty"`
	Dimensions       []int        `json:"dimensions,omitempty"`
	Size             uint64       `json:"size,omitempty"`
	IsHeap           bool         `json:"isHeap,omitempty"`
	WritesTo         string       `json:"writesTo,omitempty"`
}

// Steps is the full, renumbered output sequence.
type Steps []Step

// TrackedFunctions collects, as an output parameter of Convert, every
// function named in a func_enter event, plus "main".
type TrackedFunctions map[string]struct{}

// NewTrackedFunctions returns an empty set.
func NewTrackedFunctions() TrackedFunctions { return make(TrackedFunctions) }

// Add registers name in the set.
func (t TrackedFunctions) Add(name string) { t[name] = struct{}{} }

// Has reports whether name is in the set.
func (t TrackedFunctions) Has(name string) bool {
	_, ok := t[name]
	return ok
}
