package trace

import (
	"fmt"

	"github.com/tracekit/itre/internal/event"
	"github.com/tracekit/itre/internal/itrelog"
)

// --- func_enter / func_exit ---

func (c *Converter) onFuncEnter(raw event.Raw, fn, file string, line int) {
	name := event.NormalizedFunctionName(fn)
	if name == "" {
		name = event.NormalizedFunctionName(raw.Func)
	}

	if !c.mainAbsorbed && name == "main" && len(c.frames) == 1 && c.frames[0].FunctionName == "main" {
		// The synthetic main frame pushed before the event loop already
		// accounts for this call; absorb the redundant raw func_enter
		// rather than pushing a second main frame.
		c.mainAbsorbed = true
		return
	}

	parent := c.topFrame()
	ordinal := c.frameCounts[name]
	c.frameCounts[name] = ordinal + 1
	frameID := fmt.Sprintf("%s-%d", name, ordinal)

	callDepth := 0
	parentFrameID := ""
	if parent != nil {
		callDepth = parent.CallDepth + 1
		parentFrameID = parent.FrameID
	}

	f := newFrame(frameID, name, callDepth, parentFrameID, c.globalCallIdx)
	c.globalCallIdx++
	f.inheritAliasesFrom(parent)
	f.pushScope(ScopeRecordFunction)
	c.frames = append(c.frames, f)
	c.tracked.Add(name)

	c.push(c.stampFrame(Step{
		EventType:   "func_enter",
		Scope:       ScopeFunction,
		Line:        line,
		File:        renderFile(file),
		Function:    name,
		Symbol:      name,
		Explanation: fmt.Sprintf("Entered function %s.", name),
	}), true)
}

func (c *Converter) onFuncExit(file string, line int) {
	if len(c.frames) == 0 {
		itrelog.Frame().Warn("FrameUnderflow: func_exit with empty frame stack, dropping event")
		return
	}
	if len(c.frames) == 1 {
		// The outermost (main) frame's exit is always synthesised at
		// end-of-stream, after captured stdout is appended: a func_exit
		// event that targets it is absorbed here exactly as its
		// func_enter was, so closeMainIfOpen emits the matching
		// func_exit once output steps are in place.
		return
	}
	n := len(c.frames)
	f := c.frames[n-1]
	c.frames = c.frames[:n-1]

	c.emitFunctionScopeExit(f)

	c.push(c.stampFrameFor(Step{
		EventType:   "func_exit",
		Scope:       ScopeFunction,
		Line:        line,
		File:        renderFile(file),
		Function:    f.FunctionName,
		Symbol:      f.FunctionName,
		Explanation: fmt.Sprintf("Exited function %s.", f.FunctionName),
	}, frameMetaOf(f)), true)
}

// emitFunctionScopeExit aggregates all variables across f's scope stack
// and, if non-empty, emits one function-level scope_exit step.
func (c *Converter) emitFunctionScopeExit(f *Frame) {
	names := f.allScopeVariables()
	if len(names) == 0 {
		return
	}
	c.push(c.stampFrameFor(Step{
		EventType:        "scope_exit",
		Scope:            ScopeFunction,
		ScopeType:        "function",
		Function:         f.FunctionName,
		DestroyedSymbols: names,
		Explanation:      fmt.Sprintf("Exiting function %s, destroying %d variable(s).", f.FunctionName, len(names)),
	}, frameMetaOf(f)), true)
}

func frameMetaOf(f *Frame) FrameMetadata {
	return FrameMetadata{FrameID: f.FrameID, CallDepth: f.CallDepth, CallIndex: f.EntryCallIndex, ParentFrameID: f.ParentFrameID}
}

func (c *Converter) stampFrameFor(s Step, m FrameMetadata) Step {
	s.FrameID = m.FrameID
	s.CallDepth = m.CallDepth
	s.CallIndex = m.CallIndex
	s.ParentFrameID = m.ParentFrameID
	if s.Function == "" {
		s.Function = m.FrameID
	}
	return s
}

// closeMainIfOpen synthesises main's scope_exit/func_exit at end of
// stream if it is still open. Any function frame left on the stack
// above main (an unbalanced func_enter with no matching func_exit) is
// abandoned rather than synthetically closed: only main's closure is
// ever synthesised.
func (c *Converter) closeMainIfOpen() {
	if len(c.frames) == 0 {
		return
	}
	f := c.frames[0]
	c.frames = nil
	if f.FunctionName != "main" {
		return
	}
	c.emitFunctionScopeExit(f)
	c.push(c.stampFrameFor(Step{
		EventType:   "func_exit",
		Scope:       ScopeFunction,
		Function:    f.FunctionName,
		Symbol:      f.FunctionName,
		Explanation: fmt.Sprintf("Exited function %s.", f.FunctionName),
	}, frameMetaOf(f)), true)
}

// --- block scope ---

func (c *Converter) onBlockEnter(raw event.Raw, file string, line int) {
	f := c.topFrame()
	if f == nil {
		return
	}
	rec := f.pushScope(ScopeRecordBlock)
	rec.Depth = raw.BlockDepth
	c.push(c.stampFrame(Step{
		EventType:   "block_enter",
		Scope:       ScopeBlock,
		Line:        line,
		File:        renderFile(file),
		Explanation: "Entered block scope.",
	}), true)
}

func (c *Converter) onBlockExit(file string, line int) {
	f := c.topFrame()
	if f == nil {
		return
	}
	if top := f.topScope(); top != nil && top.Type == ScopeRecordBlock {
		rec := f.popScope()
		if len(rec.Variables) > 0 {
			c.push(c.stampFrame(Step{
				EventType:        "scope_exit",
				Scope:            ScopeBlock,
				ScopeType:        "block",
				DestroyedSymbols: rec.destroyedSymbols(),
				Explanation:      "Exiting block scope.",
			}), true)
		}
	}
	c.push(c.stampFrame(Step{
		EventType:   "block_exit",
		Scope:       ScopeBlock,
		Line:        line,
		File:        renderFile(file),
		Explanation: "Exited block scope.",
	}), true)
}

// --- declare / assign ---

func (c *Converter) onDeclare(raw event.Raw, file string, line int) {
	f := c.topFrame()
	if f == nil {
		return
	}
	if !f.tryDeclare(raw.Name) {
		return // idempotent: already declared
	}
	if rec := f.topScope(); rec != nil {
		rec.declare(raw.Name)
	}
	if raw.Addr != 0 {
		c.addrToName[raw.Addr] = raw.Name
		c.addrToFrame[raw.Addr] = f.FrameID
	}
	c.push(c.stampFrame(Step{
		EventType:   "var_declare",
		Scope:       c.currentScopeKind(),
		Line:        line,
		File:        renderFile(file),
		Symbol:      raw.Name,
		Value:       raw.ValueString(),
		Explanation: fmt.Sprintf("Declared variable %s.", raw.Name),
	}), false)
}

func (c *Converter) onAssign(raw event.Raw, file string, line int) {
	c.push(c.stampFrame(Step{
		EventType:   "var_assign",
		Scope:       c.currentScopeKind(),
		Line:        line,
		File:        renderFile(file),
		Symbol:      raw.Name,
		Value:       raw.ValueString(),
		Explanation: fmt.Sprintf("Assigned %s = %s.", raw.Name, raw.ValueString()),
	}), false)
}

// --- pointers ---

func (c *Converter) onPointerAlias(raw event.Raw, file string, line int) {
	f := c.topFrame()
	if f == nil {
		return
	}
	alias := PointerAlias{AliasOf: raw.AliasOf, AliasedAddress: raw.AliasedAddress, IsHeap: raw.IsHeap}
	f.PointerAliases[raw.PointerName] = alias
	if rec := f.topScope(); rec != nil {
		rec.declare(raw.PointerName)
	}
	if raw.AliasedAddress != 0 {
		c.addrToFrame[raw.AliasedAddress] = f.FrameID
	}

	region := "stack"
	if raw.IsHeap {
		region = "heap"
	}
	c.push(c.stampFrame(Step{
		EventType: "pointer_alias",
		Scope:     c.currentScopeKind(),
		Line:      line,
		File:      renderFile(file),
		Symbol:    raw.PointerName,
		PointsTo: &PointsTo{
			Region:  region,
			Target:  raw.AliasOf,
			Address: raw.AliasedAddress,
		},
		Explanation: fmt.Sprintf("%s now points to %s.", raw.PointerName, raw.AliasOf),
	}), false)
}

func (c *Converter) onPointerDerefWrite(raw event.Raw, file string, line int) {
	frameIdx := len(c.frames) - 1
	if frameIdx < 0 {
		return
	}
	value := raw.ValueString()

	target := c.resolvePointerByValue(frameIdx, raw.PointerName)

	c.push(c.stampFrame(Step{
		EventType:   "pointer_deref_write",
		Scope:       c.currentScopeKind(),
		Line:        line,
		File:        renderFile(file),
		Symbol:      raw.PointerName,
		Value:       value,
		WritesTo:    derefTargetName(target),
		Explanation: fmt.Sprintf("*%s = %s", raw.PointerName, value),
	}), false)

	if target != nil && target.Region == "stack" && target.Target != "" {
		c.push(c.stampFrame(Step{
			EventType:   "var_assign",
			Scope:       c.currentScopeKind(),
			Line:        line,
			File:        renderFile(file),
			Symbol:      target.Target,
			Value:       value,
			Explanation: fmt.Sprintf("Assigned %s = %s (via *%s).", target.Target, value, raw.PointerName),
		}), false)
	}
}

func derefTargetName(p *PointsTo) string {
	if p == nil {
		return ""
	}
	return p.Target
}

// resolvePointerByValue walks outward through frames (innermost first)
// starting at frames[startIdx], following aliasedAddress -> name chains,
// recursing through pointer-to-pointer indirection so double
// indirection lands on the final destination, with cycle detection by
// pointer name.
func (c *Converter) resolvePointerByValue(startIdx int, pointerName string) *PointsTo {
	visited := make(map[string]bool)
	name := pointerName
	for {
		if visited[name] {
			return nil
		}
		visited[name] = true

		alias, ok := c.findAliasOutward(startIdx, name)
		if !ok {
			return nil
		}
		targetName, ok := c.addrToName[alias.AliasedAddress]
		if !ok || targetName == "" {
			return nil
		}
		if _, isPtr := c.findAliasOutward(startIdx, targetName); isPtr {
			name = targetName
			continue
		}
		region := "stack"
		if alias.IsHeap {
			region = "heap"
		}
		return &PointsTo{Region: region, Target: targetName, Address: alias.AliasedAddress}
	}
}

func (c *Converter) findAliasOutward(startIdx int, name string) (PointerAlias, bool) {
	for i := startIdx; i >= 0; i-- {
		if a, ok := c.frames[i].PointerAliases[name]; ok {
			return a, true
		}
	}
	return PointerAlias{}, false
}

// --- arrays & heap ---

func (c *Converter) onArrayCreate(raw event.Raw, file string, line int) {
	f := c.topFrame()
	if f != nil {
		if rec := f.topScope(); rec != nil {
			rec.declare(raw.Name)
		}
		if raw.Addr != 0 {
			c.addrToName[raw.Addr] = raw.Name
			c.addrToFrame[raw.Addr] = f.FrameID
		}
	}
	c.push(c.stampFrame(Step{
		EventType:    "array_create",
		Scope:        c.currentScopeKind(),
		Line:         line,
		File:         renderFile(file),
		Symbol:       raw.Name,
		MemoryRegion: "stack",
		Size:         raw.Size,
		Dimensions:   raw.Dimensions,
		Explanation:  fmt.Sprintf("Created array %s.", raw.Name),
	}), false)
}

func (c *Converter) onArrayIndexAssign(raw event.Raw, file string, line int) {
	c.push(c.stampFrame(Step{
		EventType:   "array_index_assign",
		Scope:       c.currentScopeKind(),
		Line:        line,
		File:        renderFile(file),
		Symbol:      raw.Name,
		Indices:     raw.Indices,
		Value:       raw.ValueString(),
		Explanation: fmt.Sprintf("Assigned %s[...] = %s.", raw.Name, raw.ValueString()),
	}), false)
}

func (c *Converter) onHeapAlloc(raw event.Raw, file string, line int) {
	f := c.topFrame()
	if f != nil && raw.Addr != 0 {
		c.addrToName[raw.Addr] = raw.Name
		c.addrToFrame[raw.Addr] = f.FrameID
	}
	c.emitHeap(raw, "heap_alloc", file, line)
}

func (c *Converter) emitHeap(raw event.Raw, eventType, file string, line int) {
	c.push(c.stampFrame(Step{
		EventType:    eventType,
		Scope:        c.currentScopeKind(),
		Line:         line,
		File:         renderFile(file),
		Symbol:       raw.Name,
		Size:         raw.Size,
		IsHeap:       true,
		MemoryRegion: "heap",
		Value:        raw.ValueString(),
		Explanation:  fmt.Sprintf("%s for %s.", eventType, raw.Name),
	}), event.IsStructuralAllowed(normalizeType(raw.Type)))
}
