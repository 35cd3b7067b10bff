package trace

import (
	"fmt"

	"github.com/tracekit/itre/internal/event"
	"github.com/tracekit/itre/internal/itrelog"
)

// --- loop lifecycle ---

func (c *Converter) onLoopStart(raw event.Raw, fn, file string, line int) {
	snap := c.frameMetadata()
	ctx := newLoopContext(raw.LoopID, fn, line, file, snap)
	c.loops.push(ctx)
	if f := c.topFrame(); f != nil {
		f.ActiveLoops[raw.LoopID] = &activeLoopInfo{}
	}
	c.push(c.stampFrame(Step{
		EventType:   "loop_start",
		Scope:       c.currentScopeKind(),
		Line:        line,
		File:        renderFile(file),
		LoopID:      raw.LoopID,
		Explanation: "Loop started.",
	}), true)
}

func (c *Converter) onLoopBodyStart(raw event.Raw, file string, line int) {
	top := c.loops.top()
	if top == nil || top.LoopID != raw.LoopID {
		itrelog.Loop().WithField("loopId", raw.LoopID).Warn("LoopNestingViolation: loop_body_start does not match top of loop stack, dropping")
		return
	}
	top.IterationCount++
	c.iterations.push(raw.LoopID)
	if f := c.topFrame(); f != nil {
		if info, ok := f.ActiveLoops[raw.LoopID]; ok {
			info.Iterations++
		}
		rec := f.pushScope(ScopeRecordLoopIteration)
		rec.LoopID = raw.LoopID
		rec.Iteration = top.IterationCount
	}
	c.push(c.stampFrame(Step{
		EventType:   "loop_body_start",
		Scope:       c.currentScopeKind(),
		Line:        line,
		File:        renderFile(file),
		LoopID:      raw.LoopID,
		Iteration:   top.IterationCount,
		Explanation: fmt.Sprintf("Starting iteration %d.", top.IterationCount),
	}), true)
}

func (c *Converter) onLoopIterationEnd(raw event.Raw, file string, line int) {
	top := c.loops.top()
	itTop, itOk := c.iterations.top()
	if top == nil || top.LoopID != raw.LoopID || !itOk || itTop != raw.LoopID {
		// Deliberately no repair/rewind of the iteration stack here,
		// even though a mismatch can leave it inconsistent: heuristic
		// recovery would corrupt nesting for the rest of the trace.
		itrelog.Loop().WithField("loopId", raw.LoopID).Warn("LoopNestingViolation: loop_iteration_end does not match top of loop/iteration stack, dropping")
		return
	}
	c.iterations.pop()

	iteration := top.IterationCount
	if f := c.topFrame(); f != nil {
		if rec := f.topScope(); rec != nil && rec.Type == ScopeRecordLoopIteration && rec.LoopID == raw.LoopID {
			popped := f.popScope()
			iteration = popped.Iteration
			if len(popped.Variables) > 0 {
				c.push(c.stampFrame(Step{
					EventType:        "scope_exit",
					Scope:            c.currentScopeKind(),
					ScopeType:        "loop_iteration",
					LoopID:           raw.LoopID,
					Iteration:        popped.Iteration,
					DestroyedSymbols: popped.destroyedSymbols(),
					Explanation:      fmt.Sprintf("Exiting loop iteration %d.", popped.Iteration),
				}), true)
			}
		}
	}

	c.push(c.stampFrame(Step{
		EventType:   "loop_iteration_end",
		Scope:       c.currentScopeKind(),
		Line:        line,
		File:        renderFile(file),
		LoopID:      raw.LoopID,
		Iteration:   iteration,
		Explanation: fmt.Sprintf("Finished iteration %d.", iteration),
	}), true)
}

func (c *Converter) onLoopEnd(raw event.Raw, file string, line int) {
	top := c.loops.top()
	if top == nil || top.LoopID != raw.LoopID {
		itrelog.Loop().WithField("loopId", raw.LoopID).Warn("LoopNestingViolation: loop_end does not match top of loop stack, dropping")
		return
	}
	c.loops.pop()
	if f := c.topFrame(); f != nil {
		delete(f.ActiveLoops, raw.LoopID)
	}

	c.flushLoopSummary(top)

	c.push(c.stampFrame(Step{
		EventType:   "loop_end",
		Scope:       c.currentScopeKind(),
		Line:        line,
		File:        renderFile(file),
		LoopID:      raw.LoopID,
		Iteration:   top.IterationCount,
		Explanation: "Loop ended.",
	}), true)
}

// flushLoopSummary collapses ctx's buffered steps into a single
// loop_body_summary step and routes it through the normal (non-
// structural) push path, so that a loop nested inside another loop
// collapses into the *enclosing* loop's buffer in place, rather than
// escaping to the global sequence.
func (c *Converter) flushLoopSummary(ctx *loopContext) {
	events := make([]Step, 0, len(ctx.buffer))
	for i, s := range ctx.buffer {
		idx := i
		s.InternalStepIndex = &idx
		s.StepIndex = 0
		events = append(events, s)
	}

	summary := Step{
		EventType:     "loop_body_summary",
		Scope:         ScopeFunction,
		Line:          ctx.StartLine,
		File:          renderFile(ctx.StartFile),
		Function:      ctx.FunctionName,
		LoopID:        ctx.LoopID,
		Iteration:     ctx.IterationCount,
		Events:        events,
		FrameID:       ctx.FrameSnapshot.FrameID,
		CallDepth:     ctx.FrameSnapshot.CallDepth,
		CallIndex:     ctx.FrameSnapshot.CallIndex,
		ParentFrameID: ctx.FrameSnapshot.ParentFrameID,
		Explanation:   fmt.Sprintf("Collapsed %d buffered event(s) across %d iteration(s) of loop %s.", len(events), ctx.IterationCount, ctx.LoopID),
	}
	c.push(summary, false)
}

// flushOrphanLoops closes out any loops still open at end-of-stream, so
// no buffered step is ever lost. Every loopId must end up with exactly
// one loop_end, so a synthetic loop_end step is emitted here alongside
// each summary.
func (c *Converter) flushOrphanLoops() {
	for !c.loops.empty() {
		ctx := c.loops.pop()
		if f := c.topFrame(); f != nil {
			delete(f.ActiveLoops, ctx.LoopID)
		}
		c.flushLoopSummary(ctx)
		c.push(Step{
			EventType:     "loop_end",
			Scope:         ScopeFunction,
			Line:          ctx.StartLine,
			File:          renderFile(ctx.StartFile),
			Function:      ctx.FunctionName,
			LoopID:        ctx.LoopID,
			Iteration:     ctx.IterationCount,
			FrameID:       ctx.FrameSnapshot.FrameID,
			CallDepth:     ctx.FrameSnapshot.CallDepth,
			CallIndex:     ctx.FrameSnapshot.CallIndex,
			ParentFrameID: ctx.FrameSnapshot.ParentFrameID,
			Explanation:   "Loop ended (orphan flush).",
		}, true)
	}
}
