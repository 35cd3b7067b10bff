package dapexport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracekit/itre/internal/trace"
)

func sampleSteps() trace.Steps {
	return trace.Steps{
		{StepIndex: 0, EventType: "program_start"},
		{StepIndex: 1, EventType: "func_enter", FrameID: "main-0", Function: "main", File: "main.cpp", Line: 1},
		{StepIndex: 2, EventType: "var_declare", FrameID: "main-0", Symbol: "x", Value: "0", Line: 2},
		{StepIndex: 3, EventType: "var_assign", FrameID: "main-0", Symbol: "x", Value: "7", Line: 3},
		{StepIndex: 4, EventType: "func_enter", FrameID: "helper-0", Function: "helper", File: "main.cpp", Line: 10, ParentFrameID: "main-0"},
		{StepIndex: 5, EventType: "var_declare", FrameID: "helper-0", Symbol: "y", Value: "1", Line: 11},
		{StepIndex: 6, EventType: "func_exit", FrameID: "helper-0", Function: "helper", Line: 12},
		{StepIndex: 7, EventType: "var_assign", FrameID: "main-0", Symbol: "x", Value: "9", Line: 4},
		{StepIndex: 8, EventType: "func_exit", FrameID: "main-0", Function: "main"},
		{StepIndex: 9, EventType: "program_end"},
	}
}

func TestStackTraceInnermostFirst(t *testing.T) {
	e := New(sampleSteps())

	// At index 5, helper is still open, nested under main.
	frames := e.StackTrace(5)
	require.Len(t, frames, 2)
	assert.Equal(t, "helper", frames[0].Name)
	assert.Equal(t, "main", frames[1].Name)
	assert.Equal(t, 11, frames[0].Line)
}

func TestStackTraceAfterReturnOnlyShowsMain(t *testing.T) {
	e := New(sampleSteps())

	frames := e.StackTrace(7)
	require.Len(t, frames, 1)
	assert.Equal(t, "main", frames[0].Name)
}

func TestStackTraceIdsAreStableAcrossCalls(t *testing.T) {
	e := New(sampleSteps())

	first := e.StackTrace(5)
	second := e.StackTrace(5)
	require.Len(t, first, 2)
	require.Len(t, second, 2)
	assert.Equal(t, first[0].Id, second[0].Id)
	assert.Equal(t, first[1].Id, second[1].Id)
	assert.NotEqual(t, first[0].Id, first[1].Id)
}

func TestScopesResolvesBackToTheSameFrame(t *testing.T) {
	e := New(sampleSteps())
	frames := e.StackTrace(5)
	require.Len(t, frames, 2)

	scopes := e.Scopes(frames[0].Id)
	require.Len(t, scopes, 1)
	assert.Equal(t, "Locals", scopes[0].Name)
	assert.NotEqual(t, frames[0].Id, scopes[0].VariablesReference)

	vars := e.Variables(scopes[0].VariablesReference)
	require.Len(t, vars, 1)
	assert.Equal(t, "y", vars[0].Name, "the scope reference must resolve to helper's frame")
}

func TestScopesWithUnknownFrameRefReturnsNil(t *testing.T) {
	e := New(sampleSteps())
	assert.Nil(t, e.Scopes(999999))
}

func TestVariablesReturnsLastKnownValuePerSymbolSortedByName(t *testing.T) {
	e := New(sampleSteps())
	frames := e.StackTrace(7)
	require.Len(t, frames, 1)

	scopes := e.Scopes(frames[0].Id)
	require.Len(t, scopes, 1)

	vars := e.Variables(scopes[0].VariablesReference)
	require.Len(t, vars, 1)
	assert.Equal(t, "x", vars[0].Name)
	assert.Equal(t, "9", vars[0].Value, "the last assignment to x must win")
}

func TestVariablesWithUnknownRefReturnsNil(t *testing.T) {
	e := New(sampleSteps())
	assert.Nil(t, e.Variables(999999))
}

func TestVariablesScopedToDistinctFramesDoNotLeak(t *testing.T) {
	e := New(sampleSteps())

	mainFrames := e.StackTrace(2)
	require.Len(t, mainFrames, 1)
	mainScopes := e.Scopes(mainFrames[0].Id)
	mainVars := e.Variables(mainScopes[0].VariablesReference)
	require.Len(t, mainVars, 1)
	assert.Equal(t, "x", mainVars[0].Name)

	helperFrames := e.StackTrace(5)
	require.Len(t, helperFrames, 2)
	helperScopes := e.Scopes(helperFrames[0].Id)
	helperVars := e.Variables(helperScopes[0].VariablesReference)
	require.Len(t, helperVars, 1)
	assert.Equal(t, "y", helperVars[0].Name)
}
