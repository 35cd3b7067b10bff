package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKnownRecognisesCatalogueCaseInsensitively(t *testing.T) {
	assert.True(t, Known(Type("FUNC_ENTER")))
	assert.True(t, Known(FuncEnter))
	assert.True(t, Known(HeapWrite))
	assert.False(t, Known(Type("totally_made_up")))
}

func TestIsStructuralAllowedMatchesSpecAllowSet(t *testing.T) {
	for _, tp := range []Type{FuncEnter, FuncExit, Return, LoopStart, LoopEnd, LoopBodyStart,
		LoopIterationEnd, LoopCondition, ConditionEval, BranchTaken, ControlFlow,
		BlockEnter, BlockExit, HeapAlloc, HeapFree} {
		assert.Truef(t, IsStructuralAllowed(tp), "expected %s to be structurally allowed", tp)
	}
	for _, tp := range []Type{Declare, Assign, ArgBind, ExpressionEval, ArrayCreate,
		ArrayIndexAssign, PointerAlias, PointerDerefWrite, HeapWrite} {
		assert.Falsef(t, IsStructuralAllowed(tp), "expected %s to NOT be structurally allowed", tp)
	}
}

func TestIsUnresolvedAllowedIsMinimal(t *testing.T) {
	assert.True(t, IsUnresolvedAllowed(HeapAlloc))
	assert.True(t, IsUnresolvedAllowed(HeapFree))
	assert.False(t, IsUnresolvedAllowed(Declare))
	assert.False(t, IsUnresolvedAllowed(FuncEnter))
}

func TestValueStringUnwrapsJSONString(t *testing.T) {
	r := Raw{Value: []byte(`"7"`)}
	assert.Equal(t, "7", r.ValueString())

	r2 := Raw{Value: []byte(`42`)}
	assert.Equal(t, "42", r2.ValueString())

	r3 := Raw{}
	assert.Equal(t, "", r3.ValueString())
}

func TestDocumentValidateRejectsZeroEvents(t *testing.T) {
	var d Document
	err := d.Validate()
	require.Error(t, err)
	assert.IsType(t, ErrInstrumentationInactive{}, err)

	d2 := Document{Events: []Raw{{Type: FuncEnter}}}
	assert.NoError(t, d2.Validate())
}

func TestNormalizedFunctionNameTrimsTrailingCRAndWhitespace(t *testing.T) {
	assert.Equal(t, "main", NormalizedFunctionName("main\r"))
	assert.Equal(t, "main", NormalizedFunctionName("  main  "))
	assert.Equal(t, "foo", NormalizedFunctionName("foo\r\n"))
}
