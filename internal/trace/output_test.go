package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderTextSubstitutesKnownEscapesInOrder(t *testing.T) {
	rendered, infos := renderText(`a\nb\tc\\d`)
	assert.Equal(t, "a\nb\tc\\d", rendered)
	wantEscapes := []string{`\n`, `\t`, `\\`}
	assert.Len(t, infos, 3)
	for i, e := range wantEscapes {
		assert.Equal(t, e, infos[i].Escape)
	}
}

func TestRenderTextLeavesUnrecognisedSequencesAlone(t *testing.T) {
	rendered, infos := renderText(`no escapes here`)
	assert.Equal(t, "no escapes here", rendered)
	assert.Empty(t, infos)
}

func TestRenderTextHandlesBackToBackEscapes(t *testing.T) {
	rendered, infos := renderText(`\n\n`)
	assert.Equal(t, "\n\n", rendered)
	assert.Len(t, infos, 2)
}

func TestOutputUnitsPrefersChunksOverCombined(t *testing.T) {
	units := outputUnits(CapturedStdout{
		Chunks:   []string{"one", "two"},
		Combined: "ignored",
	})
	assert.Equal(t, []string{"one", "two"}, units)
}

func TestOutputUnitsSplitsCombinedIntoLines(t *testing.T) {
	units := outputUnits(CapturedStdout{Combined: "line1\nline2\nline3\n"})
	assert.Equal(t, []string{"line1", "line2", "line3"}, units)
}

func TestOutputUnitsNormalisesCRLF(t *testing.T) {
	units := outputUnits(CapturedStdout{Combined: "a\r\nb\rc\n"})
	assert.Equal(t, []string{"a", "b", "c"}, units)
}

func TestOutputUnitsKeepsBlankLines(t *testing.T) {
	units := outputUnits(CapturedStdout{Combined: "a\n\nb\n"})
	assert.Equal(t, []string{"a", "", "b"}, units)
}

func TestOutputUnitsEmptyCapturedStdoutYieldsNothing(t *testing.T) {
	assert.Nil(t, outputUnits(CapturedStdout{}))
}

func TestAppendOutputStepsEmitsOneStepPerChunkWithEscapeMetadata(t *testing.T) {
	c := &Converter{em: newEmitter(), frameCounts: map[string]int{}}
	c.appendOutputSteps(CapturedStdout{Chunks: []string{`x=1\n`, "plain"}})

	assert.Len(t, c.em.steps, 2)
	assert.Equal(t, "output", c.em.steps[0].EventType)
	assert.Equal(t, "x=1\n", c.em.steps[0].Text)
	assert.Equal(t, `x=1\n`, c.em.steps[0].RawText)
	assert.Len(t, c.em.steps[0].EscapeInfo, 1)

	assert.Equal(t, "output", c.em.steps[1].EventType)
	assert.Equal(t, "plain", c.em.steps[1].Text)
	assert.Empty(t, c.em.steps[1].EscapeInfo)
}
