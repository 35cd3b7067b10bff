package trace

import (
	"fmt"
	"strings"
)

// escapeTable is the small ordered table of recognised display escapes.
var escapeTable = []struct {
	escape   string
	meaning  string
	rendered string
}{
	{`\n`, "newline", "\n"},
	{`\t`, "tab", "\t"},
	{`\r`, "carriage return", "\r"},
	{`\f`, "form feed", "\f"},
	{`\b`, "backspace", "\b"},
	{`\\`, "backslash", `\`},
}

// renderText scans raw for recognised escapes (as literal two-character
// sequences, the form in which instrumented stdout capture represents
// them), substituting the rendered form and recording metadata for each
// occurrence found, in order.
func renderText(raw string) (rendered string, infos []EscapeInfo) {
	var b strings.Builder
	i := 0
	for i < len(raw) {
		matched := false
		for _, e := range escapeTable {
			if strings.HasPrefix(raw[i:], e.escape) {
				b.WriteString(e.rendered)
				infos = append(infos, EscapeInfo{Escape: e.escape, Meaning: e.meaning, Rendered: e.rendered})
				i += len(e.escape)
				matched = true
				break
			}
		}
		if !matched {
			b.WriteByte(raw[i])
			i++
		}
	}
	return b.String(), infos
}

// CapturedStdout is the instrumented program's captured standard
// output. Exactly one of Chunks or Combined should be set.
type CapturedStdout struct {
	Chunks     []string
	Timestamps []int64 // optional, same length as Chunks
	Combined   string
}

// outputUnits splits captured stdout into the ordered sequence of
// rendering units that become output steps: one per
// chunk when chunked capture with ordering is available, otherwise one
// per platform-normalised line (blank lines preserved).
func outputUnits(c CapturedStdout) []string {
	if len(c.Chunks) > 0 {
		return c.Chunks
	}
	if c.Combined == "" {
		return nil
	}
	normalized := strings.ReplaceAll(c.Combined, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	lines := strings.Split(normalized, "\n")
	// A trailing empty element from a final newline is not a distinct
	// output line.
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// appendOutputSteps emits one "output" step per captured stdout unit,
// run through renderText so escape sequences are both human-readable
// and recorded in full. Called once, after every raw
// event has been consumed and every loop has been flushed.
func (c *Converter) appendOutputSteps(stdout CapturedStdout) {
	for _, raw := range outputUnits(stdout) {
		rendered, infos := renderText(raw)
		c.push(c.stampFrame(Step{
			EventType:   "output",
			Scope:       ScopeGlobal,
			Text:        rendered,
			RawText:     raw,
			EscapeInfo:  infos,
			Explanation: fmt.Sprintf("Program printed %q.", rendered),
		}), true)
	}
}
