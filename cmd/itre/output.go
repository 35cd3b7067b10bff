package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/tracekit/itre/internal/dapexport"
	"github.com/tracekit/itre/internal/trace"
)

// writeSteps renders steps to w in the requested format.
func writeSteps(w io.Writer, format string, steps trace.Steps) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(steps)
	case "dap":
		return writeDAP(w, steps)
	default:
		return writeText(w, steps)
	}
}

// writeDAP exports the full stack trace and variable set at the final
// step, the shape a DAP front end asks for once execution has paused.
func writeDAP(w io.Writer, steps trace.Steps) error {
	exp := dapexport.New(steps)
	atIndex := len(steps) - 1
	doc := struct {
		StackFrames []any `json:"stackFrames"`
	}{}
	frames := exp.StackTrace(atIndex)
	doc.StackFrames = make([]any, len(frames))
	for i, f := range frames {
		scopes := exp.Scopes(f.Id)
		vars := map[string]any{}
		if len(scopes) > 0 {
			vars["variables"] = exp.Variables(scopes[0].VariablesReference)
		}
		doc.StackFrames[i] = map[string]any{
			"frame":  f,
			"scopes": scopes,
			"locals": vars,
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func writeText(w io.Writer, steps trace.Steps) error {
	colored := false
	if f, ok := w.(*os.File); ok {
		w = colorable.NewColorable(f)
		colored = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	for _, s := range steps {
		indent := "  "
		for d := 0; d < s.CallDepth; d++ {
			indent += "  "
		}
		if colored {
			fmt.Fprintf(w, "\x1b[90m%4d\x1b[0m %s\x1b[36m%-20s\x1b[0m %s\n", s.StepIndex, indent, s.EventType, s.Explanation)
		} else {
			fmt.Fprintf(w, "%4d %s%-20s %s\n", s.StepIndex, indent, s.EventType, s.Explanation)
		}
	}
	return nil
}
