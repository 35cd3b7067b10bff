// Package location holds the symbol-resolution result type shared
// between the resolver and the rest of the pipeline.
package location

// Location is a resolved (function, file, line) triple.
type Location struct {
	Function string
	File     string
	Line     int
}

// Unresolved is the "no symbol information" marker returned by the
// resolver when it cannot symbolize an address: a Location whose
// function and file are "??" and whose line is 0. IsUnresolved reports
// true for it and equally for any other Location lacking a usable file
// or line, so the two are not told apart.
var Unresolved = Location{Function: "??", File: "??", Line: 0}

// IsUnresolved reports whether loc carries no usable symbol information,
// using the same predicate the Classifier applies to resolver output and
// to events that already embed file/line.
func (l Location) IsUnresolved() bool {
	return l.Line == 0 || l.File == "" || l.File == "??" || l.File == "unknown"
}
