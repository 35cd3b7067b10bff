// Package classify implements the Event Classifier & Filter component:
// deciding whether a resolved raw event is structural noise-tolerant,
// user source, or toolchain/stdlib noise.
package classify

import (
	"strings"

	"github.com/derekparker/trie"

	"github.com/tracekit/itre/internal/config"
	"github.com/tracekit/itre/internal/event"
	"github.com/tracekit/itre/internal/location"
)

// Decision is the classifier's verdict for one event.
type Decision int

const (
	Drop Decision = iota
	Keep
	KeepAsStructural
)

// Classifier applies the ordered keep/drop rules that separate user
// source events from toolchain and standard-library noise. The
// function-name prefix tests (the internal-prefix rule and the
// stricter noise check) are backed by a trie so that large,
// operator-configurable prefix lists (internal/config) are matched with
// one trie lookup per prefix length of the name, however many prefixes
// are configured.
type Classifier struct {
	cfg *config.Config

	internalPrefixes *trie.Trie
	strictPrefixes   *trie.Trie
}

// New builds a Classifier from cfg.
func New(cfg *config.Config) *Classifier {
	c := &Classifier{
		cfg:              cfg,
		internalPrefixes: trie.New(),
		strictPrefixes:   trie.New(),
	}
	for _, p := range cfg.InternalFuncPrefixes {
		c.internalPrefixes.Add(p, nil)
	}
	for _, p := range cfg.StrictNoiseFuncPrefixes {
		c.strictPrefixes.Add(p, nil)
	}
	return c
}

// hasConfiguredPrefix reports whether name starts with any prefix
// previously Added to t. Each Added prefix is stored as a complete trie
// key, so probing successive prefixes of name (shortest first) for exact
// membership stops at the shortest configured prefix that matches.
func hasConfiguredPrefix(t *trie.Trie, name string) bool {
	if name == "" {
		return false
	}
	for i := 1; i <= len(name); i++ {
		if _, ok := t.Find(name[:i]); ok {
			return true
		}
	}
	return false
}

// Resolved is the input to Classify: a raw event plus whatever location
// information was already available or produced by the resolver.
type Resolved struct {
	Event    event.Raw
	Location location.Location
	HasLoc   bool // true if Event already carried file+line
}

// Classify applies the ordered keep/drop rules and returns the
// classifier's decision plus whether the event is being kept without a
// resolved location.
func (c *Classifier) Classify(r Resolved, sourceFileBasename string) (Decision, bool) {
	t := normalizeType(r.Event.Type)

	fn := effectiveFunctionName(r)
	file, line := effectiveLocation(r)

	isUnresolved := location.Location{File: file, Line: line}.IsUnresolved()
	if isUnresolved {
		if event.IsStructuralAllowed(t) {
			return KeepAsStructural, true
		}
		return Drop, true
	}

	if matchesAny(c.cfg.StaticInitPatterns, fn) {
		return Drop, false
	}

	if baseName(file) == sourceFileBasename {
		return Keep, false
	}

	if isSystemPath(c.cfg, file) {
		return Drop, false
	}

	if hasConfiguredPrefix(c.internalPrefixes, fn) {
		return Drop, false
	}

	return Keep, false
}

// IsNoise implements the second, stricter noise check applied during
// conversion: it additionally drops
// std::/__gnu_cxx:: functions, ios/ostream/locale/__locale/streambuf
// files, and unresolved-but-std:: prefixed functions. The user source
// file is never dropped by this check.
func (c *Classifier) IsNoise(fn, file string, unresolved bool, sourceFileBasename string) bool {
	if baseName(file) == sourceFileBasename {
		return false
	}
	if hasConfiguredPrefix(c.strictPrefixes, fn) {
		return true
	}
	base := baseName(file)
	for _, b := range c.cfg.StrictNoiseFileBasenames {
		if base == b || strings.HasPrefix(file, b+"/") {
			return true
		}
	}
	if unresolved && hasConfiguredPrefix(c.strictPrefixes, fn) {
		return true
	}
	return false
}

func normalizeType(t event.Type) event.Type {
	return event.Type(strings.ToLower(string(t)))
}

func effectiveFunctionName(r Resolved) string {
	if r.Location.Function != "" && r.Location.Function != "??" && !strings.EqualFold(r.Location.Function, "unknown") {
		return r.Location.Function
	}
	return r.Event.Func
}

func effectiveLocation(r Resolved) (string, int) {
	if r.HasLoc {
		return r.Event.File, r.Event.Line
	}
	return r.Location.File, r.Location.Line
}

func matchesAny(patterns []string, s string) bool {
	if s == "" {
		return false
	}
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func isSystemPath(cfg *config.Config, file string) bool {
	if file == "" {
		return false
	}
	for _, p := range cfg.SystemPathSubstrings {
		if strings.Contains(file, p) {
			return true
		}
	}
	base := baseName(file)
	for _, h := range cfg.StdlibHeaderBasenames {
		if base == h || strings.Contains(file, h) {
			return true
		}
	}
	return false
}

// baseName returns the forward-slash-normalised, lowercase basename of
// file, matching the Step.File rendering rule.
func baseName(file string) string {
	file = strings.ReplaceAll(file, "\\", "/")
	if idx := strings.LastIndex(file, "/"); idx >= 0 {
		file = file[idx+1:]
	}
	return strings.ToLower(file)
}
