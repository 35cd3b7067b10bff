// Package resolver implements the Symbol Resolver component: address ->
// (function, file, line) lookup via an external symbolizer, memoized and
// failure-tolerant. It tries the best-known symbolizer first, falls
// back, and never fabricates a location: a wrong user source location is
// worse for downstream filtering than an unknown one.
package resolver

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/cosiner/argv"
	lru "github.com/hashicorp/golang-lru"

	"github.com/tracekit/itre/internal/itrelog"
	"github.com/tracekit/itre/internal/location"
)

// ErrResolverUnavailable is returned when every candidate symbolizer is
// missing.
type ErrResolverUnavailable struct {
	Candidates []string
}

func (e ErrResolverUnavailable) Error() string {
	return fmt.Sprintf("no symbolizer available among %d candidate(s)", len(e.Candidates))
}

// Resolver maps an instruction address in an executable to its source
// location.
type Resolver interface {
	// Resolve returns location.Unresolved, never an error, for any
	// transient failure (spawn error, non-zero exit, malformed output,
	// timeout, or cancellation). It returns a non-nil error only when
	// the resolver itself cannot function at all.
	Resolve(ctx context.Context, executable string, addr uint64) (location.Location, error)
}

// cacheKey is (executable, address), the unit that gets memoized.
type cacheKey struct {
	executable string
	addr       uint64
}

// Default is the production Resolver: a prioritised list of symbolizer
// command templates, invoked as external processes and memoized in an
// LRU cache for the lifetime of one conversion.
type Default struct {
	candidates []string
	timeout    time.Duration
	cache      *lru.Cache
}

// New builds a Default resolver from a prioritised list of command
// templates (e.g. "addr2line -f -C -e {exe} {addr}"); {exe} and {addr}
// are substituted before the template is tokenized with cosiner/argv.
func New(candidates []string, timeout time.Duration, cacheSize int) (*Default, error) {
	if cacheSize <= 0 {
		cacheSize = 4096
	}
	c, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("building resolver cache: %w", err)
	}
	return &Default{candidates: candidates, timeout: timeout, cache: c}, nil
}

func (r *Default) Resolve(ctx context.Context, executable string, addr uint64) (location.Location, error) {
	key := cacheKey{executable: executable, addr: addr}
	if v, ok := r.cache.Get(key); ok {
		return v.(location.Location), nil
	}

	if ctx.Err() != nil {
		// Cancelling mid-resolve yields Unresolved for that event, not
		// an error.
		return location.Unresolved, nil
	}

	loc, anyRunnable, err := r.tryCandidates(ctx, executable, addr)
	if err != nil {
		return location.Location{}, err
	}
	if !anyRunnable {
		return location.Location{}, ErrResolverUnavailable{Candidates: r.candidates}
	}
	r.cache.Add(key, loc)
	return loc, nil
}

func (r *Default) tryCandidates(ctx context.Context, executable string, addr uint64) (location.Location, bool, error) {
	anyRunnable := false
	for _, tmpl := range r.candidates {
		loc, ran, ok := r.invoke(ctx, tmpl, executable, addr)
		if ran {
			anyRunnable = true
		}
		if ok {
			return loc, anyRunnable, nil
		}
	}
	if !anyRunnable {
		return location.Location{}, false, nil
	}
	return location.Unresolved, true, nil
}

// invoke runs one candidate template. ran reports whether the candidate
// binary could be spawned at all (used to decide ResolverUnavailable);
// ok reports whether a usable location was parsed.
func (r *Default) invoke(ctx context.Context, tmpl, executable string, addr uint64) (loc location.Location, ran bool, ok bool) {
	rendered := strings.NewReplacer(
		"{exe}", executable,
		"{addr}", fmt.Sprintf("0x%x", addr),
		"{toolchain}", "/usr/lib/itre-toolchain",
	).Replace(tmpl)

	argvec, err := argv.Argv(rendered, nil, nil)
	if err != nil || len(argvec) == 0 || len(argvec[0]) == 0 {
		return location.Location{}, false, false
	}
	tokens := argvec[0]

	timeout := r.timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, tokens[0], tokens[1:]...)
	out, err := cmd.Output()
	if err != nil {
		if isNotFound(err) {
			return location.Location{}, false, false
		}
		itrelog.Resolver().WithError(err).WithField("cmd", tokens[0]).Debug("symbolizer invocation failed")
		return location.Location{}, true, false
	}

	loc, ok = parseOutput(out)
	return loc, true, ok
}

func isNotFound(err error) bool {
	// A bare name missing from PATH yields exec.ErrNotFound; an explicit
	// path to a missing binary fails at spawn with a not-exist PathError.
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}

// parseOutput parses the two-line "function\nfile:line" symbolizer
// output format.
func parseOutput(out []byte) (location.Location, bool) {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) < 2 {
		return location.Location{}, false
	}
	fn := strings.TrimSpace(lines[0])
	fileLine := strings.TrimSpace(lines[1])
	idx := strings.LastIndex(fileLine, ":")
	if idx < 0 {
		return location.Location{}, false
	}
	file := fileLine[:idx]
	lineStr := fileLine[idx+1:]
	line, err := strconv.Atoi(lineStr)
	if err != nil {
		return location.Location{}, false
	}
	if fn == "" || fn == "??" || file == "" || file == "??" || line <= 0 {
		return location.Location{}, false
	}
	return location.Location{Function: fn, File: file, Line: line}, true
}

// Unresolving is a Resolver that always returns location.Unresolved.
// Swapping it in must not change the count of structural steps a
// conversion produces, only drop non-structural user events that needed
// source info.
type Unresolving struct{}

func (Unresolving) Resolve(context.Context, string, uint64) (location.Location, error) {
	return location.Unresolved, nil
}
