package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracekit/itre/internal/location"
)

func TestUnresolvingAlwaysReturnsUnresolvedWithoutError(t *testing.T) {
	var r Unresolving
	loc, err := r.Resolve(context.Background(), "a.out", 0x1000)
	require.NoError(t, err)
	assert.Equal(t, location.Unresolved, loc)
}

func TestParseOutputParsesTwoLineFormat(t *testing.T) {
	loc, ok := parseOutput([]byte("main\n/home/student/main.cpp:12\n"))
	require.True(t, ok)
	assert.Equal(t, "main", loc.Function)
	assert.Equal(t, "/home/student/main.cpp", loc.File)
	assert.Equal(t, 12, loc.Line)
}

func TestParseOutputRejectsMalformedOutput(t *testing.T) {
	cases := [][]byte{
		[]byte(""),
		[]byte("onlyoneline\n"),
		[]byte("main\nno-colon-here\n"),
		[]byte("??\n??:0\n"),
		[]byte("main\nfile.cpp:notanumber\n"),
		[]byte("main\nfile.cpp:0\n"),
	}
	for _, c := range cases {
		_, ok := parseOutput(c)
		assert.False(t, ok, "expected parseOutput(%q) to fail", c)
	}
}

func TestNewRejectsNonPositiveCacheSizeByDefaulting(t *testing.T) {
	r, err := New([]string{"addr2line -f -C -e {exe} {addr}"}, 0, 0)
	require.NoError(t, err)
	assert.NotNil(t, r)
}

func TestResolveWithNoCandidatesIsUnavailable(t *testing.T) {
	r, err := New(nil, 0, 0)
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), "a.out", 0x1)
	assert.Error(t, err)
	assert.IsType(t, ErrResolverUnavailable{}, err)
}

func TestResolveWithOnlyMissingCandidatesIsUnavailable(t *testing.T) {
	r, err := New([]string{"/no/such/symbolizer-binary-xyz {exe} {addr}"}, 0, 0)
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), "a.out", 0x1)
	assert.Error(t, err)
	assert.IsType(t, ErrResolverUnavailable{}, err)
}

func TestResolveIsCancellationSafe(t *testing.T) {
	r, err := New([]string{"/no/such/symbolizer-binary-xyz {exe} {addr}"}, 0, 0)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	loc, err := r.Resolve(ctx, "a.out", 0x2)
	require.NoError(t, err)
	assert.Equal(t, location.Unresolved, loc)
}
