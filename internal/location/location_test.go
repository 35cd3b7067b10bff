package location

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnresolvedIsUnresolved(t *testing.T) {
	assert.True(t, Unresolved.IsUnresolved())
}

func TestIsUnresolvedPredicate(t *testing.T) {
	cases := []struct {
		name string
		loc  Location
		want bool
	}{
		{"zero value", Location{}, true},
		{"line zero", Location{File: "main.cpp", Line: 0}, true},
		{"question marks", Location{File: "??", Line: 10}, true},
		{"literal unknown", Location{File: "unknown", Line: 10}, true},
		{"fully resolved", Location{Function: "main", File: "main.cpp", Line: 10}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.loc.IsUnresolved())
		})
	}
}
