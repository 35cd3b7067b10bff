package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tracekit/itre/internal/config"
	"github.com/tracekit/itre/internal/event"
	"github.com/tracekit/itre/internal/location"
)

func newClassifier() *Classifier {
	return New(config.Default())
}

func TestClassifyUnresolvedStructuralEventIsKeptAsStructural(t *testing.T) {
	c := newClassifier()
	r := Resolved{
		Event:    event.Raw{Type: event.FuncEnter, Func: "foo"},
		Location: location.Unresolved,
		HasLoc:   false,
	}
	decision, isUnresolved := c.Classify(r, "main.cpp")
	assert.Equal(t, KeepAsStructural, decision)
	assert.True(t, isUnresolved)
}

func TestClassifyUnresolvedNonStructuralEventIsDropped(t *testing.T) {
	c := newClassifier()
	r := Resolved{
		Event:    event.Raw{Type: event.Declare, Name: "x"},
		Location: location.Unresolved,
		HasLoc:   false,
	}
	decision, isUnresolved := c.Classify(r, "main.cpp")
	assert.Equal(t, Drop, decision)
	assert.True(t, isUnresolved)
}

func TestClassifyDropsStaticInitializers(t *testing.T) {
	c := newClassifier()
	r := Resolved{
		Event:  event.Raw{Type: event.FuncEnter, File: "main.cpp", Line: 3},
		HasLoc: true,
	}
	r.Event.Func = "_GLOBAL__sub_I_main"
	r.Location = location.Location{Function: "_GLOBAL__sub_I_main", File: "main.cpp", Line: 3}
	decision, _ := c.Classify(r, "main.cpp")
	assert.Equal(t, Drop, decision)
}

func TestClassifyKeepsUserSourceFile(t *testing.T) {
	c := newClassifier()
	r := Resolved{
		Event:    event.Raw{Type: event.Declare, File: "/home/student/main.cpp", Line: 5},
		Location: location.Location{Function: "main", File: "/home/student/main.cpp", Line: 5},
		HasLoc:   true,
	}
	decision, _ := c.Classify(r, "main.cpp")
	assert.Equal(t, Keep, decision)
}

func TestClassifyDropsSystemPath(t *testing.T) {
	c := newClassifier()
	r := Resolved{
		Event:    event.Raw{Type: event.Declare, File: "/usr/include/c++/11/bits/stl_vector.h", Line: 100},
		Location: location.Location{Function: "std::vector<int>::push_back", File: "/usr/include/c++/11/bits/stl_vector.h", Line: 100},
		HasLoc:   true,
	}
	decision, _ := c.Classify(r, "main.cpp")
	assert.Equal(t, Drop, decision)
}

func TestClassifyDropsStdlibHeaderBasename(t *testing.T) {
	c := newClassifier()
	r := Resolved{
		Event:    event.Raw{Type: event.Declare, File: "iostream", Line: 50},
		Location: location.Location{Function: "std::basic_ios<char>::init", File: "iostream", Line: 50},
		HasLoc:   true,
	}
	decision, _ := c.Classify(r, "main.cpp")
	assert.Equal(t, Drop, decision)
}

func TestClassifyDropsInternalFunctionPrefix(t *testing.T) {
	c := newClassifier()
	r := Resolved{
		Event:    event.Raw{Type: event.Declare, File: "somewhere.cpp", Line: 1},
		Location: location.Location{Function: "__gnu_cxx::__ops::_Iter_less_iter", File: "somewhere.cpp", Line: 1},
		HasLoc:   true,
	}
	decision, _ := c.Classify(r, "main.cpp")
	assert.Equal(t, Drop, decision)
}

func TestClassifyDefaultsToKeep(t *testing.T) {
	c := newClassifier()
	r := Resolved{
		Event:    event.Raw{Type: event.FuncEnter, File: "helper.cpp", Line: 7},
		Location: location.Location{Function: "helper", File: "helper.cpp", Line: 7},
		HasLoc:   true,
	}
	decision, _ := c.Classify(r, "main.cpp")
	assert.Equal(t, Keep, decision)
}

func TestIsNoiseNeverDropsUserSourceFile(t *testing.T) {
	c := newClassifier()
	assert.False(t, c.IsNoise("std::vector<int>::push_back", "main.cpp", false, "main.cpp"))
}

func TestIsNoiseDropsStdNamespaceFunctions(t *testing.T) {
	c := newClassifier()
	assert.True(t, c.IsNoise("std::vector<int>::push_back", "vector", false, "main.cpp"))
}

func TestIsNoiseDropsKnownSystemFileBasenames(t *testing.T) {
	c := newClassifier()
	assert.True(t, c.IsNoise("helper", "ios", false, "main.cpp"))
	assert.True(t, c.IsNoise("helper", "bits/ostream", false, "main.cpp"))
}

func TestIsNoiseKeepsOrdinaryUserFunctions(t *testing.T) {
	c := newClassifier()
	assert.False(t, c.IsNoise("helper", "helper.cpp", false, "main.cpp"))
}
