// Package itrelog provides the named, per-component loggers used across
// the trace reconstruction engine: one process-wide logrus.Logger, with
// small accessor functions handing back a component-tagged
// *logrus.Entry.
package itrelog

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	once sync.Once
	base *logrus.Logger
)

func root() *logrus.Logger {
	once.Do(func() {
		base = logrus.New()
		base.SetOutput(os.Stderr)
		base.SetLevel(logrus.InfoLevel)
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	})
	return base
}

// SetLevel adjusts verbosity for every component logger; "debug" turns
// on UnknownEventType logging.
func SetLevel(level logrus.Level) {
	root().SetLevel(level)
}

func component(name string) *logrus.Entry {
	return root().WithField("component", name)
}

// Resolver is the Symbol Resolver's logger.
func Resolver() *logrus.Entry { return component("resolver") }

// Classifier is the Event Classifier & Filter's logger.
func Classifier() *logrus.Entry { return component("classifier") }

// Frame is the Scope & Frame Tracker's logger.
func Frame() *logrus.Entry { return component("frame") }

// Loop is the Loop Summariser's logger.
func Loop() *logrus.Entry { return component("loop") }

// Emitter is the Step Emitter's logger.
func Emitter() *logrus.Entry { return component("emitter") }

// CLI is the command-line front end's logger.
func CLI() *logrus.Entry { return component("cli") }
