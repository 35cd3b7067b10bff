// Package config loads the operator-tunable parts of the trace
// reconstruction engine: the symbolizer candidate list, the
// classifier's noise-pattern tables, and resolver timing. A built-in
// default is used whenever no file is supplied; a YAML file only
// overrides the fields it sets.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full set of tunables. Zero-value fields in a loaded YAML
// document leave the corresponding default untouched (see Load).
type Config struct {
	// ResolverCandidates is a prioritised list of symbolizer invocation
	// templates, e.g. "addr2line -f -C -e {exe} {addr}". The bundled
	// toolchain's symbolizer should be listed first, a system fallback
	// last.
	ResolverCandidates []string `yaml:"resolverCandidates,omitempty"`

	// ResolverTimeout bounds a single symbolizer invocation.
	ResolverTimeout time.Duration `yaml:"resolverTimeout,omitempty"`

	// SystemPathSubstrings are POSIX/Windows path fragments that mark a
	// location as toolchain/system noise.
	SystemPathSubstrings []string `yaml:"systemPathSubstrings,omitempty"`

	// StdlibHeaderBasenames are C++ standard library header names that
	// mark a location as library noise.
	StdlibHeaderBasenames []string `yaml:"stdlibHeaderBasenames,omitempty"`

	// InternalFuncPrefixes are function-name prefixes dropped by rule 7.
	InternalFuncPrefixes []string `yaml:"internalFuncPrefixes,omitempty"`

	// StaticInitPatterns are function-name substrings identifying
	// compiler-generated static initializers, dropped by rule 4.
	StaticInitPatterns []string `yaml:"staticInitPatterns,omitempty"`

	// StrictNoiseFuncPrefixes are the stricter, always-on noise check
	// applied during conversion.
	StrictNoiseFuncPrefixes []string `yaml:"strictNoiseFuncPrefixes,omitempty"`

	// StrictNoiseFileBasenames are the {ios, ostream, locale, __locale,
	// streambuf} basenames from the same stricter check.
	StrictNoiseFileBasenames []string `yaml:"strictNoiseFileBasenames,omitempty"`
}

// Default returns the built-in noise-filtering and resolver tunables.
func Default() *Config {
	return &Config{
		ResolverCandidates: []string{
			"{toolchain}/bin/llvm-symbolizer --obj={exe} {addr}",
			"addr2line -f -C -e {exe} {addr}",
		},
		ResolverTimeout: 3 * time.Second,
		SystemPathSubstrings: []string{
			"/usr/", "/lib/", "include/c++/", "include/bits/",
			"mingw", "include\\c++", "lib\\gcc",
		},
		StdlibHeaderBasenames: []string{
			"stl_", "bits/", "iostream", "ostream", "streambuf",
		},
		InternalFuncPrefixes: []string{
			"__", "_IO_", "_M_", "std::__", "std::basic_", "std::char_traits",
			"__gnu_cxx::", "__cxxabi",
		},
		StaticInitPatterns: []string{
			"GLOBAL__sub", "_static_initialization_and_destruction",
		},
		StrictNoiseFuncPrefixes: []string{"std::", "__gnu_cxx::"},
		StrictNoiseFileBasenames: []string{
			"ios", "ostream", "locale", "__locale", "streambuf",
		},
	}
}

// Load reads a YAML override file and merges it onto the default
// configuration; a field left unset (zero value) in the file keeps the
// default. An empty path returns Default() unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var override Config
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	merge(cfg, &override)
	return cfg, nil
}

func merge(dst, src *Config) {
	if len(src.ResolverCandidates) > 0 {
		dst.ResolverCandidates = src.ResolverCandidates
	}
	if src.ResolverTimeout > 0 {
		dst.ResolverTimeout = src.ResolverTimeout
	}
	if len(src.SystemPathSubstrings) > 0 {
		dst.SystemPathSubstrings = src.SystemPathSubstrings
	}
	if len(src.StdlibHeaderBasenames) > 0 {
		dst.StdlibHeaderBasenames = src.StdlibHeaderBasenames
	}
	if len(src.InternalFuncPrefixes) > 0 {
		dst.InternalFuncPrefixes = src.InternalFuncPrefixes
	}
	if len(src.StaticInitPatterns) > 0 {
		dst.StaticInitPatterns = src.StaticInitPatterns
	}
	if len(src.StrictNoiseFuncPrefixes) > 0 {
		dst.StrictNoiseFuncPrefixes = src.StrictNoiseFuncPrefixes
	}
	if len(src.StrictNoiseFileBasenames) > 0 {
		dst.StrictNoiseFileBasenames = src.StrictNoiseFileBasenames
	}
}
