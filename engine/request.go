package engine

import "github.com/isdmx/sandboxrunner/isolate"

// Test describes one declared test run. Name defaults to "testNNN"
// (zero-padded) when empty; Execute overrides win over Request.Execute on
// a per-field basis.
type Test struct {
	Name    string
	Stdin   []byte
	Fatal   bool
	Execute isolate.Limits
}

// Request is a normalized job request: the full configuration the
// executor needs to run one job end-to-end.
type Request struct {
	// JobID correlates this request's log lines across compile and test
	// phases. Callers that don't care about tracing can leave it empty.
	JobID    string
	Lang     string
	Source   []byte
	Compile  isolate.Limits
	Execute  isolate.Limits
	Tests    []Test
	AllFatal bool
}

// normalizedTests returns r.Tests, defaulting to a single empty test when
// none were declared. Handled once here, at request-normalization time,
// rather than deep inside the execution loop.
func (r Request) normalizedTests() []Test {
	if len(r.Tests) == 0 {
		return []Test{{}}
	}
	return r.Tests
}

// mergeLimits overlays non-zero fields of override onto base. A zero field
// in override means "inherit the base value" — the same convention the
// teacher's config layer uses for viper defaults.
func mergeLimits(base, override isolate.Limits) isolate.Limits {
	out := base
	if override.WallTimeSec != 0 {
		out.WallTimeSec = override.WallTimeSec
	}
	if override.CPUTimeSec != 0 {
		out.CPUTimeSec = override.CPUTimeSec
	}
	if override.ExtraTimeSec != 0 {
		out.ExtraTimeSec = override.ExtraTimeSec
	}
	if override.MemoryKB != 0 {
		out.MemoryKB = override.MemoryKB
	}
	if override.FileSizeKB != 0 {
		out.FileSizeKB = override.FileSizeKB
	}
	if override.MaxProcesses != 0 {
		out.MaxProcesses = override.MaxProcesses
	}
	if override.MaxOpenFiles != 0 {
		out.MaxOpenFiles = override.MaxOpenFiles
	}
	if override.StdoutLimitBytes != 0 {
		out.StdoutLimitBytes = override.StdoutLimitBytes
	}
	if override.StderrLimitBytes != 0 {
		out.StderrLimitBytes = override.StderrLimitBytes
	}
	return out
}
