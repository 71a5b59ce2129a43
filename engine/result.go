package engine

import "github.com/isdmx/sandboxrunner/isolate"

// Phase is one recorded isolator invocation: a compile, or a single test
// run.
type Phase struct {
	Name   string       `json:"name,omitempty"`
	Stdout []byte       `json:"stdout"`
	Stderr []byte       `json:"stderr"`
	Meta   isolate.Meta `json:"meta"`
}

// Result is the job's result tree. Compile is present iff a compile phase
// ran; Tests is absent entirely (nil) if compile failed.
type Result struct {
	Compile *Phase  `json:"compile,omitempty"`
	Tests   []Phase `json:"tests,omitempty"`
}
