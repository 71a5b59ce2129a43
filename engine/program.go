package engine

import (
	"os/exec"
	"regexp"
	"strings"
	"sync"
)

// VersionProbe describes how to ask a Program for its own version.
type VersionProbe struct {
	Flag     string
	MaxLines int
	Regex    *regexp.Regexp
}

// Program is a resolved external binary plus the invocation metadata the
// engine applies every time it shells out to it.
type Program struct {
	CmdPath string
	CmdName string
	Opts    []string
	Env     map[string]string

	probe *VersionProbe
	runFn func(cmdPath string, args []string) (string, error)

	once    sync.Once
	version *string
}

// ProgramOption configures a Program at construction time.
type ProgramOption func(*Program)

// WithOpts sets the fixed argument prefix applied to every invocation.
func WithOpts(opts ...string) ProgramOption {
	return func(p *Program) { p.Opts = opts }
}

// WithEnv sets the environment-variable overlay applied on every invocation.
func WithEnv(env map[string]string) ProgramOption {
	return func(p *Program) { p.Env = env }
}

// WithVersionProbe configures how Version() is computed. Without this
// option (the default) probing is disabled and Version always returns "".
func WithVersionProbe(flag string, maxLines int, pattern string) ProgramOption {
	return func(p *Program) {
		p.probe = &VersionProbe{Flag: flag, MaxLines: maxLines, Regex: regexp.MustCompile(pattern)}
	}
}

// NewProgram resolves cmd on PATH and returns a Program describing it.
// Construction never fails: an unresolved binary simply leaves CmdPath
// empty, and IsAvailable reports false. The registry is what refuses a
// descriptor whose Programs are unavailable.
func NewProgram(cmd string, opts ...ProgramOption) *Program {
	p := &Program{CmdName: cmd}
	if resolved, err := exec.LookPath(cmd); err == nil {
		p.CmdPath = resolved
	}
	p.runFn = runVersionProbe

	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IsAvailable reports whether the binary was found and is executable.
func (p *Program) IsAvailable() bool {
	return p != nil && p.CmdPath != ""
}

// Version returns the probed version string (memoized), or "" if version
// probing is disabled or the probe failed.
func (p *Program) Version() string {
	if p.probe == nil || !p.IsAvailable() {
		return ""
	}

	p.once.Do(func() {
		out, err := p.runFn(p.CmdPath, []string{p.probe.Flag})
		if err != nil {
			empty := ""
			p.version = &empty
			return
		}

		lines := strings.Split(strings.TrimSpace(out), "\n")
		if p.probe.MaxLines > 0 && len(lines) > p.probe.MaxLines {
			lines = lines[:p.probe.MaxLines]
		}
		joined := strings.Join(lines, "\n")

		if m := p.probe.Regex.FindString(joined); m != "" {
			p.version = &m
		} else {
			empty := ""
			p.version = &empty
		}
	})

	return *p.version
}

func runVersionProbe(cmdPath string, args []string) (string, error) {
	out, err := exec.Command(cmdPath, args...).CombinedOutput() //nolint:gosec // cmdPath resolved via PATH lookup at construction
	return string(out), err
}
