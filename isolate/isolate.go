package isolate

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
)

// maxBoxID bounds the isolator's per-host box id space. Grounded on the
// ioi/isolate convention of small integer box ids recycled modulo a fixed
// ceiling.
const maxBoxID = 999

const defaultOutputLimitBytes = 10 * 1024 * 1024

var boxPrefixPattern = regexp.MustCompile(`/var/(local/)?lib/isolate/[0-9]+`)

// FilterBoxPrefix strips the isolator's own per-box host path from s, so
// sandboxed programs only ever see clean /box-relative paths in their
// command line.
func FilterBoxPrefix(s string) string {
	return boxPrefixPattern.ReplaceAllString(s, "")
}

// Sandbox is the contract the engine drives: acquire a fresh box, stage
// files under Path(handle) through FS(), run a command inside it, release it.
type Sandbox interface {
	Acquire(ctx context.Context, limits Limits, allowedDirs []string) (*Handle, error)
	Release(ctx context.Context, h *Handle) error
	Path(h *Handle) string
	Run(ctx context.Context, h *Handle, argv []string, env map[string]string, stdin []byte) (Outcome, error)
	FS() FileSystem
}

// Isolator drives an external isolate-compatible binary.
type Isolator struct {
	logger      *zap.Logger
	binaryPath  string
	binaryName  string
	boxRoot     string
	runner      CommandRunner
	fs          FileSystem
	nextBoxID   int32
	networkMode string // "" (isolate default) or "share-net"
}

// Option configures an Isolator.
type Option func(*Isolator)

// WithCommandRunner overrides the CommandRunner used to invoke the isolator binary.
func WithCommandRunner(r CommandRunner) Option {
	return func(i *Isolator) { i.runner = r }
}

// WithFileSystem overrides the FileSystem used to stage box contents.
func WithFileSystem(fs FileSystem) Option {
	return func(i *Isolator) { i.fs = fs }
}

// WithNetwork enables the isolator's shared-network mode for every box.
func WithNetwork(enabled bool) Option {
	return func(i *Isolator) {
		if enabled {
			i.networkMode = "share-net"
		} else {
			i.networkMode = ""
		}
	}
}

// New resolves cmdName on PATH and returns an Isolator driving it.
// boxRoot holds per-run metadata files and must be writable.
func New(logger *zap.Logger, cmdName, boxRoot string, opts ...Option) (*Isolator, error) {
	resolved, err := exec.LookPath(cmdName)
	if err != nil {
		return nil, fmt.Errorf("isolate: cannot find %q on PATH: %w", cmdName, err)
	}

	i := &Isolator{
		logger:     logger,
		binaryPath: resolved,
		binaryName: cmdName,
		boxRoot:    boxRoot,
		runner:     RealCommandRunner{},
		fs:         RealFileSystem{},
	}
	for _, opt := range opts {
		opt(i)
	}

	if err := i.fs.MkdirAll(boxRoot, 0o755); err != nil {
		return nil, fmt.Errorf("isolate: cannot create box root %q: %w", boxRoot, err)
	}

	return i, nil
}

// Acquire creates a fresh box and exposes its host path. limits and
// allowedDirs are remembered and applied to every subsequent Run against
// the returned handle.
func (i *Isolator) Acquire(ctx context.Context, limits Limits, allowedDirs []string) (*Handle, error) {
	id := int(atomic.AddInt32(&i.nextBoxID, 1)-1) % maxBoxID

	initArgs := []string{i.binaryPath, "--init", "--cg", fmt.Sprintf("-b%d", id)}
	stdout, stderr, exitCode, err := i.runner.RunCommand(ctx, initArgs, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("isolate: --init failed: %w", err)
	}
	if exitCode != 0 {
		return nil, fmt.Errorf("isolate: --init exited %d: %s", exitCode, strings.TrimSpace(string(stderr)))
	}

	boxParent := strings.TrimSpace(string(stdout))
	if boxParent == "" {
		return nil, fmt.Errorf("isolate: --init returned empty box path")
	}

	return &Handle{
		id:          id,
		path:        filepath.Join(boxParent, "box"),
		metaPath:    filepath.Join(i.boxRoot, fmt.Sprintf("box-%d.meta", id)),
		limits:      limits,
		allowedDirs: allowedDirs,
	}, nil
}

// Path returns the host-side path corresponding to /box inside the sandbox.
func (i *Isolator) Path(h *Handle) string { return h.path }

// Run launches argv inside the box, waits for completion, and returns the
// structured outcome.
func (i *Isolator) Run(ctx context.Context, h *Handle, argv []string, env map[string]string, stdin []byte) (Outcome, error) {
	args := []string{
		i.binaryPath,
		"--run",
		fmt.Sprintf("-b%d", h.id),
		fmt.Sprintf("--meta=%s", h.metaPath),
		"--cg",
		"-s",
	}

	for _, dir := range h.allowedDirs {
		args = append(args, "--dir="+dir)
	}

	args = append(args, limitArgs(h.limits)...)

	for k, v := range env {
		args = append(args, "-E", fmt.Sprintf("%s=%s", k, v))
	}

	if i.networkMode != "" {
		args = append(args, "--"+i.networkMode)
	}

	args = append(args, "--")
	args = append(args, argv...)

	stdout, stderr, exitCode, err := i.runner.RunCommand(ctx, args, nil, stdin)
	if err != nil {
		return Outcome{}, fmt.Errorf("isolate: --run failed: %w", err)
	}

	meta, metaErr := i.readMeta(h.metaPath)
	if metaErr != nil {
		i.logger.Warn("isolate: failed to parse box metadata", zap.Error(metaErr), zap.Int("box", h.id))
		meta = Meta{Status: StatusInternalError, Message: metaErr.Error()}
	}

	stdout = truncate(stdout, h.limits.StdoutLimitBytes)
	stderr = truncate(stderr, h.limits.StderrLimitBytes)

	return Outcome{
		IsolatorExit: exitCode,
		Stdout:       stdout,
		Stderr:       stderr,
		Meta:         meta,
	}, nil
}

// limitArgs translates Limits into isolate CLI flags. Zero fields are
// omitted so the isolator applies its own defaults.
func limitArgs(l Limits) []string {
	var args []string

	if l.WallTimeSec > 0 {
		args = append(args, fmt.Sprintf("--wall-time=%g", l.WallTimeSec))
	}
	if l.CPUTimeSec > 0 {
		args = append(args, fmt.Sprintf("--time=%g", l.CPUTimeSec))
	}
	if l.ExtraTimeSec > 0 {
		args = append(args, fmt.Sprintf("--extra-time=%g", l.ExtraTimeSec))
	}
	if l.MemoryKB > 0 {
		args = append(args, fmt.Sprintf("--cg-mem=%d", l.MemoryKB))
	}
	if l.FileSizeKB > 0 {
		args = append(args, fmt.Sprintf("--fsize=%d", l.FileSizeKB))
	}
	if l.MaxProcesses > 0 {
		args = append(args, fmt.Sprintf("--processes=%d", l.MaxProcesses))
	}
	if l.MaxOpenFiles > 0 {
		args = append(args, fmt.Sprintf("--open-files=%d", l.MaxOpenFiles))
	}

	return args
}

func truncate(b []byte, limit int) []byte {
	if limit <= 0 || len(b) <= limit {
		return b
	}
	return b[:limit]
}

// Release tears down the box and removes its metadata file. Safe to call
// even if Acquire partially failed.
func (i *Isolator) Release(ctx context.Context, h *Handle) error {
	if h == nil {
		return nil
	}

	args := []string{i.binaryPath, "--cleanup", "--cg", fmt.Sprintf("-b%d", h.id)}
	_, stderr, exitCode, err := i.runner.RunCommand(ctx, args, nil, nil)
	if err != nil {
		return fmt.Errorf("isolate: --cleanup failed: %w", err)
	}
	if exitCode != 0 {
		i.logger.Warn("isolate: --cleanup exited non-zero",
			zap.Int("box", h.id), zap.Int("exit", exitCode), zap.ByteString("stderr", stderr))
	}

	_ = i.fs.RemoveAll(h.metaPath)
	return nil
}

// WithBox runs fn against a freshly acquired box, guaranteeing Release runs
// on every exit path including a failure inside fn.
func (i *Isolator) WithBox(ctx context.Context, limits Limits, allowedDirs []string, fn func(h *Handle) error) error {
	h, err := i.Acquire(ctx, limits, allowedDirs)
	if err != nil {
		return err
	}
	defer func() {
		if relErr := i.Release(ctx, h); relErr != nil {
			i.logger.Warn("isolate: release failed", zap.Error(relErr))
		}
	}()

	return fn(h)
}

// FS exposes the filesystem abstraction so callers can stage files under
// Path(h) without reaching for os directly.
func (i *Isolator) FS() FileSystem { return i.fs }

func (i *Isolator) readMeta(path string) (Meta, error) {
	data, err := i.fs.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Meta{Status: StatusOK}, nil
		}
		return Meta{}, err
	}

	return parseMeta(data), nil
}

// parseMeta decodes an isolate metadata file (key:value per line) into a
// Meta. Field names and the status vocabulary (empty/RE/TO/SG/XX, plus the
// cg-oom-killed flag) follow the ioi/isolate --meta output format.
func parseMeta(data []byte) Meta {
	m := Meta{Status: StatusOK}
	oomKilled := false
	rawStatus := ""

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}

		switch k {
		case "status":
			rawStatus = v
		case "exitcode":
			m.ExitCode, _ = strconv.Atoi(v)
		case "exitsig":
			m.Signal, _ = strconv.Atoi(v)
		case "time":
			m.Time, _ = strconv.ParseFloat(v, 64)
		case "time-wall":
			m.TimeWall, _ = strconv.ParseFloat(v, 64)
		case "cg-mem":
			kb, _ := strconv.ParseInt(v, 10, 64)
			m.Memory = kb * 1024
		case "max-rss":
			if m.Memory == 0 {
				kb, _ := strconv.ParseInt(v, 10, 64)
				m.Memory = kb * 1024
			}
		case "message":
			m.Message = v
		case "cg-oom-killed":
			oomKilled = v == "1"
		}
	}

	switch {
	case oomKilled:
		m.Status = StatusMemoryExceeded
	case rawStatus == "":
		if m.ExitCode != 0 {
			m.Status = StatusRuntimeError
		} else {
			m.Status = StatusOK
		}
	case rawStatus == "RE":
		m.Status = StatusRuntimeError
	case rawStatus == "TO":
		m.Status = StatusTimedOut
	case rawStatus == "SG":
		m.Status = StatusSignaled
	case rawStatus == "XX":
		m.Status = StatusInternalError
	default:
		m.Status = StatusInternalError
	}

	return m
}
