package isolate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// CommandRunner executes the isolator binary itself, carrying an
// environment overlay and stdin so it can drive `isolate --run` directly
// instead of shelling out to a container runtime.
type CommandRunner interface {
	RunCommand(ctx context.Context, args []string, env []string, stdin []byte) (stdout, stderr []byte, exitCode int, err error)
}

// RealCommandRunner runs the isolator binary as a real subprocess.
type RealCommandRunner struct{}

func (RealCommandRunner) RunCommand(ctx context.Context, args []string, env []string, stdin []byte) (stdout, stderr []byte, exitCode int, err error) {
	if len(args) < 1 {
		return nil, nil, 0, fmt.Errorf("isolate: no command provided")
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...) //nolint:gosec // args are assembled from validated descriptors
	if env != nil {
		cmd.Env = env
	}
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	runErr := cmd.Run()

	exitCode = 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, nil, 0, runErr
		}
	}

	return stdoutBuf.Bytes(), stderrBuf.Bytes(), exitCode, nil
}

// FileSystem abstracts the host filesystem operations the adapter needs to
// stage a box, trimmed to what box staging actually uses.
type FileSystem interface {
	MkdirTemp(dir, pattern string) (string, error)
	MkdirAll(path string, perm os.FileMode) error
	WriteFile(filename string, data []byte, perm os.FileMode) error
	ReadFile(filename string) ([]byte, error)
	RemoveAll(path string) error
	Chmod(path string, perm os.FileMode) error
}

// RealFileSystem implements FileSystem using the actual host filesystem.
type RealFileSystem struct{}

func (RealFileSystem) MkdirTemp(dir, pattern string) (string, error) { return os.MkdirTemp(dir, pattern) }
func (RealFileSystem) MkdirAll(path string, perm os.FileMode) error  { return os.MkdirAll(path, perm) }
func (RealFileSystem) WriteFile(filename string, data []byte, perm os.FileMode) error {
	return os.WriteFile(filename, data, perm)
}
func (RealFileSystem) ReadFile(filename string) ([]byte, error) { return os.ReadFile(filename) }
func (RealFileSystem) RemoveAll(path string) error              { return os.RemoveAll(path) }
func (RealFileSystem) Chmod(path string, perm os.FileMode) error { return os.Chmod(path, perm) }
