package engine

import (
	"context"
	"testing"

	"github.com/isdmx/sandboxrunner/isolate"
)

// programFunc simulates one external binary's behavior against the
// contents of a box directory, standing in for a real isolate run.
type programFunc func(boxDir string, argv []string, stdin []byte) isolate.Outcome

// fakeSandbox is an isolate.Sandbox double: every Acquire gets its own
// real temp directory (so WriteFile/ReadFile exercise the real
// filesystem), and Run dispatches to a registered programFunc keyed by
// argv[0].
type fakeSandbox struct {
	t        *testing.T
	programs map[string]programFunc
	boxes    map[*isolate.Handle]string
}

func newFakeSandbox(t *testing.T) *fakeSandbox {
	t.Helper()
	return &fakeSandbox{
		t:        t,
		programs: make(map[string]programFunc),
		boxes:    make(map[*isolate.Handle]string),
	}
}

func (f *fakeSandbox) register(cmd string, fn programFunc) { f.programs[cmd] = fn }

func (f *fakeSandbox) Acquire(_ context.Context, _ isolate.Limits, _ []string) (*isolate.Handle, error) {
	h := &isolate.Handle{}
	f.boxes[h] = f.t.TempDir()
	return h, nil
}

func (f *fakeSandbox) Release(_ context.Context, h *isolate.Handle) error {
	delete(f.boxes, h)
	return nil
}

func (f *fakeSandbox) Path(h *isolate.Handle) string { return f.boxes[h] }

func (f *fakeSandbox) Run(_ context.Context, h *isolate.Handle, argv []string, _ map[string]string, stdin []byte) (isolate.Outcome, error) {
	boxDir := f.boxes[h]
	fn, ok := f.programs[argv[0]]
	if !ok {
		return isolate.Outcome{Meta: isolate.Meta{Status: isolate.StatusInternalError, Message: "fakeSandbox: no program registered for " + argv[0]}}, nil
	}
	return fn(boxDir, argv, stdin), nil
}

func (f *fakeSandbox) FS() isolate.FileSystem { return isolate.RealFileSystem{} }
