package engine

import (
	"os"
	"path/filepath"
)

// namedBinary is a (name, bytes) pair holding one compiled artifact. The
// default output-discovery rule keeps only the first artifact, named "".
type namedBinary struct {
	name string
	data []byte
}

// executorVariant isolates where compilers genuinely diverge:
// compile-output-flag convention and output-discovery rule. Modeled as a
// small interface with two methods instead of a larger type switch, since
// only a handful of languages need it. Execute-command assembly is not a
// variant method: Executor builds that argv itself for every language.
type executorVariant interface {
	// CompileOutputArgs returns the compiler argv fragment that names the
	// compiled output file.
	CompileOutputArgs(output string) []string

	// ReadCompiled loads the compiled artifact(s) from boxPath after a
	// successful compile. Returns (nil, nil) if nothing was produced.
	ReadCompiled(fs boxFileReader, boxPath string) ([]namedBinary, error)
}

// boxFileReader is the minimal filesystem surface a variant needs to read
// back compile output.
type boxFileReader interface {
	ReadFile(path string) ([]byte, error)
}

func variantFor(kind ExecutorKind) executorVariant {
	switch kind {
	case KindCSharp:
		return csharpVariant{}
	case KindD:
		return dVariant{}
	case KindPascal:
		return pascalVariant{}
	case KindPositional:
		return positionalVariant{}
	default:
		return defaultVariant{}
	}
}

// defaultVariant implements the ["-o", output] convention and single
// "compiled"-file discovery used by most languages.
type defaultVariant struct{}

func (defaultVariant) CompileOutputArgs(output string) []string { return []string{"-o", output} }

func (defaultVariant) ReadCompiled(fs boxFileReader, boxPath string) ([]namedBinary, error) {
	return readSingleCompiled(fs, boxPath)
}

// csharpVariant: mcs wants -out:<path>.
type csharpVariant struct{}

func (csharpVariant) CompileOutputArgs(output string) []string {
	return []string{"-out:" + output}
}
func (csharpVariant) ReadCompiled(fs boxFileReader, boxPath string) ([]namedBinary, error) {
	return readSingleCompiled(fs, boxPath)
}

// dVariant: dmd requires -of<path> as a single token; space-separated is
// rejected by the compiler.
type dVariant struct{}

func (dVariant) CompileOutputArgs(output string) []string { return []string{"-of" + output} }
func (dVariant) ReadCompiled(fs boxFileReader, boxPath string) ([]namedBinary, error) {
	return readSingleCompiled(fs, boxPath)
}

// pascalVariant: fpc requires -o<path> as a single token.
type pascalVariant struct{}

func (pascalVariant) CompileOutputArgs(output string) []string { return []string{"-o" + output} }
func (pascalVariant) ReadCompiled(fs boxFileReader, boxPath string) ([]namedBinary, error) {
	return readSingleCompiled(fs, boxPath)
}

// positionalVariant: a bare trailing path argument, no flag at all — the
// convention tools like cp use to copy a pipeline stage's output straight
// through to the next stage's input path.
type positionalVariant struct{}

func (positionalVariant) CompileOutputArgs(output string) []string { return []string{output} }
func (positionalVariant) ReadCompiled(fs boxFileReader, boxPath string) ([]namedBinary, error) {
	return readSingleCompiled(fs, boxPath)
}

func readSingleCompiled(fs boxFileReader, boxPath string) ([]namedBinary, error) {
	data, err := fs.ReadFile(filepath.Join(boxPath, "compiled"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		// Unreadable for any other reason is treated the same as
		// missing: callers only distinguish "present and readable"
		// from "absent or unreadable".
		return nil, nil //nolint:nilerr // intentional: see comment above
	}
	return []namedBinary{{name: "", data: data}}, nil
}
