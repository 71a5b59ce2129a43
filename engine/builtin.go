package engine

import "go.uber.org/zap"

// anyVersion matches whatever a probe prints; most of these compilers
// don't expose a stable version regex worth anchoring to.
const anyVersion = `.+`

// DiscoverBuiltins constructs the closed set of built-in language
// descriptors and returns those whose required binaries actually resolved
// on PATH. Unlike the Python original's __init_subclass__ metaclass, which
// registers every LangDefinition subclass as an import side effect,
// descriptors here are ordinary values built once by this function and
// registered explicitly by the caller — so a fresh Registry never carries
// stale or half-initialized entries.
func DiscoverBuiltins(logger *zap.Logger) []*LanguageDescriptor {
	all := []*LanguageDescriptor{
		{
			Name:            "Ada",
			SourceExt:       ".adb",
			Compiler:        NewProgram("gnatmake", WithOpts("-f")),
			ReferenceSource: "with Ada.Text_IO; use Ada.Text_IO;\nprocedure Hello is\nbegin\n    Put_Line(\"42\");\nend Hello;\n",
		},
		{
			Name:            "C",
			SourceExt:       ".c",
			Compiler:        NewProgram("gcc", WithOpts("-std=c11", "-Wall", "-Wextra", "-O2", "-lm"), WithVersionProbe("--version", 1, anyVersion)),
			ReferenceSource: "#include <stdio.h>\nint main(void) {\n    printf(\"42\\n\");\n    return 0;\n}\n",
		},
		{
			Name:            "C++",
			SourceExt:       ".cc",
			Compiler:        NewProgram("g++", WithOpts("-std=c++17", "-Wall", "-Wextra", "-O2"), WithVersionProbe("--version", 1, anyVersion)),
			ReferenceSource: "#include <iostream>\nint main() {\n    std::cout << 42 << std::endl;\n    return 0;\n}\n",
		},
		{
			Name:            "C#",
			SourceExt:       ".cs",
			Compiler:        NewProgram("mcs", WithOpts("-optimize+")),
			Interpreter:     NewProgram("mono"),
			AllowedDirs:     []string{"/etc/mono"},
			ExecutorKind:    KindCSharp,
			ReferenceSource: "using System;\nclass Program {\n    public static void Main() {\n        Console.WriteLine(42);\n    }\n}\n",
		},
		{
			Name:            "D",
			SourceExt:       ".d",
			Compiler:        NewProgram("dmd"),
			AllowedDirs:     []string{"/etc"},
			ExecutorKind:    KindD,
			ReferenceSource: "void main() {\n    import std.stdio: writeln;\n    writeln(\"42\");\n}\n",
		},
		{
			Name:      "Go",
			SourceExt: ".go",
			Compiler: NewProgram("go",
				WithOpts("build", "-buildmode=exe"),
				WithEnv(map[string]string{"GOCACHE": "/box/.gocache"}),
				WithVersionProbe("version", 1, anyVersion)),
			ReferenceSource: "package main\nimport \"fmt\"\nfunc main() {\n    fmt.Println(\"42\")\n}\n",
		},
		{
			Name:            "Haskell",
			SourceExt:       ".hs",
			Compiler:        NewProgram("ghc", WithOpts("-dynamic", "-O2")),
			ReferenceSource: "module Main where main = putStrLn \"42\"\n",
		},
		{
			Name:            "Javascript",
			SourceExt:       ".js",
			Interpreter:     NewProgram("node"),
			ReferenceSource: "process.stdout.write('42\\n');\n",
		},
		{
			Name:            "Lua",
			SourceExt:       ".lua",
			Interpreter:     NewProgram("lua", WithVersionProbe("-v", 1, anyVersion)),
			ReferenceSource: "print(\"42\")\n",
		},
		{
			Name:            "OCaml",
			SourceExt:       ".ml",
			Compiler:        NewProgram("ocamlopt", WithOpts("-w", "A"), WithVersionProbe("-v", 1, anyVersion)),
			ReferenceSource: "print_int 42; print_string \"\\n\";",
		},
		{
			Name:            "Pascal",
			SourceExt:       ".pas",
			Compiler:        NewProgram("fpc", WithOpts("-XD", "-Fainitc"), WithVersionProbe("-h", 1, anyVersion)),
			ExecutorKind:    KindPascal,
			ReferenceSource: "program main;\nbegin\n    Writeln(42);\nend.\n",
		},
		{
			Name:            "Perl",
			SourceExt:       ".pl",
			Interpreter:     NewProgram("perl"),
			ReferenceSource: "print \"42\\n\";\n",
		},
		{
			Name:            "PHP",
			SourceExt:       ".php",
			Interpreter:     NewProgram("php"),
			ReferenceSource: "<?php\necho \"42\\n\";\n?>\n",
		},
		{
			Name:            "Prolog",
			SourceExt:       ".pl",
			Interpreter:     NewProgram("swipl", WithOpts("--quiet", "-t", "halt"), WithVersionProbe("--version", 1, anyVersion)),
			ReferenceSource: ":- write('42\\n').\n",
		},
		{
			Name:            "Python",
			SourceExt:       ".py",
			Interpreter:     NewProgram("python3", WithOpts("-S")),
			ReferenceSource: "print(\"42\")\n",
		},
		{
			Name:            "Ruby",
			SourceExt:       ".rb",
			Interpreter:     NewProgram("ruby"),
			ReferenceSource: "puts \"42\"\n",
		},
		{
			Name:            "Rust",
			SourceExt:       ".rs",
			Compiler:        NewProgram("rustc", WithOpts("-W", "warnings", "-C", "opt-level=3")),
			ReferenceSource: "fn main() {\n    println!(\"42\");\n}\n",
		},
		{
			Name:            "Scheme",
			SourceExt:       ".scm",
			Interpreter:     NewProgram("gsi", WithVersionProbe("-v", 1, anyVersion)),
			ReferenceSource: "(display \"42\")(newline)\n",
		},
	}

	available := make([]*LanguageDescriptor, 0, len(all))
	for _, d := range all {
		ok := true
		for _, p := range d.RequiredBinaries() {
			if !p.IsAvailable() {
				ok = false
				break
			}
		}
		if !ok {
			logger.Debug("engine: language unavailable, binaries not found on PATH", zap.String("language", d.Name))
			continue
		}
		available = append(available, d)
	}

	return available
}
