// Package isolate wraps an external process-isolation sandbox (compatible
// with the ioi/isolate contract: a per-box chroot-like jail enforcing wall
// and CPU time, memory, and process-count limits, reporting a structured
// metadata file on every run).
//
// The package never interprets the sandboxed program's behavior; it only
// shepherds a single external binary through --init/--run/--cleanup and
// translates its metadata file into an Outcome.
package isolate
