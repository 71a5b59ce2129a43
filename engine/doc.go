// Package engine implements the language execution engine: a registry of
// per-language descriptors, an executor that drives one job end-to-end
// through an external isolate.Sandbox, and a pipeline executor that chains
// several descriptors' compile stages before executing the final binary.
//
// The engine never talks to callers directly; mcpserver adapts MCP tool
// calls into engine.Request values and engine.Result back into JSON.
package engine
