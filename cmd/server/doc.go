// Package main is the entry point for the sandboxrunner MCP server.
//
// The sandboxrunner server implements a secure, configurable Model
// Context Protocol (MCP) server that compiles and executes untrusted
// source code across a closed set of languages, each run inside an
// isolate-managed sandbox. The server supports both stdio and HTTP
// transports.
//
// The application uses Uber's fx framework for dependency injection and
// lifecycle management, with zap for structured logging and viper for
// configuration.
package main
