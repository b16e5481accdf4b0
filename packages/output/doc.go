// Package output renders captured responses for the terminal.
//
// Supported output formats:
//   - Console: human-readable colored output
//   - JSON: machine-readable output for scripting
//
// The console formatter can project the response body through a gjson
// path so callers see only the field they asked for.
package output
