// Package cmd implements the quiver CLI commands using Cobra.
//
// Available commands:
//   - send: Execute a stored request and print the captured response
//   - list: Display workspaces and their requests
//   - init: Create a new workspace with example documents
//   - export: Write a workspace to YAML
//   - import: Load a workspace from YAML or a curl command
//   - version: Show quiver version information
//
// Every command operates on a SQLite document database selected with
// the --db flag or the QUIVER_DB environment variable.
package cmd
