// Package cmd implements the fetchforge CLI commands using Cobra.
//
// Available commands:
//   - run: Resolve requests from a definition file and send them
//   - bench: Dispatch requests at a fixed rate and report latency
//   - validate: Load definition files without sending anything
//   - list: Show the requests and fragments of a definition
//   - history: Show or clear the log of sent requests
//   - init: Create a sample definition and config
//   - version: Show version information
//
// Most flags take their default from a FETCHFORGE_* environment variable.
package cmd
