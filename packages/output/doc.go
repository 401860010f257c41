// Package output renders resolved requests and their responses.
//
// Supported output formats:
//   - Console: human-readable colored terminal output
//   - JSON: one machine-readable document per run
//   - JUnit: JUnit XML for CI, one suite per definition file
//   - TAP: Test Anything Protocol
//
// Each formatter implements Formatter. Formats that accumulate results also
// implement Flushable and write everything when flushed.
package output
