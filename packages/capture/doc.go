// Package capture extracts values from responses.
//
// It supports capturing values from:
//   - Response body (gjson paths)
//   - Response headers
//   - Response status code and duration
//
// The run command prints captured values with --query and stores them as
// variables with --capture, so later requests of the same run can refer to
// them as {{name}}.
package capture
