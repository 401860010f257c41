// Package env handles variables and {{...}} interpolation for fetchforge.
//
// It provides functionality for:
//   - Loading environment files (.env, .env.local, etc.)
//   - Variable interpolation using {{variable}} syntax, with per-request
//     arguments shadowing stored variables
//   - Process environment lookups using {{$NAME}}
//   - Built-in function evaluation (uuid, timestamp, random, etc.)
package env
