// Package http sends resolved fetchforge requests over the network.
//
// Client implements forge.Transport on top of the standard library's http
// package and adds:
//   - Configurable timeouts
//   - Redirect handling
//   - Default headers that fragments can override
//   - Multipart form encoding, with file parts confined to a base directory
//   - Debug logging of every dispatch through zerolog
package http
