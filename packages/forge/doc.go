// Package forge composes HTTP requests from small, reusable fragments.
//
// A Fragment is a partial request description: any of url, method, headers,
// query parameters and body, each either a literal or an expression of the
// caller's arguments. Fragments are collected into Builders (which may nest
// other Builders by reference) and applied in order to a Context:
//   - method: a non-empty method replaces the previous one
//   - url: absolute URLs and absolute paths replace the location, relative
//     references are appended to the current path
//   - headers and params: entries are appended, never overwritten
//   - body: objects are shallow-merged, and once either side is a multipart
//     form the body stays a form
//
// Finalize turns a Context into a Request descriptor which a Transport sends.
package forge
