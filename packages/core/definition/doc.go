// Package definition loads request definitions from YAML files.
//
// A definition file declares named fragments and named requests. A request
// lists fragments and other requests; each request becomes a forge.Builder
// and requests that list other requests nest their builders by reference:
//
//	origin: https://api.example.com
//	fragments:
//	  api:    { url: /v1, headers: { Accept: application/json } }
//	  user:   { url: "users/{{id}}" }
//	  rename: { method: patch, body: { name: "{{name}}" } }
//	requests:
//	  getUser:    [api, user]
//	  renameUser: [getUser, rename]
//
// Strings containing {{...}} placeholders become expressions evaluated
// against the request arguments each time a request is resolved.
package definition
