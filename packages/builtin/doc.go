// Package builtin provides the functions available inside {{...}}
// placeholders of request definitions.
//
// Available functions:
//   - uuid(): Generate a random UUID v4
//   - now(), timestamp(), timestampMs(), date(format): Current time
//   - random(min, max): Random integer in range
//   - randomString(length): Random alphanumeric string
//   - base64(value), base64Decode(value): Base64 encoding
//   - sha256(value): Hex encoded SHA-256 digest
//   - urlEncode(value), urlDecode(value): Query escaping
package builtin
