// Package assertions evaluates checks against responses.
//
// An assertion is written as "subject operator [value]", where subject is a
// capture query (status, duration, header.<name>, body.<path>) and the
// supported operators are:
//   - Comparison: ==, !=, >, >=, <, <=
//   - String: contains, !contains, startsWith, endsWith, matches
//   - Existence: exists, !exists
//   - Collections: length, includes, in
//   - Type checking: type, schema (JSON schema file)
package assertions
