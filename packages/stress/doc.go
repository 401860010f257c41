// Package stress sends resolved requests repeatedly at a target rate and
// reports latency percentiles, error rates and threshold verdicts.
//
// Every dispatch resolves its request afresh, so placeholder functions such
// as {{uuid()}} or {{timestamp()}} yield a new value per request.
package stress
