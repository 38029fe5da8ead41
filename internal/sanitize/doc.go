// Package sanitize turns a request into a rewritten text.
//
// Service.Process validates the request and then tries the configured text
// generation provider. Any provider problem (no credential, rate budget
// exhausted, credentials found in the input, transport failure, timeout,
// unusable reply) is logged and recovered by running the local rule engine,
// so callers only ever see validation errors or internal failures.
//
// Successful provider results may be cached, and every completed request
// produces a completion event without user text.
package sanitize
