// Package api provides the HTTP client for the versioned mail REST API.
// It handles request headers (model version, client version, platform,
// access token), GET bodies via the _body query parameter, retry with
// exponential backoff for transient failures, and typed entity loads
// driven by the type-model registry.
//
// # Entity Addressing
//
// A standalone entity is addressed by an element id; list-typed entities
// by a (listId, elementId) pair. [Client.LoadEntity] accepts both through
// [EntityID]. [Client.LoadRange] queries a slice of a list with start,
// count and reverse parameters; the generated-id sentinels bound the range.
//
// # Error Handling
//
// Non-2xx responses surface as [*APIError] with the body text; transport
// failures (DNS, refused connections, timeouts, resets) as [*NetworkError].
// Use errors.Is with [ErrUnauthorized] and [ErrNotFound] for status checks.
package api
