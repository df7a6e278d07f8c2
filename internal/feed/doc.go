// Package feed talks to the remote release feed: it fetches the latest
// release description and downloads package assets.
//
// The feed speaks the GitHub releases JSON shape. Fetches are
// conditional: the ETag of the last successful response is sent as
// If-None-Match and a 304 answer means nothing changed. Transient
// failures (transport errors, 5xx, 408) are retried with exponential
// backoff on an injected clock. Rate-limit responses are never retried;
// they surface as *RateLimitedError carrying the reset time so the
// caller can back off.
//
// Every response updates the RateLimit snapshot returned by
// RateLimitInfo, including 304 responses.
package feed
