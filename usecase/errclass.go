package usecase

import "strings"

// Platform-fetch error kinds surfaced in the per-platform error fields.
const (
	ErrKindAuthRequired = "auth_required"
	ErrKindScopeMissing = "scope_missing"
	ErrKindRateLimited  = "rate_limited"
	ErrKindAPIError     = "api_error"
)

var (
	rateMarkers = []string{"429", "rate limit", "ratelimit", "too many requests", "quota"}
	authMarkers = []string{
		"401", "unauthorized", "unauthenticated", "invalid_grant",
		"invalid credentials", "invalid_token", "token expired",
		"expired token", "authentication", "no_tokens",
	}
	scopeMarkers = []string{"403", "forbidden", "insufficient", "permission", "scope"}
)

// ClassifyFetchError maps a raw provider error message to an error kind by
// substring inspection. Providers report failures as message text with no
// shared error type, so classification stays lexical.
func ClassifyFetchError(msg string) string {
	lower := strings.ToLower(msg)
	for _, m := range rateMarkers {
		if strings.Contains(lower, m) {
			return ErrKindRateLimited
		}
	}
	for _, m := range authMarkers {
		if strings.Contains(lower, m) {
			return ErrKindAuthRequired
		}
	}
	for _, m := range scopeMarkers {
		if strings.Contains(lower, m) {
			return ErrKindScopeMissing
		}
	}
	return ErrKindAPIError
}
