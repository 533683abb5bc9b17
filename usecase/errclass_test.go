package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyFetchError(t *testing.T) {
	cases := []struct {
		name string
		msg  string
		want string
	}{
		{"http 401", "googleapi: Error 401: Request had invalid authentication credentials", ErrKindAuthRequired},
		{"invalid grant", "oauth2: \"invalid_grant\" \"Token has been expired or revoked.\"", ErrKindAuthRequired},
		{"http 403", "googleapi: Error 403: The caller does not have permission", ErrKindScopeMissing},
		{"insufficient scope", "Request had insufficient authentication scopes.", ErrKindScopeMissing},
		{"forbidden", "status 403 Forbidden: ACCESS_DENIED", ErrKindScopeMissing},
		{"quota", "googleapi: Error 429: Quota exceeded for quota metric", ErrKindRateLimited},
		{"throttled", "status 429 Too Many Requests: throttled", ErrKindRateLimited},
		{"timeout", "context deadline exceeded", ErrKindAPIError},
		{"server error", "googleapi: Error 500: Internal error encountered", ErrKindAPIError},
		{"empty", "", ErrKindAPIError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyFetchError(tc.msg))
		})
	}
}

func TestClassifyFetchError_RateLimitWinsOverAuthWording(t *testing.T) {
	// A throttled refresh mentions tokens too; the rate-limit marker decides.
	assert.Equal(t, ErrKindRateLimited, ClassifyFetchError("429 too many token requests"))
}
