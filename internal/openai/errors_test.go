package openai

import (
	"errors"
	"testing"

	rshttp "reelsync/http"
	"reelsync/internal/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		code      string
		transient bool
		quota     bool
	}{
		{
			name:  "insufficient quota on 429",
			err:   &rshttp.RateLimitError{StatusCode: 429, Body: []byte(`{"error":{"message":"You exceeded your current quota","type":"insufficient_quota","code":"insufficient_quota"}}`)},
			code:  "insufficient_quota",
			quota: true,
		},
		{
			name:  "billing hard limit",
			err:   &rshttp.HTTPError{StatusCode: 400, Body: []byte(`{"error":{"message":"Billing hard limit has been reached","type":"invalid_request_error","code":"billing_hard_limit_reached"}}`)},
			code:  "billing_hard_limit_reached",
			quota: true,
		},
		{
			name: "invalid key",
			err:  &rshttp.HTTPError{StatusCode: 401, Body: []byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`)},
			code: "invalid_api_key",
		},
		{
			name:      "plain rate limit",
			err:       &rshttp.RateLimitError{StatusCode: 429, Body: []byte(`{"error":{"message":"Rate limit reached for requests","type":"requests","code":"rate_limit_exceeded"}}`)},
			code:      "rate_limit_exceeded",
			transient: true,
		},
		{
			name:      "server error with null code",
			err:       &rshttp.HTTPError{StatusCode: 500, Body: []byte(`{"error":{"message":"The server had an error","type":"server_error","code":null}}`)},
			transient: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ParseError(tt.err)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.code, apiErr.Code)
			assert.Equal(t, tt.transient, retry.IsTransient(err))
			assert.Equal(t, tt.quota, errors.Is(err, ErrQuotaExhausted))
			assert.ErrorIs(t, err, tt.err, "the HTTP error stays in the chain")
		})
	}
}

func TestParseErrorWithoutEnvelope(t *testing.T) {
	plain := &rshttp.HTTPError{StatusCode: 502, Body: []byte("<html>bad gateway</html>")}
	assert.Same(t, error(plain), ParseError(plain))

	other := errors.New("connection reset")
	assert.Same(t, other, ParseError(other))
}
