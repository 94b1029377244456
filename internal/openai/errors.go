// Package openai decodes the error envelope shared by every OpenAI endpoint
// used by reelsync.
package openai

import (
	"encoding/json"
	"errors"
	"fmt"

	rshttp "reelsync/http"
	"reelsync/internal/retry"
)

// ErrQuotaExhausted matches an APIError whose quota or billing limit is
// used up. Retrying does not help until the account is topped up.
var ErrQuotaExhausted = errors.New("OpenAI quota exhausted")

// Error codes that no retry can fix.
var permanentCodes = map[string]bool{
	"insufficient_quota":         true,
	"billing_hard_limit_reached": true,
	"invalid_api_key":            true,
	"account_deactivated":        true,
	"model_not_found":            true,
}

// APIError is the "error" object of a failed OpenAI response.
type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
	Param   string `json:"param"`
	// Status is the HTTP status of the response.
	Status int `json:"-"`

	err error
}

func (e *APIError) Error() string {
	code := e.Code
	if code == "" {
		code = e.Type
	}
	return fmt.Sprintf("openai error (status %d, %s): %s", e.Status, code, e.Message)
}

func (e *APIError) Unwrap() error { return e.err }

// Is matches ErrQuotaExhausted for quota and billing failures.
func (e *APIError) Is(target error) bool {
	if target != ErrQuotaExhausted {
		return false
	}
	return e.Code == "insufficient_quota" || e.Type == "insufficient_quota" || e.Code == "billing_hard_limit_reached"
}

// Transient reports false for exhausted quota and bad credentials, even
// though OpenAI sends the former as 429. Otherwise the HTTP status decides.
func (e *APIError) Transient() bool {
	if permanentCodes[e.Code] || permanentCodes[e.Type] {
		return false
	}
	if e.err != nil {
		return retry.IsTransient(e.err)
	}
	return false
}

// ParseError returns err with the OpenAI error object decoded from the
// response body on top, or err unchanged when it carries none.
func ParseError(err error) error {
	var body []byte
	var status int

	var rle *rshttp.RateLimitError
	var httpErr *rshttp.HTTPError
	switch {
	case errors.As(err, &rle):
		body, status = rle.Body, rle.StatusCode
	case errors.As(err, &httpErr):
		body, status = httpErr.Body, httpErr.StatusCode
	default:
		return err
	}

	var envelope struct {
		Error *APIError `json:"error"`
	}
	if json.Unmarshal(body, &envelope) != nil || envelope.Error == nil {
		return err
	}
	apiErr := envelope.Error
	apiErr.Status = status
	apiErr.err = err
	return apiErr
}
