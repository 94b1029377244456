package tiktok

import (
	"encoding/json"
	"errors"
	"fmt"

	rshttp "reelsync/http"
	"reelsync/platform"
)

// APIError is the error object every Content Posting API response carries.
// Code is "ok" on success.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	LogID   string `json:"log_id"`

	err error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tiktok api error %s: %s (log id %s)", e.Code, e.Message, e.LogID)
}

func (e *APIError) Unwrap() error { return e.err }

// Transient reports whether the error code is worth retrying.
func (e *APIError) Transient() bool {
	switch e.Code {
	case "rate_limit_exceeded", "internal_error", "timeout":
		return true
	}
	var httpErr *rshttp.HTTPError
	if errors.As(e.err, &httpErr) {
		return httpErr.Transient()
	}
	return false
}

// Unauthorized reports a rejected token or missing scope.
func (e *APIError) Unauthorized() bool {
	switch e.Code {
	case "access_token_invalid", "scope_not_authorized", "scope_permission_missed":
		return true
	}
	return false
}

type envelope[T any] struct {
	Data  T         `json:"data"`
	Error *APIError `json:"error"`
}

// failure returns e when it describes a failure.
func (e *APIError) failure() error {
	if e == nil || e.Code == "" || e.Code == "ok" {
		return nil
	}
	return e
}

// parseAPIError extracts the API error from a failed response.
func parseAPIError(httpErr *rshttp.HTTPError) *APIError {
	var env envelope[json.RawMessage]
	if err := json.Unmarshal(httpErr.Body, &env); err != nil || env.Error.failure() == nil {
		return nil
	}
	env.Error.err = httpErr
	return env.Error
}

func classify(op string, err error) error {
	var httpErr *rshttp.HTTPError
	if errors.As(err, &httpErr) {
		if apiErr := parseAPIError(httpErr); apiErr != nil {
			err = apiErr
		}
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Unauthorized():
			return platform.Errorf(platform.TikTok, platform.KindPermanent, op,
				fmt.Errorf("%w: %w", platform.ErrUnauthorized, apiErr))
		case apiErr.Transient():
			return platform.Errorf(platform.TikTok, platform.KindTransient, op, apiErr)
		default:
			return platform.Errorf(platform.TikTok, platform.KindPermanent, op, apiErr)
		}
	}
	return platform.Classify(platform.TikTok, op, err)
}
