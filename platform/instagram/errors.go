package instagram

import (
	"encoding/json"
	"errors"
	"fmt"

	rshttp "reelsync/http"
	"reelsync/platform"
)

// GraphError is the error object of a Graph API response.
type GraphError struct {
	Message     string `json:"message"`
	Type        string `json:"type"`
	Code        int    `json:"code"`
	Subcode     int    `json:"error_subcode"`
	IsTransient bool   `json:"is_transient"`
	TraceID     string `json:"fbtrace_id"`

	// Status is the HTTP status of the response.
	Status int `json:"-"`
	err    error
}

func (e *GraphError) Error() string {
	return fmt.Sprintf("graph api error %d (%s): %s", e.Code, e.Type, e.Message)
}

func (e *GraphError) Unwrap() error { return e.err }

// Transient reports whether Graph marked the error transient or it is one of
// the throttling codes.
func (e *GraphError) Transient() bool {
	if e.IsTransient {
		return true
	}
	switch e.Code {
	case 1, 2, 4, 17, 32, 341, 613:
		return true
	}
	return e.Status >= 500
}

// Unauthorized reports an expired or revoked token.
func (e *GraphError) Unauthorized() bool {
	return e.Code == 190 || e.Code == 102 || e.Status == 401
}

// parseGraphError extracts the Graph error from a failed response, or
// returns nil when the body carries none.
func parseGraphError(httpErr *rshttp.HTTPError) *GraphError {
	var envelope struct {
		Error *GraphError `json:"error"`
	}
	if err := json.Unmarshal(httpErr.Body, &envelope); err != nil || envelope.Error == nil {
		return nil
	}
	ge := envelope.Error
	ge.Status = httpErr.StatusCode
	ge.err = httpErr
	return ge
}

func classify(op string, err error) error {
	var httpErr *rshttp.HTTPError
	if errors.As(err, &httpErr) {
		if ge := parseGraphError(httpErr); ge != nil {
			switch {
			case ge.Unauthorized():
				return platform.Errorf(platform.Instagram, platform.KindPermanent, op,
					fmt.Errorf("%w: %w", platform.ErrUnauthorized, ge))
			case ge.Transient():
				return platform.Errorf(platform.Instagram, platform.KindTransient, op, ge)
			default:
				return platform.Errorf(platform.Instagram, platform.KindPermanent, op, ge)
			}
		}
	}
	return platform.Classify(platform.Instagram, op, err)
}
