// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pdiddy/trialmatch/internal/errs"
)

// ErrorCode is the machine-readable code of an API error.
type ErrorCode string

const (
	ErrorCodeInvalidRequest   ErrorCode = "INVALID_REQUEST"
	ErrorCodeInvalidJSON      ErrorCode = "INVALID_JSON"
	ErrorCodeUnauthorized     ErrorCode = "UNAUTHORIZED"
	ErrorCodeTrialNotFound    ErrorCode = "TRIAL_NOT_FOUND"
	ErrorCodeProfileNotFound  ErrorCode = "PROFILE_NOT_FOUND"
	ErrorCodeLocationNotFound ErrorCode = "LOCATION_NOT_FOUND"
	ErrorCodeBodyTooLarge     ErrorCode = "BODY_TOO_LARGE"

	ErrorCodeUpstream      ErrorCode = "UPSTREAM_UNAVAILABLE"
	ErrorCodeParseFailure  ErrorCode = "PARSE_FAILURE"
	ErrorCodeTimeout       ErrorCode = "TIMEOUT"
	ErrorCodeNotConfigured ErrorCode = "NOT_CONFIGURED"
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// ErrorDetail adds context to an error.
type ErrorDetail struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// APIError is the body of every error response.
type APIError struct {
	Error     string        `json:"error"`
	Code      ErrorCode     `json:"code"`
	Message   string        `json:"message"`
	Details   []ErrorDetail `json:"details,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	RequestID string        `json:"request_id,omitempty"`
}

// SendError writes an APIError with the given status and aborts the chain.
func SendError(c *gin.Context, status int, code ErrorCode, message string, details ...ErrorDetail) {
	body := &APIError{
		Error:     http.StatusText(status),
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
	if id, ok := c.Get(requestIDKey); ok {
		if s, ok := id.(string); ok {
			body.RequestID = s
		}
	}
	c.AbortWithStatusJSON(status, body)
}

// sendErr classifies err against the error taxonomy and writes it.
func sendErr(c *gin.Context, err error) {
	var upstream *errs.UpstreamError
	var tooLarge *http.MaxBytesError

	switch {
	case errors.As(err, &tooLarge):
		SendError(c, http.StatusRequestEntityTooLarge, ErrorCodeBodyTooLarge, err.Error())
	case errors.Is(err, errs.ErrInvalidInput):
		SendError(c, http.StatusBadRequest, ErrorCodeInvalidRequest, err.Error())
	case errors.Is(err, errs.ErrTrialNotFound):
		SendError(c, http.StatusNotFound, ErrorCodeTrialNotFound, err.Error())
	case errors.Is(err, errs.ErrProfileNotFound):
		SendError(c, http.StatusNotFound, ErrorCodeProfileNotFound, err.Error())
	case errors.Is(err, errs.ErrLocationNotFound):
		SendError(c, http.StatusNotFound, ErrorCodeLocationNotFound, err.Error())
	case errors.As(err, &upstream):
		var details []ErrorDetail
		if upstream.StatusCode != 0 {
			details = append(details, ErrorDetail{Field: "status", Message: strconv.Itoa(upstream.StatusCode), Code: upstream.Service})
		}
		if upstream.Body != "" {
			details = append(details, ErrorDetail{Field: "body", Message: upstream.Body, Code: upstream.Service})
		}
		SendError(c, http.StatusBadGateway, ErrorCodeUpstream, err.Error(), details...)
	case errors.Is(err, errs.ErrUpstreamUnavailable):
		SendError(c, http.StatusBadGateway, ErrorCodeUpstream, err.Error())
	case errors.Is(err, errs.ErrParseFailure):
		SendError(c, http.StatusBadGateway, ErrorCodeParseFailure, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		SendError(c, http.StatusGatewayTimeout, ErrorCodeTimeout, err.Error())
	default:
		SendError(c, http.StatusInternalServerError, ErrorCodeInternalError, err.Error())
	}
}

// bindJSON decodes the request body into v, writing the error response on
// failure.
func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			sendErr(c, err)
			return false
		}
		SendError(c, http.StatusBadRequest, ErrorCodeInvalidJSON, "Invalid JSON in request body: "+err.Error())
		return false
	}
	return true
}
