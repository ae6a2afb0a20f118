package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	ledgerdomain "github.com/smallbiznis/cemtrack/internal/ledger/domain"
	"github.com/smallbiznis/cemtrack/internal/providers/pdf"
	"github.com/smallbiznis/cemtrack/pkg/db/pagination"
)

// statusClientClosedRequest reports a request the caller abandoned.
const statusClientClosedRequest = 499

// retryAfterSeconds is advertised to clients that hit a busy ledger lock.
const retryAfterSeconds = 2

type errorPayload struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`

	retryAfter int
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrUnknownAction  = errors.New("unknown_action")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		setRetryAfter(c, payload)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func setRetryAfter(c *gin.Context, payload errorPayload) {
	if payload.retryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(payload.retryAfter))
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Code:    "internal_error",
			Message: "internal server error",
		}
	}

	if msg, ok := validationMessage(err); ok {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Code:    validationCode(err),
			Message: msg,
		}
	}

	switch {
	case errors.Is(err, ledgerdomain.ErrBagNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Code:    ledgerdomain.ErrBagNotFound.Error(),
			Message: "bag not found",
		}
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Code:    ErrNotFound.Error(),
			Message: "not found",
		}
	case errors.Is(err, ledgerdomain.ErrDuplicateUsage):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Code:    ledgerdomain.ErrDuplicateUsage.Error(),
			Message: "bag has already been used",
		}
	case errors.Is(err, ledgerdomain.ErrLockTimeout):
		return http.StatusServiceUnavailable, errorPayload{
			Type:       "service_unavailable",
			Code:       ledgerdomain.ErrLockTimeout.Error(),
			Message:    "ledger is busy, try again",
			retryAfter: retryAfterSeconds,
		}
	case errors.Is(err, ledgerdomain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Code:    ledgerdomain.ErrStoreUnavailable.Error(),
			Message: "ledger store unavailable",
		}
	case errors.Is(err, ledgerdomain.ErrSchemaMissing):
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Code:    ledgerdomain.ErrSchemaMissing.Error(),
			Message: "ledger tables are not provisioned",
		}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, errorPayload{
			Type:    "timeout",
			Code:    "timeout",
			Message: "request timed out",
		}
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest, errorPayload{
			Type:    "canceled",
			Code:    "request_canceled",
			Message: "request canceled by client",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Code:    "internal_error",
			Message: "internal server error",
		}
	}
}

var validationMessages = []struct {
	err error
	msg string
}{
	{ErrInvalidRequest, "invalid request"},
	{ErrUnknownAction, "unknown action"},
	{ledgerdomain.ErrInvalidPlant, "plant is required"},
	{ledgerdomain.ErrInvalidBatch, "batch is required"},
	{ledgerdomain.ErrInvalidCount, "count must be a positive number within the batch limit"},
	{ledgerdomain.ErrInvalidBagID, "bag_id is required"},
	{ledgerdomain.ErrInvalidWorker, "worker_id is required"},
	{pagination.ErrInvalidPageToken, "invalid page token"},
	{pdf.ErrNoLabels, "ids must list between 1 and 5000 bag ids"},
}

func validationMessage(err error) (string, bool) {
	for _, v := range validationMessages {
		if errors.Is(err, v.err) {
			return v.msg, true
		}
	}
	return "", false
}

func validationCode(err error) string {
	for _, v := range validationMessages {
		if errors.Is(err, v.err) {
			return v.err.Error()
		}
	}
	return ErrInvalidRequest.Error()
}

// classifyErrorForLog returns the error type and code recorded on request logs.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	return payload.Type, payload.Code
}
