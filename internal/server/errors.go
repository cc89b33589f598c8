package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	allocationdomain "github.com/smallbiznis/creditledger/internal/allocation/domain"
	creditpooldomain "github.com/smallbiznis/creditledger/internal/creditpool/domain"
	feederdomain "github.com/smallbiznis/creditledger/internal/feeder/domain"
	ledgerdomain "github.com/smallbiznis/creditledger/internal/ledger/domain"
	quotadomain "github.com/smallbiznis/creditledger/internal/quota/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
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

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, creditpooldomain.ErrInsufficientCredits),
		errors.Is(err, allocationdomain.ErrAllocationLimitExceeded):
		return http.StatusPaymentRequired, errorPayload{
			Type:    "insufficient_credits",
			Message: err.Error(),
		}
	case errors.Is(err, quotadomain.ErrInsufficientQuota),
		errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: err.Error(),
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, creditpooldomain.ErrConcurrencyConflict),
		errors.Is(err, creditpooldomain.ErrReservationFinalized),
		errors.Is(err, allocationdomain.ErrAllocationExists),
		errors.Is(err, ledgerdomain.ErrTransactionExists),
		errors.Is(err, feederdomain.ErrSubscriberBusy):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog returns the error type and code recorded on request logs.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	} else if payload.Type != "internal_error" {
		code = err.Error()
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return true
	case isPoolValidationError(err),
		isLedgerValidationError(err),
		isAllocationValidationError(err),
		isFeederValidationError(err),
		isQuotaValidationError(err):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, creditpooldomain.ErrPoolNotFound),
		errors.Is(err, creditpooldomain.ErrReservationNotFound),
		errors.Is(err, allocationdomain.ErrAllocationNotFound),
		errors.Is(err, quotadomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isPoolValidationError(err error) bool {
	switch {
	case errors.Is(err, creditpooldomain.ErrInvalidPool),
		errors.Is(err, creditpooldomain.ErrInvalidOwner),
		errors.Is(err, creditpooldomain.ErrInvalidOwnerType),
		errors.Is(err, creditpooldomain.ErrInvalidSource),
		errors.Is(err, creditpooldomain.ErrInvalidAmount):
		return true
	default:
		return false
	}
}

func isLedgerValidationError(err error) bool {
	switch {
	case errors.Is(err, ledgerdomain.ErrInvalidPool),
		errors.Is(err, ledgerdomain.ErrInvalidTransactionType),
		errors.Is(err, ledgerdomain.ErrInvalidTransaction):
		return true
	default:
		return false
	}
}

func isAllocationValidationError(err error) bool {
	switch {
	case errors.Is(err, allocationdomain.ErrInvalidAllocation),
		errors.Is(err, allocationdomain.ErrInvalidProject),
		errors.Is(err, allocationdomain.ErrInvalidMonthlyLimit),
		errors.Is(err, allocationdomain.ErrInvalidAmount):
		return true
	default:
		return false
	}
}

func isFeederValidationError(err error) bool {
	return errors.Is(err, feederdomain.ErrInvalidCredits)
}

func isQuotaValidationError(err error) bool {
	switch {
	case errors.Is(err, quotadomain.ErrInvalidService),
		errors.Is(err, quotadomain.ErrInvalidUser),
		errors.Is(err, quotadomain.ErrInvalidQuota),
		errors.Is(err, quotadomain.ErrInvalidRequestCount),
		errors.Is(err, quotadomain.ErrInvalidDateRange):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	for inner := errors.Unwrap(err); inner != nil; inner = errors.Unwrap(err) {
		err = inner
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "invalid_amount", "invalid_credits":
		return "amount must be a positive integer"
	case "invalid_date_range":
		return "end date must not be before start date"
	default:
		return "invalid value"
	}
}
