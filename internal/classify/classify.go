// Package classify normalizes failures from the event backend and tool
// handlers into a category, a retryability flag, and user-facing text.
package classify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strings"
	"syscall"
)

// Category identifies a failure class.
type Category string

const (
	CategoryTimeout      Category = "timeout"
	CategoryConnection   Category = "connection"
	CategoryAuth         Category = "auth"
	CategoryPermission   Category = "permission"
	CategoryNotFound     Category = "not-found"
	CategoryValidation   Category = "validation"
	CategoryMissingField Category = "missing-field"
	CategoryServer       Category = "server"
	CategoryUnknown      Category = "unknown"
	CategoryUnknownTool  Category = "unknown-tool"
)

// Classification is a failure normalized for retry decisions and for
// surfacing to the model in a tool result.
type Classification struct {
	Category   Category `json:"category"`
	Retryable  bool     `json:"retryable"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion"`
}

// Error makes a Classification usable as an error value so callers can
// carry it through error returns and recover it with errors.As.
type Error struct {
	Classification
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

// NewError builds a classified error directly, for failures that never pass
// through Classify (e.g. required-argument validation in tool handlers).
func NewError(category Category, message string) *Error {
	return &Error{Classification{
		Category:   category,
		Retryable:  retryableCategory(category),
		Message:    message,
		Suggestion: suggestionFor(category),
	}}
}

// StatusError is an HTTP failure with its status code and the message the
// backend put in the response body.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.Code)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Code, e.Message)
}

var missingFieldPattern = regexp.MustCompile(`(?i)missing|required|must provide`)

// Classify maps a raw failure to a Classification. The mapping is
// deterministic: structured signals (typed errors, status codes) are
// consulted first, substring heuristics only for opaque error text.
func Classify(err error) Classification {
	if err == nil {
		return Classification{Category: CategoryUnknown}
	}

	var classified *Error
	if errors.As(err, &classified) {
		return classified.Classification
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return classifyStatus(statusErr)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return build(CategoryTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return build(CategoryTimeout, err)
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return build(CategoryConnection, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return build(CategoryConnection, err)
	}

	// Opaque error text: substring heuristics as a last resort.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline"):
		return build(CategoryTimeout, err)
	case strings.Contains(msg, "connection"):
		return build(CategoryConnection, err)
	case strings.Contains(msg, "401"), strings.Contains(msg, "authentication"):
		return build(CategoryAuth, err)
	case strings.Contains(msg, "403"), strings.Contains(msg, "permission"):
		return build(CategoryPermission, err)
	case strings.Contains(msg, "404"), strings.Contains(msg, "not found"):
		return build(CategoryNotFound, err)
	case missingFieldPattern.MatchString(msg):
		return build(CategoryMissingField, err)
	case strings.Contains(msg, "invalid"):
		return build(CategoryValidation, err)
	default:
		return build(CategoryUnknown, err)
	}
}

// classifyStatus maps an HTTP status failure to a Classification.
func classifyStatus(err *StatusError) Classification {
	switch err.Code {
	case http.StatusUnauthorized:
		return build(CategoryAuth, err)
	case http.StatusForbidden:
		return build(CategoryPermission, err)
	case http.StatusNotFound:
		return build(CategoryNotFound, err)
	case http.StatusBadRequest:
		if missingFieldPattern.MatchString(err.Message) {
			return build(CategoryMissingField, err)
		}
		return build(CategoryValidation, err)
	}
	if err.Code >= 500 {
		return build(CategoryServer, err)
	}
	return build(CategoryUnknown, err)
}

func build(category Category, err error) Classification {
	return Classification{
		Category:   category,
		Retryable:  retryableCategory(category),
		Message:    err.Error(),
		Suggestion: suggestionFor(category),
	}
}

func retryableCategory(category Category) bool {
	switch category {
	case CategoryTimeout, CategoryConnection, CategoryServer:
		return true
	default:
		return false
	}
}

func suggestionFor(category Category) string {
	switch category {
	case CategoryTimeout:
		return "The backend took too long to respond. Try again in a moment or check the network connection."
	case CategoryConnection:
		return "Could not reach the backend. Check that the service is running or try again later."
	case CategoryAuth:
		return "The authentication token is invalid or expired. Sign in again."
	case CategoryPermission:
		return "You do not have permission for this operation. Check your role in the event."
	case CategoryNotFound:
		return "The requested resource was not found. Check the provided ID."
	case CategoryValidation:
		return "Some of the provided values are invalid. Check the formats and try again."
	case CategoryMissingField:
		return "A required field is missing. Provide the missing information and try again."
	case CategoryServer:
		return "The backend hit an internal error. Try again shortly."
	case CategoryUnknownTool:
		return "The requested tool is not available. Use one of the declared tools."
	default:
		return "Check the request parameters and try again."
	}
}
