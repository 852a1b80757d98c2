package classify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		category  Category
		retryable bool
	}{
		{
			name:      "deadline exceeded",
			err:       context.DeadlineExceeded,
			category:  CategoryTimeout,
			retryable: true,
		},
		{
			name:      "wrapped deadline exceeded",
			err:       fmt.Errorf("calling backend: %w", context.DeadlineExceeded),
			category:  CategoryTimeout,
			retryable: true,
		},
		{
			name:      "net timeout",
			err:       timeoutErr{},
			category:  CategoryTimeout,
			retryable: true,
		},
		{
			name:      "connection refused",
			err:       &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED},
			category:  CategoryConnection,
			retryable: true,
		},
		{
			name:      "connection reset",
			err:       fmt.Errorf("request: %w", syscall.ECONNRESET),
			category:  CategoryConnection,
			retryable: true,
		},
		{
			name:      "status 500",
			err:       &StatusError{Code: 500, Message: "internal"},
			category:  CategoryServer,
			retryable: true,
		},
		{
			name:      "status 502",
			err:       &StatusError{Code: 502, Message: "bad gateway"},
			category:  CategoryServer,
			retryable: true,
		},
		{
			name:      "status 503",
			err:       &StatusError{Code: 503, Message: "unavailable"},
			category:  CategoryServer,
			retryable: true,
		},
		{
			name:      "status 504",
			err:       &StatusError{Code: 504, Message: "gateway timeout"},
			category:  CategoryServer,
			retryable: true,
		},
		{
			name:      "status 401",
			err:       &StatusError{Code: 401, Message: "unauthorized"},
			category:  CategoryAuth,
			retryable: false,
		},
		{
			name:      "status 403",
			err:       &StatusError{Code: 403, Message: "forbidden"},
			category:  CategoryPermission,
			retryable: false,
		},
		{
			name:      "status 404",
			err:       &StatusError{Code: 404, Message: "no such event"},
			category:  CategoryNotFound,
			retryable: false,
		},
		{
			name:      "status 400 missing field",
			err:       &StatusError{Code: 400, Message: "name is required"},
			category:  CategoryMissingField,
			retryable: false,
		},
		{
			name:      "status 400 validation",
			err:       &StatusError{Code: 400, Message: "invalid date format"},
			category:  CategoryValidation,
			retryable: false,
		},
		{
			name:      "status 429 is not retryable",
			err:       &StatusError{Code: 429, Message: "too many requests"},
			category:  CategoryUnknown,
			retryable: false,
		},
		{
			name:      "timeout substring heuristic",
			err:       errors.New("request timeout after 30s"),
			category:  CategoryTimeout,
			retryable: true,
		},
		{
			name:      "connection substring heuristic",
			err:       errors.New("connection refused by host"),
			category:  CategoryConnection,
			retryable: true,
		},
		{
			name:      "unrecognized error",
			err:       errors.New("something odd happened"),
			category:  CategoryUnknown,
			retryable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			class := Classify(tt.err)
			assert.Equal(t, tt.category, class.Category)
			assert.Equal(t, tt.retryable, class.Retryable)
			assert.NotEmpty(t, class.Message)
		})
	}
}

func TestClassifyPreservesClassifiedError(t *testing.T) {
	orig := NewError(CategoryMissingField, "eventId is required")

	class := Classify(fmt.Errorf("dispatching tool: %w", orig))

	assert.Equal(t, CategoryMissingField, class.Category)
	assert.Equal(t, "eventId is required", class.Message)
	assert.False(t, class.Retryable)
}

func TestNewError(t *testing.T) {
	err := NewError(CategoryTimeout, "took too long")

	var classErr *Error
	require.ErrorAs(t, err, &classErr)
	assert.True(t, classErr.Retryable)
	assert.NotEmpty(t, classErr.Suggestion)
	assert.Contains(t, err.Error(), "took too long")
}

func TestSuggestionsAreActionable(t *testing.T) {
	for _, cat := range []Category{
		CategoryTimeout, CategoryConnection, CategoryAuth, CategoryPermission,
		CategoryNotFound, CategoryValidation, CategoryMissingField,
		CategoryServer, CategoryUnknown, CategoryUnknownTool,
	} {
		assert.NotEmpty(t, suggestionFor(cat), "category %s", cat)
	}
}
