package utils

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapOperationPreservesCode(t *testing.T) {
	base := NewQuotaError("object store rejected upload", errors.New("quota exceeded"))

	wrapped := WrapOperation("upload", "conv-1", base)
	appErr, ok := wrapped.(*AppError)
	assert.True(t, ok)
	assert.Equal(t, ErrQuota, appErr.Code, "the error kind survives wrapping")
	assert.Contains(t, appErr.Message, "conv-1")
}

func TestWrapOperationNil(t *testing.T) {
	assert.NoError(t, WrapOperation("sendText", "conv-1", nil))
}

func TestWrapOperationUntypedError(t *testing.T) {
	wrapped := WrapOperation("open", "conv-1", errors.New("socket closed"))
	appErr, ok := wrapped.(*AppError)
	assert.True(t, ok)
	assert.Equal(t, ErrConnectivity, appErr.Code, "untyped errors default to connectivity")
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	appErr := NewConnectivityError("resolve", cause)

	assert.True(t, errors.Is(appErr, cause))
}

func TestIsErrorCode(t *testing.T) {
	assert.True(t, IsErrorCode(NewValidationError("bad"), ErrValidation))
	assert.False(t, IsErrorCode(NewValidationError("bad"), ErrQuota))
	assert.False(t, IsErrorCode(errors.New("plain"), ErrValidation))
	assert.False(t, IsErrorCode(nil, ErrValidation))
}

func TestAppErrorToHTTPStatus(t *testing.T) {
	cases := map[string]int{
		ErrValidation:      http.StatusBadRequest,
		ErrNotFound:        http.StatusNotFound,
		ErrUnauthorized:    http.StatusUnauthorized,
		ErrForbidden:       http.StatusForbidden,
		ErrConflict:        http.StatusConflict,
		ErrQuota:           http.StatusRequestEntityTooLarge,
		ErrConnectivity:    http.StatusServiceUnavailable,
		ErrActorTimeout:    http.StatusServiceUnavailable,
		ErrTooManyRequests: http.StatusTooManyRequests,
	}
	for code, want := range cases {
		assert.Equal(t, want, AppErrorToHTTPStatus(code), "code %s", code)
	}
}

func TestMetricsSummary(t *testing.T) {
	mc := NewMetricsCollector()
	mc.IncrementRequests()
	mc.IncrementRequests()
	mc.IncrementErrors()
	mc.IncrementMessagesSent()
	mc.AddBytesUploaded(2048)
	mc.AddBytesUploaded(-5) // ignored

	summary := mc.GetSummary()
	assert.Equal(t, uint64(2), summary.Requests)
	assert.Equal(t, uint64(1), summary.Errors)
	assert.Equal(t, uint64(1), summary.MessagesSent)
	assert.Equal(t, uint64(2048), summary.BytesUploaded)
	assert.GreaterOrEqual(t, summary.UptimeSeconds, 0.0)
}
