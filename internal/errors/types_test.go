package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCodeHTTPMapping(t *testing.T) {
	cases := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeInvalidConfig, http.StatusBadRequest},
		{ErrCodeInvalidArgument, http.StatusBadRequest},
		{ErrCodeDimensionConflict, http.StatusConflict},
		{ErrCodeProviderUnavailable, http.StatusBadGateway},
		{ErrCodeVectorStoreUnavailable, http.StatusBadGateway},
		{ErrCodeTimeout, http.StatusGatewayTimeout},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeVectorStoreError, http.StatusInternalServerError},
	}

	for _, c := range cases {
		assert.Equal(t, c.want, New(c.code, "x").HTTPCode, string(c.code))
	}
}

func TestCodeOfUnwrapsWrappedErrors(t *testing.T) {
	base := NewDimensionConflict("kb_chunks_1", 1536, 384)
	wrapped := fmt.Errorf("ensure collection: %w", base)

	assert.Equal(t, ErrCodeDimensionConflict, CodeOf(wrapped))
	assert.True(t, Is(wrapped, ErrCodeDimensionConflict))
}

func TestCodeOfPlainError(t *testing.T) {
	err := stderrors.New("boom")
	assert.Equal(t, ErrCodeInternalServer, CodeOf(err))

	appErr := GetAppError(err)
	assert.Equal(t, ErrCodeInternalServer, appErr.Code)
	assert.Equal(t, err, appErr.Cause)
}

func TestWithCausePreservesMessage(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := NewVectorStoreUnavailable("milvus connect failed").WithCause(cause)

	assert.Contains(t, err.Error(), "milvus connect failed")
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, cause, stderrors.Unwrap(err))
}
