package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/portfolio-engine/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceUnavailableError(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := NewSourceUnavailableError("balance", cause)

	assert.Equal(t, CategorySource, err.Category)
	assert.Equal(t, http.StatusServiceUnavailable, err.StatusCode)
	assert.Equal(t, "portfolio data unavailable, retry", err.Message)
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsSourceUnavailable(err))
	assert.True(t, IsRetryable(err))
	assert.True(t, IsSystemError(err))
	assert.False(t, IsUserError(err))
}

func TestIsSourceUnavailable_Wrapped(t *testing.T) {
	err := fmt.Errorf("analyze: %w", NewSourceUnavailableError("market", nil))
	assert.True(t, IsSourceUnavailable(err))
	assert.False(t, IsMalformedRecord(err))
}

func TestMalformedRecordError(t *testing.T) {
	err := NewMalformedRecordError("balance", "missing contract address")

	assert.True(t, IsMalformedRecord(err))
	assert.False(t, IsRetryable(err))
	assert.Equal(t, "MALFORMED_RECORD: malformed balance record: missing contract address", err.Error())
}

func TestCategorize(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, Categorize(nil))
	})

	t.Run("service error for bad tolerance maps to 400", func(t *testing.T) {
		_, parseErr := types.ParseRiskTolerance("reckless")
		require.Error(t, parseErr)
		catErr := Categorize(parseErr)
		assert.Equal(t, http.StatusBadRequest, catErr.StatusCode)
		assert.True(t, IsUserError(parseErr))
	})

	t.Run("plain error becomes internal", func(t *testing.T) {
		catErr := Categorize(stderrors.New("boom"))
		assert.Equal(t, CodeInternal, catErr.Code)
		assert.Equal(t, http.StatusInternalServerError, GetHTTPStatusCode(stderrors.New("boom")))
	})
}

func TestToServiceError(t *testing.T) {
	svc := NewInvalidParameterError("owner", "must not be empty").ToServiceError()
	assert.Equal(t, CodeInvalidParameter, svc.Code)
	assert.Equal(t, "owner", svc.Details["parameter"])
}
