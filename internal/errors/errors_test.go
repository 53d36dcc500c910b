package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Formatting(t *testing.T) {
	err := Newf(ErrCategoryConfig, CodeBadOption, "'%s' must be a decimal", "refresh_seconds")
	assert.Equal(t, "[CONFIG:BAD_OPTION] 'refresh_seconds' must be a decimal", err.Error())

	wrapped := Wrap(ErrCategorySearch, CodeEngineFailure, "partition 3 query failed", errors.New("disk on fire"))
	assert.Equal(t, "[SEARCH:ENGINE_FAILURE] partition 3 query failed: disk on fire", wrapped.Error())
}

func TestUnwrapAndExtraction(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(ErrCategoryMapping, CodeCoercionFailed, "field year", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ErrCategoryMapping, GetCategory(err))
	assert.Equal(t, CodeCoercionFailed, GetCode(err))

	// Extraction sees through further fmt wrapping.
	outer := fmt.Errorf("upsert: %w", err)
	assert.Equal(t, CodeCoercionFailed, GetCode(outer))

	assert.Equal(t, ErrorCategory(""), GetCategory(errors.New("plain")))
	assert.Equal(t, "", GetCode(nil))
}

func TestIs_MatchesCategoryAndCode(t *testing.T) {
	err := NewSearchError(CodeSearchTimeout, "search timed out on partition %d", 2)

	assert.ErrorIs(t, err, New(ErrCategorySearch, CodeSearchTimeout, ""))
	assert.NotErrorIs(t, err, New(ErrCategorySearch, CodeEngineFailure, ""))
	assert.NotErrorIs(t, err, New(ErrCategoryConfig, CodeSearchTimeout, ""))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewSearchError(CodeSearchTimeout, "x")))
	assert.True(t, IsRetryable(NewSearchError(CodeEngineFailure, "x")))
	assert.False(t, IsRetryable(NewSearchError(CodeIndexDropped, "x")))
	assert.False(t, IsRetryable(NewConfigError(CodeBadOption, "x")))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestWithDetails(t *testing.T) {
	base := NewPartitionError(CodeBadPartitionCount, "found 0")
	detailed := base.WithDetails(map[string]any{"partitions": 0})

	require.NotSame(t, base, detailed)
	assert.Nil(t, base.Details)
	assert.Equal(t, 0, detailed.Details["partitions"])
	assert.Equal(t, base.Error(), detailed.Error())
}
