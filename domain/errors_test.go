package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStoreFailure(t *testing.T) {
	assert.NoError(t, StoreFailure("op", nil))

	raw := errors.New("connection reset")
	err := StoreFailure("task.get", raw)
	assert.Equal(t, ErrCodeStoreFailure, CodeOf(err))
	assert.ErrorIs(t, err, raw)

	// domain errors are not reclassified
	assert.Same(t, ErrTaskNotFound, StoreFailure("task.get", ErrTaskNotFound))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrCodeNotFound, CodeOf(fmt.Errorf("wrapped: %w", ErrUserNotFound)))
	assert.Equal(t, ErrCodeInternal, CodeOf(errors.New("plain")))
	assert.True(t, IsDomainError(ErrEmailTaken, ErrCodeConflict))
}

func TestSortBuckets(t *testing.T) {
	buckets := []MonthlyCompleted{{Year: 2024, Month: 4}, {Year: 2023, Month: 12}, {Year: 2024, Month: 3}}
	SortBuckets(buckets)
	assert.Equal(t, []MonthlyCompleted{{Year: 2023, Month: 12}, {Year: 2024, Month: 3}, {Year: 2024, Month: 4}}, buckets)
}
