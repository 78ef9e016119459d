package errors

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	typed := Clone(ErrNotFound, "grade not found")
	wrapped := fmt.Errorf("load grade: %w", typed)

	got := FromError(wrapped)
	require.Same(t, typed, got)
	assert.Equal(t, http.StatusNotFound, got.Status)
}

func TestFromErrorWrapsUnknownAsInternal(t *testing.T) {
	got := FromError(sql.ErrConnDone)

	assert.Equal(t, ErrInternal.Code, got.Code)
	assert.Equal(t, http.StatusInternalServerError, got.Status)
	assert.ErrorIs(t, got, sql.ErrConnDone)
	assert.Nil(t, FromError(nil))
}

func TestCloneLeavesSentinelUntouched(t *testing.T) {
	c := Clone(ErrValidation, "title is required")

	assert.Equal(t, "title is required", c.Message)
	assert.Equal(t, "validation failed", ErrValidation.Message)
	assert.Equal(t, ErrValidation.Message, Clone(ErrValidation, "").Message)
}

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("delete tag: %w", Clone(ErrConflict, "tag in use"))

	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.True(t, HasCode(err, ErrConflict.Code))
	assert.False(t, HasCode(errors.New("plain"), ErrConflict.Code))
}

func TestErrorStringIncludesCause(t *testing.T) {
	err := Wrap(errors.New("disk full"), ErrInternal.Code, ErrInternal.Status, "store file")

	assert.Equal(t, "store file: disk full", err.Error())
	assert.Equal(t, "conflict", ErrConflict.Error())
}
