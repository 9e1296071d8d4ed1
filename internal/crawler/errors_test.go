package crawler

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemErrorWrapping(t *testing.T) {
	t.Parallel()

	base := NewItemError(KindMissingField, "https://example.com/a", "title", ErrMissingField)
	wrapped := fmt.Errorf("page 3: %w", base)

	require.ErrorIs(t, wrapped, ErrMissingField)
	kind, ok := KindOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindMissingField, kind)
	assert.Equal(t, "missing_field (title) for https://example.com/a: required element missing", base.Error())
}

func TestKindOfPlainError(t *testing.T) {
	t.Parallel()

	_, ok := KindOf(errors.New("boom"))
	assert.False(t, ok)
}

func TestIsSuccess(t *testing.T) {
	t.Parallel()

	cases := map[int]bool{199: false, 200: true, 204: true, 299: true, 300: false, 404: false, 500: false}
	for code, want := range cases {
		assert.Equal(t, want, IsSuccess(code), "status %d", code)
		assert.Equal(t, want, FetchResponse{StatusCode: code}.Success(), "status %d", code)
	}
}
