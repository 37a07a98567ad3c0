package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentErrorFormatting(t *testing.T) {
	err := NewDocumentError(ErrorTypeNotFound, "get", fmt.Errorf("no row")).WithFile("/docs/a.md")

	assert.Contains(t, err.Error(), "not_found")
	assert.Contains(t, err.Error(), "/docs/a.md")
	assert.Equal(t, "/docs/a.md", err.FilePath)

	byID := NewDocumentError(ErrorTypeNotFound, "get", fmt.Errorf("document not found")).WithID(99999)
	assert.Contains(t, byID.Error(), "99999", "callers looking up by id must see the id in the message")
}

func TestValidationErrorSuggestion(t *testing.T) {
	err := NewValidationError("sort_by", "sort_by must be one of [relevance, date, name]").
		WithSuggestion("relevance")

	assert.Contains(t, err.Error(), `did you mean "relevance"?`)
	assert.Equal(t, "sort_by", err.Parameter)
}

func TestUnwrapChains(t *testing.T) {
	root := fmt.Errorf("disk full")
	err := NewStoreError("insert", root)

	assert.True(t, stderrors.Is(err, root))

	var serr *StoreError
	require.True(t, stderrors.As(error(err), &serr))
	assert.Equal(t, "insert", serr.Operation)
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, ErrorTypeDuplicate, TypeOf(NewDocumentError(ErrorTypeDuplicate, "create", nil)))
	assert.Equal(t, ErrorTypeValidation, TypeOf(NewValidationError("q", "bad")))
	assert.Equal(t, ErrorTypeInvalidQuery, TypeOf(NewQueryError("x", fmt.Errorf("empty"))))
	assert.Equal(t, ErrorTypeStore, TypeOf(NewStoreError("op", nil)))
	assert.Equal(t, ErrorTypeParseFailed, TypeOf(NewParseError("markdown", "/a.md", nil)))
	assert.Equal(t, ErrorTypeInternal, TypeOf(fmt.Errorf("plain")))
}

func TestMultiErrorFiltersNil(t *testing.T) {
	err := NewMultiError([]error{nil, fmt.Errorf("one"), nil, fmt.Errorf("two")})
	assert.Len(t, err.Errors, 2)
	assert.Contains(t, err.Error(), "2 errors")

	single := NewMultiError([]error{fmt.Errorf("only")})
	assert.Equal(t, "only", single.Error())
}
