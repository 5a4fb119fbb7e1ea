package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrValidationKey, "Keys [son] not in output").
		WithKey("family").
		WithCause(root)

	assert.Equal(t, ErrValidationKey, GetErrorCode(err))
	assert.True(t, errors.Is(err, root))
	assert.Contains(t, err.Error(), "(key: family)")
	assert.Contains(t, err.Error(), "[VALIDATION_KEY_ERROR]")
}

func TestIsErrorCode_WalksWrappedChain(t *testing.T) {
	t.Parallel()

	inner := NewError(ErrParsingPartial, "segment failed")
	outer := NewError(ErrParsingFixing, "repair failed").WithCause(inner)
	wrapped := fmt.Errorf("attempt: %w", outer)

	assert.True(t, IsErrorCode(wrapped, ErrParsingFixing))
	assert.True(t, IsErrorCode(wrapped, ErrParsingPartial))
	assert.False(t, IsErrorCode(wrapped, ErrValidationKey))
	assert.False(t, IsErrorCode(nil, ErrParsing))
}

func TestKeyPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		parent, key, want string
	}{
		{"", "age", "age"},
		{"family", "", "family"},
		{"family", "son", "family.son"},
		{"family.son", "age", "family.son.age"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KeyPath(tt.parent, tt.key))
	}
}

func TestValidationError_Feedback(t *testing.T) {
	t.Parallel()

	verr := &ValidationError{
		Errors: []*Error{
			NewError(ErrValidationKey, "Keys [instruction] not in output"),
			NewError(ErrValidationType, "Wrong type for 'age'").WithKey("family.son"),
		},
		Output: map[string]any{"reasoning": "x"},
	}

	fb := verr.Feedback()
	assert.Contains(t, fb, "Keys [instruction] not in output")
	assert.Contains(t, fb, "family.son")
	assert.NotContains(t, fb, "Parsed Output")
	assert.Contains(t, verr.Error(), "Parsed Output")
	assert.True(t, verr.HasCode(ErrValidationType))
	assert.False(t, verr.HasCode(ErrValidationRule))
}

func TestMaxRetriesError_UnwrapsLog(t *testing.T) {
	t.Parallel()

	perr := &ParsingError{Message: "could not parse", Text: "garbage"}
	verr := &ValidationError{Errors: []*Error{NewError(ErrValidationKey, "missing")}}
	mr := &MaxRetriesError{
		Attempts: 2,
		Log:      []error{NewEngineRunError(0, perr), NewEngineRunError(1, verr)},
	}

	var got *ValidationError
	require.True(t, errors.As(mr, &got))
	assert.Same(t, verr, got)
	assert.Equal(t, "max_retries", ErrorKind(mr))
	assert.Contains(t, mr.Error(), "2 attempts")
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", ErrorKind(nil))
	assert.Equal(t, "parsing", ErrorKind(&ParsingError{}))
	assert.Equal(t, "validation", ErrorKind(fmt.Errorf("wrap: %w", &ValidationError{})))
	assert.Equal(t, "parsing", ErrorKind(NewEngineRunError(3, &ParsingError{})))
	assert.Equal(t, "template_error", ErrorKind(NewError(ErrTemplate, "bad")))
	assert.Equal(t, "unknown", ErrorKind(errors.New("plain")))
}
