package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTaskException_WrapsError(t *testing.T) {
	exc := NewTaskException(errors.New("boom"))
	assert.Equal(t, "boom", exc.Message)
	assert.Contains(t, exc.TypeName, "errorString")
	assert.Equal(t, "boom", exc.Error())
}

func TestNewTaskException_NilIsNil(t *testing.T) {
	assert.Nil(t, NewTaskException(nil))
}

func TestNewTaskException_DoesNotDoubleWrap(t *testing.T) {
	inner := NewTaskException(errors.New("boom"))
	outer := NewTaskException(inner)
	assert.Same(t, inner, outer)
}

func TestTaskException_UnwrapWithoutOriginalError(t *testing.T) {
	// Simulates a round trip through the disk cache tier, where the
	// unexported err field does not survive serialization.
	exc := &TaskException{Message: "boom", TypeName: "*errors.errorString"}
	unwrapped := exc.Unwrap()
	assert.Error(t, unwrapped)
	assert.Contains(t, unwrapped.Error(), "boom")
}
