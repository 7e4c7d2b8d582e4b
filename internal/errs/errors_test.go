package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindErrors(t *testing.T) {
	t.Parallel()

	v := Validation("Text field cannot be empty")
	assert.EqualError(t, v, "Text field cannot be empty")
	assert.ErrorIs(t, v, ErrValidation)
	assert.NotErrorIs(t, v, ErrConfiguration)

	c := fmt.Errorf("load: %w", Configuration("gateway login is not set"))
	assert.ErrorIs(t, c, ErrConfiguration)
	assert.False(t, errors.Is(c, ErrValidation))
}
