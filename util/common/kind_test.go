package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenErrorsAreUnauthenticated(t *testing.T) {
	assert.ErrorIs(t, ErrTokenInvalid, ErrUnauthenticated)
	assert.ErrorIs(t, ErrTokenExpired, ErrUnauthenticated)
	assert.NotErrorIs(t, ErrTokenExpired, ErrTokenInvalid)
}

func TestInternalKeepsExistingKind(t *testing.T) {
	nf := NotFound("task", 3)
	assert.Same(t, nf, Internal(nf))

	wrapped := Internal(errors.New("disk full"))
	assert.ErrorIs(t, wrapped, ErrInternal)
	assert.Contains(t, wrapped.Error(), "disk full")

	assert.NoError(t, Internal(nil))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, ErrConflict, KindOf(Conflict("label %q already attached", "rebar")))
	assert.Equal(t, ErrInvalidArgument, KindOf(fmt.Errorf("bind: %w", Invalid("bad status"))))
	assert.Nil(t, KindOf(errors.New("plain")))
}
