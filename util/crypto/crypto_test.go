package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCheck(t *testing.T) {
	hash, err := HashPasswordAsBcrypt("concrete-mixer")
	require.NoError(t, err)
	assert.True(t, CheckPasswordHash(hash, "concrete-mixer"))
	assert.False(t, CheckPasswordHash(hash, "concrete-mixer2"))
}

func TestCheckPasswordPolicy(t *testing.T) {
	assert.ErrorIs(t, CheckPasswordPolicy("short"), ErrWeakPassword)
	assert.NoError(t, CheckPasswordPolicy("longenough"))
	assert.Error(t, CheckPasswordPolicy(strings.Repeat("a", 73)))
}
