package secretpkg

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestSecret(t *testing.T) {
	code := "482913"
	hashed1, err := Hash(code)
	require.NoError(t, err)
	require.NotEmpty(t, hashed1)
	require.NotEqual(t, code, hashed1)

	err = Check(code, hashed1)
	require.NoError(t, err)

	wrongCode := "000000"
	err = Check(wrongCode, hashed1)
	require.EqualError(t, err, bcrypt.ErrMismatchedHashAndPassword.Error())

	// Test for random salt generation
	hashed2, err := Hash(code)
	require.NoError(t, err)
	require.NotEmpty(t, hashed2)
	require.NotEqual(t, hashed1, hashed2)
}
