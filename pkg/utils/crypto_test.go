package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealerRoundTrip(t *testing.T) {
	s, err := NewSealer([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	sealed, err := s.Seal("page-token")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "page-token")

	again, err := s.Seal("page-token")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must differ per seal")

	plain, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "page-token", plain)
}

func TestSealerRejectsBadInput(t *testing.T) {
	s, err := NewSealer([]byte("0123456789abcdef"))
	require.NoError(t, err)

	_, err = s.Open("not base64!")
	assert.Error(t, err)

	_, err = s.Open("AAAA")
	assert.ErrorIs(t, err, ErrCiphertextTooShort)

	other, err := NewSealer([]byte("fedcba9876543210"))
	require.NoError(t, err)
	sealed, err := other.Seal("x")
	require.NoError(t, err)
	_, err = s.Open(sealed)
	assert.Error(t, err)

	_, err = NewSealer([]byte("short"))
	assert.Error(t, err)
}
