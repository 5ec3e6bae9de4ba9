package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New("", "key", "secret")
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = New("cloud", "key", "")
	assert.ErrorIs(t, err, ErrNotConfigured)

	c, err := New("cloud", "key", "secret")
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestFolder(t *testing.T) {
	assert.Equal(t, "gainz", Folder(""))
	assert.Equal(t, "gainz/avatars", Folder("avatars"))
	assert.Equal(t, "gainz/media/recipes", Folder("media/recipes"))
}
