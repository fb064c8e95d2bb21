package uri

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"normlite/internal/config"
)

func TestParseMemory(t *testing.T) {
	p, err := Parse("normlite:///:memory:")
	require.NoError(t, err)
	assert.Equal(t, config.StoreMemory, p.Store)
}

func TestParseFilePath(t *testing.T) {
	p, err := Parse("normlite:///path/to/file.db")
	require.NoError(t, err)
	assert.Equal(t, config.StoreFile, p.Store)
	assert.Equal(t, "path/to/file.db", p.Path)
}

func TestParseAuthInternal(t *testing.T) {
	p, err := Parse("normlite+auth://internal?token=tok123&version=2022-06-28")
	require.NoError(t, err)
	assert.Equal(t, config.StoreHTTP, p.Store)
	assert.Equal(t, config.AuthInternal, p.AuthMode)
	assert.Equal(t, "tok123", p.Token)
	assert.Equal(t, "2022-06-28", p.Version)
}

func TestParseAuthExternal(t *testing.T) {
	p, err := Parse("normlite+auth://external?client_id=c&client_secret=s&auth_url=https://example.com/oauth")
	require.NoError(t, err)
	assert.Equal(t, config.AuthExternal, p.AuthMode)
	assert.Equal(t, "c", p.ClientID)
	assert.Equal(t, "s", p.ClientSecret)
	assert.Equal(t, "https://example.com/oauth", p.AuthURL)
}

func TestParseAuthInternalMissingTokenFails(t *testing.T) {
	_, err := Parse("normlite+auth://internal?version=2022-06-28")
	assert.Error(t, err)
}

func TestParseUnsupportedSchemeFails(t *testing.T) {
	_, err := Parse("postgres://localhost/db")
	assert.Error(t, err)
}

func TestParseMissingPathFails(t *testing.T) {
	_, err := Parse("normlite://")
	assert.Error(t, err)
}
