package azure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresAccountAndContainer(t *testing.T) {
	_, err := New(Options{Name: "blob", AccountName: "acct"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "container")
}

func TestNewBuildsContainerURL(t *testing.T) {
	s, err := New(Options{
		Name:        "blob",
		AccountName: "acct",
		AccountKey:  "c2VjcmV0LWtleQ==",
		Container:   "pg-backups",
		Prefix:      "/nightly/",
	})
	require.NoError(t, err)
	assert.Equal(t, "blob", s.Name())
	assert.Equal(t, "nightly", s.prefix)

	u := s.container.URL()
	assert.Equal(t, "acct.blob.core.windows.net", u.Host)
	assert.Equal(t, "/pg-backups", u.Path)
}
