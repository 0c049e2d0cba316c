package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dev-tams/deltabackup/internal/config"
)

func TestMirrorsFromConfigKeepsOrder(t *testing.T) {
	mirrors, err := MirrorsFromConfig(context.Background(), []config.MirrorConfig{
		{Name: "offsite", Type: "s3", Bucket: "b", Region: "eu-west-1", AccessKey: "AKIA", SecretKey: "secret"},
		{Name: "blob", Type: "azure", AccountName: "acct", AccountKey: "c2VjcmV0LWtleQ==", Container: "c"},
	})
	require.NoError(t, err)
	require.Len(t, mirrors, 2)
	assert.Equal(t, "offsite", mirrors[0].Name())
	assert.Equal(t, "blob", mirrors[1].Name())
}

func TestMirrorsFromConfigRejectsUnknownType(t *testing.T) {
	_, err := MirrorsFromConfig(context.Background(), []config.MirrorConfig{{Name: "ftp", Type: "ftp"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown type "ftp"`)
}

func TestMirrorsFromConfigEmpty(t *testing.T) {
	mirrors, err := MirrorsFromConfig(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, mirrors)
}
