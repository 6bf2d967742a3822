package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"cleanstreet/backend/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStorage(dir)
	require.NoError(t, err)

	ctx := context.Background()
	obj, err := s.Save(ctx, ".JPG", "image/jpeg", []byte("jpeg-bytes"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(obj.Key, "complaints/complaint-"))
	assert.True(t, strings.HasSuffix(obj.Key, ".jpg"))
	assert.Equal(t, "/uploads/"+obj.Key, obj.URL)

	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(obj.Key)))
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))

	assert.NoError(t, s.Tag(ctx, obj.Key, map[string]string{"complaintId": "c1"}))
	require.NoError(t, s.Delete(ctx, obj.Key))
	_, err = os.Stat(filepath.Join(dir, filepath.FromSlash(obj.Key)))
	assert.True(t, os.IsNotExist(err))

	// Deleting twice is not an error.
	assert.NoError(t, s.Delete(ctx, obj.Key))
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	assert.Error(t, s.Delete(context.Background(), "../etc/passwd"))
	assert.Error(t, s.Delete(context.Background(), ""))
}

func TestNewSelectsBackend(t *testing.T) {
	s, err := New(context.Background(), &config.Config{StorageBackend: "local", UploadDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, s)

	_, err = New(context.Background(), &config.Config{StorageBackend: "s3"})
	assert.Error(t, err)

	_, err = New(context.Background(), &config.Config{StorageBackend: "ftp"})
	assert.Error(t, err)
}

func TestTagSet(t *testing.T) {
	set := tagSet(map[string]string{
		"userId":      "u1",
		"complaintId": "c1",
		"title":       strings.Repeat("x", 300),
	})
	require.Len(t, set, 3)
	assert.Equal(t, "complaintId", aws.ToString(set[0].Key))
	assert.Equal(t, "title", aws.ToString(set[1].Key))
	assert.Len(t, aws.ToString(set[1].Value), 256)
	assert.Equal(t, "userId", aws.ToString(set[2].Key))
}

func TestTagSetCleansValues(t *testing.T) {
	set := tagSet(map[string]string{
		"title": strings.Repeat("é", 300),
		"note":  "Broken light (Main St) #42, near café!",
	})
	require.Len(t, set, 2)

	note := aws.ToString(set[0].Value)
	assert.Equal(t, "Broken light  Main St   42  near café", note)

	title := aws.ToString(set[1].Value)
	assert.True(t, utf8.ValidString(title))
	assert.Equal(t, 256, utf8.RuneCountInString(title))
}
